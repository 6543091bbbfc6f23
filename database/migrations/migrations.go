// Package migrations contains the SQL schema migrations. Each file
// registers itself with migration.Register from init, so importing this
// package for side effects is enough for the CLI to see them.
package migrations
