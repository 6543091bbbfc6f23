package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/database/seeders"
	"github.com/shashiranjanraj/storefront/internal/bootstrap"
	"github.com/shashiranjanraj/storefront/pkg/migration"
)

// withApp boots from config for a one-shot command and closes afterwards.
func withApp(cmd *cobra.Command, fn func(*bootstrap.App) error) error {
	a, err := bootstrap.FromConfig(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout())
		defer cancel()
		_ = a.Close(ctx)
	}()
	return fn(a)
}

// withMigrator opens the SQL store. Mongo builds its indexes on connect and
// has nothing to migrate.
func withMigrator(cmd *cobra.Command, fn func(*migration.Runner) error) error {
	if err := config.Load(); err != nil {
		return err
	}
	if !config.IsSQL() {
		return fmt.Errorf("migrations need a SQL DB_DRIVER, got %q", config.DatabaseDriver())
	}
	store, db, err := bootstrap.OpenStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	r := migration.New(db)
	r.Out = cmd.OutOrStdout()
	return fn(r)
}

func newMigrateCmds() []*cobra.Command {
	cmd := func(use, short string, fn func(*migration.Runner) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, fn)
			},
		}
	}
	return []*cobra.Command{
		cmd("migrate", "Run pending SQL migrations", (*migration.Runner).Run),
		cmd("migrate:rollback", "Roll back the last migration batch", (*migration.Runner).Rollback),
		cmd("migrate:status", "Show which migrations have run", (*migration.Runner).Status),
	}
}

func newSeedCmd() *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the admin, a test user and the demo catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *bootstrap.App) error {
				return seeders.Run(cmd.Context(), &seeders.Deps{
					Auth:          a.Auth,
					Catalog:       a.Catalog,
					AdminEmail:    config.AdminEmail(),
					AdminPassword: config.AdminPassword(),
				}, cmd.OutOrStdout(), only...)
			})
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "seeders to run ("+strings.Join(seeders.Names(), ", ")+")")
	return cmd
}

func newAdminCreateCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "admin:create",
		Short: "Create an admin account or promote an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || len(password) < 6 {
				return errors.New("--email and a --password of at least 6 characters are required")
			}
			return withApp(cmd, func(a *bootstrap.App) error {
				u, err := a.Auth.EnsureAdmin(cmd.Context(), name, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin ready: %s (%s)\n", u.Email, u.ID.Hex())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "Admin User", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	return cmd
}

// newExportCmd writes the same CSV the admin console downloads.
func newExportCmd() *cobra.Command {
	var out string
	var ids []string
	cmd := &cobra.Command{
		Use:   "orders:export",
		Short: "Export orders as CSV (all orders unless --id is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *bootstrap.App) error {
				e, err := a.Reports.Export(cmd.Context(), ids)
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					_, err = cmd.OutOrStdout().Write(append(e.Content, '\n'))
					return err
				}
				if strings.HasSuffix(out, "/") {
					out += e.Filename
				}
				if err := os.WriteFile(out, e.Content, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%d orders written to %s\n", e.Rows, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "file to write, a directory ending in /, or - for stdout")
	cmd.Flags().StringSliceVar(&ids, "id", nil, "order id to include (repeatable)")
	return cmd
}
