// Command storefront is the operator CLI.
//
//	storefront serve
//	storefront migrate | migrate:rollback | migrate:status
//	storefront seed
//	storefront admin:create --email ops@example.com --password secret
//	storefront orders:export --out orders.csv
//	storefront route:list
//	storefront queue:work -w 4
//	storefront queue:failed | queue:retry 12 13
//	storefront schedule:run
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/shashiranjanraj/storefront/database/migrations"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "storefront:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront API server and operator commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddGroup(
		&cobra.Group{ID: "http", Title: "HTTP:"},
		&cobra.Group{ID: "data", Title: "Data:"},
		&cobra.Group{ID: "background", Title: "Background work:"},
	)
	add := func(group string, cmds ...*cobra.Command) {
		for _, c := range cmds {
			c.GroupID = group
			root.AddCommand(c)
		}
	}
	add("http", newServeCmd(), newRouteListCmd())
	add("data", newMigrateCmds()...)
	add("data", newSeedCmd(), newAdminCreateCmd(), newExportCmd())
	add("background", newQueueWorkCmd(), newQueueFailedCmd(), newQueueRetryCmd(), newScheduleRunCmd())
	return root
}
