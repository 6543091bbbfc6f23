// Package seeders loads the admin account, a test shopper and the demo
// catalog. Seeders call the services, never a database handle, so the same
// data lands in Mongo, SQL or the memory store. Every seeder can be re-run.
//
//	storefront seed
//	storefront seed --only products
package seeders

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// Deps are the services a seeder may use.
type Deps struct {
	Auth    *services.AuthService
	Catalog *services.CatalogService

	AdminName     string
	AdminEmail    string
	AdminPassword string

	// set by the users seeder, stamped on seeded products
	admin *models.User
}

type seeder struct {
	name string
	run  func(ctx context.Context, d *Deps, out io.Writer) error
}

// users must precede products.
var seeders = []seeder{
	{"users", seedUsers},
	{"products", seedProducts},
}

// Names lists the seeders in run order.
func Names() []string {
	names := make([]string, len(seeders))
	for i, s := range seeders {
		names[i] = s.name
	}
	return names
}

// RunAll runs every seeder in order.
func RunAll(ctx context.Context, d *Deps, out io.Writer) error {
	return Run(ctx, d, out)
}

// Run runs the named seeders, or all of them when only is empty, and stops
// at the first failure. Products seeded without users carry no creator.
func Run(ctx context.Context, d *Deps, out io.Writer, only ...string) error {
	for _, name := range only {
		if !slices.Contains(Names(), name) {
			return fmt.Errorf("seeders: unknown seeder %q (have %v)", name, Names())
		}
	}
	for _, s := range seeders {
		if len(only) > 0 && !slices.Contains(only, s.name) {
			continue
		}
		start := time.Now()
		fmt.Fprintf(out, "seeding %s\n", s.name)
		if err := s.run(ctx, d, out); err != nil {
			return fmt.Errorf("seeders: %s: %w", s.name, err)
		}
		logger.WithCtx(ctx).Info("seeder finished", "seeder", s.name, "elapsed_ms", time.Since(start).Milliseconds())
	}
	return nil
}
