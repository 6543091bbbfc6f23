// Package tasks registers the storefront's scheduled jobs.
package tasks

import (
	"context"

	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/schedule"
)

const LowStockScan = "catalog:low-stock"

// Register adds the catalog tasks to s.
func Register(s *schedule.Scheduler, catalog *services.CatalogService, threshold int) {
	s.Hourly().Name(LowStockScan).WithoutOverlapping().Run(LowStock(catalog, threshold))
}

// LowStock reports live products whose stock is at or below threshold.
func LowStock(catalog *services.CatalogService, threshold int) schedule.Task {
	return func(ctx context.Context) error {
		low, err := catalog.LowStock(ctx, threshold)
		if err != nil {
			return err
		}
		metrics.LowStockProducts.Set(float64(len(low)))
		for _, p := range low {
			logger.Warn("low stock", "product", p.Slug, "stock", p.Stock, "threshold", threshold)
		}
		return nil
	}
}
