package migrations

import (
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/pkg/migration"
	"github.com/shashiranjanraj/storefront/pkg/queue"
)

func init() {
	migration.Register("20260101000000_create_users_table", migration.CreateTable[repositories.UserRow]{})
	migration.Register("20260101000001_create_products_table", migration.CreateTable[repositories.ProductRow]{})
	migration.Register("20260101000002_create_orders_table", migration.CreateTable[repositories.OrderRow]{})
	migration.Register("20260101000003_create_failed_jobs_table", migration.CreateTable[queue.FailedJobRecord]{})
}
