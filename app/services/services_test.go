package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/rbac"
)

type fixture struct {
	store   *repositories.Store
	catalog *services.CatalogService
	auth    *services.AuthService
	buyer   *models.User
	admin   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	f := &fixture{
		store:   store,
		catalog: services.NewCatalogService(store.Products, cache.NewMemory(), 0),
		auth:    services.NewAuthService(store.Users),
	}
	ctx := context.Background()
	f.buyer = &models.User{Name: "Test User", Email: "user@example.com", Password: "x", Role: rbac.RoleUser}
	f.admin = &models.User{Name: "Admin User", Email: "admin@example.com", Password: "x", Role: rbac.RoleAdmin}
	require.NoError(t, store.Users.Create(ctx, f.buyer))
	require.NoError(t, store.Users.Create(ctx, f.admin))
	return f
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) product(t *testing.T, slug string, price float64, stock int) *models.Product {
	t.Helper()
	p, err := f.catalog.Create(context.Background(), services.ProductInput{
		Name:        slug,
		Slug:        slug,
		Description: "about " + slug,
		Price:       ptr(price),
		Category:    models.Sports,
		Weight:      ptr(1.0),
		Stock:       ptr(stock),
		Images:      []string{"https://img.test/" + slug + ".jpg"},
	}, f.admin.ID.Hex())
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, p *models.Product) int {
	t.Helper()
	got, err := f.store.Products.FindByID(context.Background(), p.ID, true)
	require.NoError(t, err)
	return got.Stock
}

func address() models.ShippingAddress {
	return models.ShippingAddress{
		FullName: "Test User",
		Phone:    "9999999999",
		Address:  "1 Main St",
		City:     "Pune",
		State:    "MH",
		ZipCode:  "411001",
		Country:  "India",
	}
}
