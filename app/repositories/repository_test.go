package repositories_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/pkg/database"
	"github.com/shashiranjanraj/storefront/pkg/rbac"
)

// extraBackends is extended by the integration build with container-backed
// stores.
var extraBackends []func(t *testing.T) (string, *repositories.Store)

// backends returns a fresh store per driver; every contract test runs on each.
func backends(t *testing.T) map[string]*repositories.Store {
	t.Helper()
	db, err := database.ConnectSQL("sqlite", filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&repositories.UserRow{}, &repositories.ProductRow{}, &repositories.OrderRow{}))

	out := map[string]*repositories.Store{
		"memory": repositories.NewMemoryStore(),
		"sqlite": repositories.NewSQLStore(db, "sqlite"),
	}
	for _, extra := range extraBackends {
		name, s := extra(t)
		out[name] = s
	}
	return out
}

func product(slug string, cat models.Category, price float64, stock int) *models.Product {
	return &models.Product{
		Name:        slug,
		Slug:        slug,
		Description: "about " + slug,
		Price:       price,
		Category:    cat,
		Weight:      1,
		Stock:       stock,
		Images:      []string{"https://img.test/" + slug + ".jpg"},
	}
}

func TestUsers(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u := &models.User{Name: "Test User", Email: "User@Example.com", Password: "hash", Role: rbac.RoleUser}
			require.NoError(t, s.Users.Create(ctx, u))
			assert.False(t, u.ID.IsZero())

			err := s.Users.Create(ctx, &models.User{Name: "Dup", Email: "user@example.com", Password: "x", Role: rbac.RoleUser})
			assert.ErrorIs(t, err, repositories.ErrDuplicate)

			got, err := s.Users.FindByEmail(ctx, "USER@example.com")
			require.NoError(t, err)
			assert.Equal(t, u.ID, got.ID)
			assert.Equal(t, rbac.RoleUser, got.Role)

			got.Name = "Renamed"
			got.ShippingAddresses = []models.ShippingAddress{{FullName: "T", City: "Pune"}}
			require.NoError(t, s.Users.Update(ctx, got))

			byID, err := s.Users.FindByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, "Renamed", byID.Name)
			require.Len(t, byID.ShippingAddresses, 1)
			assert.Equal(t, "Pune", byID.ShippingAddresses[0].City)

			_, err = s.Users.FindByID(ctx, primitive.NewObjectID())
			assert.ErrorIs(t, err, repositories.ErrNotFound)

			found, err := s.Users.FindByIDs(ctx, []primitive.ObjectID{u.ID, primitive.NewObjectID()})
			require.NoError(t, err)
			assert.Len(t, found, 1)
		})
	}
}

func TestProductListing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed := []*models.Product{
				product("yoga-mat-pro", models.Sports, 59.99, 55),
				product("resistance-bands-set", models.Sports, 34.99, 80),
				product("organic-coffee-beans", models.Food, 18.99, 3),
				product("100%-cotton", models.Clothing, 39.99, 10),
			}
			for _, p := range seed {
				require.NoError(t, s.Products.Create(ctx, p))
			}
			assert.ErrorIs(t, s.Products.Create(ctx, product("yoga-mat-pro", models.Sports, 1, 1)), repositories.ErrDuplicate)
			require.NoError(t, s.Products.SoftDelete(ctx, seed[1].ID))

			all, total, err := s.Products.List(ctx, models.ProductFilter{Page: 1, Limit: 12})
			require.NoError(t, err)
			assert.EqualValues(t, 3, total)
			assert.Equal(t, "100%-cotton", all[0].Slug, "newest first")

			sports, total, err := s.Products.List(ctx, models.ProductFilter{Category: models.Sports, IncludeDeleted: true, Page: 1, Limit: 12})
			require.NoError(t, err)
			assert.EqualValues(t, 2, total)
			assert.Len(t, sports, 2)

			_, total, err = s.Products.List(ctx, models.ProductFilter{Search: "%", Page: 1, Limit: 12})
			require.NoError(t, err)
			assert.EqualValues(t, 1, total, "search is literal")

			min, max := 20.0, 60.0
			ranged, _, err := s.Products.List(ctx, models.ProductFilter{MinPrice: &min, MaxPrice: &max, Page: 1, Limit: 1})
			require.NoError(t, err)
			assert.Len(t, ranged, 1)

			_, err = s.Products.FindBySlug(ctx, "resistance-bands-set", false)
			assert.ErrorIs(t, err, repositories.ErrNotFound)
			deleted, err := s.Products.FindBySlug(ctx, "resistance-bands-set", true)
			require.NoError(t, err)
			assert.True(t, deleted.IsDeleted)

			n, err := s.Products.CountActive(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 3, n)

			low, err := s.Products.LowStock(ctx, 5)
			require.NoError(t, err)
			require.Len(t, low, 1)
			assert.Equal(t, "organic-coffee-beans", low[0].Slug)

			cats, err := s.Products.Categories(ctx)
			require.NoError(t, err)
			assert.Equal(t, []models.Category{models.Clothing, models.Sports, models.Food}, cats)
		})
	}
}

func TestProductUpdateRejectsTakenSlug(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, b := product("a", models.Books, 10, 1), product("b", models.Books, 10, 1)
			require.NoError(t, s.Products.Create(ctx, a))
			require.NoError(t, s.Products.Create(ctx, b))

			b.Slug = "a"
			assert.ErrorIs(t, s.Products.Update(ctx, b), repositories.ErrDuplicate)

			b.Slug = "b"
			b.Price = 12.5
			require.NoError(t, s.Products.Update(ctx, b))
			got, err := s.Products.FindByID(ctx, b.ID, false)
			require.NoError(t, err)
			assert.Equal(t, 12.5, got.Price)
		})
	}
}

func TestDecrementStockIsConditional(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := product("yoga-mat-pro", models.Sports, 59.99, 10)
			require.NoError(t, s.Products.Create(ctx, p))

			var wg sync.WaitGroup
			var mu sync.Mutex
			ok := 0
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if s.Products.DecrementStock(ctx, p.ID, 3) == nil {
						mu.Lock()
						ok++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 3, ok)

			got, err := s.Products.FindByID(ctx, p.ID, false)
			require.NoError(t, err)
			assert.Equal(t, 1, got.Stock)

			assert.ErrorIs(t, s.Products.DecrementStock(ctx, p.ID, 2), repositories.ErrInsufficientStock)
			require.NoError(t, s.Products.IncrementStock(ctx, p.ID, 4))
			got, _ = s.Products.FindByID(ctx, p.ID, false)
			assert.Equal(t, 5, got.Stock)
		})
	}
}

func order(userID primitive.ObjectID, id string, total float64, status models.OrderStatus) *models.Order {
	return &models.Order{
		OrderID: id,
		UserID:  userID,
		Items: []models.OrderItem{
			{Product: primitive.NewObjectID(), Name: "Yoga Mat Pro", Price: total, Quantity: 1},
		},
		ShippingAddress: models.ShippingAddress{FullName: "Test User", City: "Pune"},
		TotalAmount:     total,
		Status:          status,
	}
}

func TestOrders(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			alice, bob := primitive.NewObjectID(), primitive.NewObjectID()
			o1 := order(alice, "ORD-1-AAAA", 100, models.StatusPending)
			o2 := order(bob, "ORD-2-BBBB", 50.5, models.StatusShipped)
			o3 := order(alice, "ORD-3-CCCC", 20, models.StatusPending)
			for _, o := range []*models.Order{o1, o2, o3} {
				require.NoError(t, s.Orders.Create(ctx, o))
			}
			assert.ErrorIs(t, s.Orders.Create(ctx, order(bob, "ORD-1-AAAA", 1, models.StatusPending)), repositories.ErrDuplicate)

			mine, err := s.Orders.ListByUser(ctx, alice)
			require.NoError(t, err)
			require.Len(t, mine, 2)
			assert.Equal(t, "ORD-3-CCCC", mine[0].OrderID)

			pending, total, err := s.Orders.List(ctx, models.OrderFilter{Status: models.StatusPending, Page: 1, Limit: 1})
			require.NoError(t, err)
			assert.EqualValues(t, 2, total)
			assert.Len(t, pending, 1)

			_, total, err = s.Orders.List(ctx, models.OrderFilter{Search: "bbbb", Page: 1, Limit: 10})
			require.NoError(t, err)
			assert.EqualValues(t, 1, total)

			future := time.Now().Add(time.Hour).UTC()
			_, total, err = s.Orders.List(ctx, models.OrderFilter{StartDate: &future, Page: 1, Limit: 10})
			require.NoError(t, err)
			assert.EqualValues(t, 0, total)

			sum, err := s.Orders.Summary(ctx, models.OrderFilter{})
			require.NoError(t, err)
			assert.InDelta(t, 170.5, sum.TotalRevenue, 1e-9)
			assert.EqualValues(t, 3, sum.TotalOrders)

			byStatus, err := s.Orders.CountByStatus(ctx)
			require.NoError(t, err)
			assert.Equal(t, []models.StatusCount{
				{Status: models.StatusPending, Count: 2},
				{Status: models.StatusShipped, Count: 1},
			}, byStatus)

			recent, err := s.Orders.Recent(ctx, 2)
			require.NoError(t, err)
			assert.Len(t, recent, 2)

			updated, err := s.Orders.UpdateStatus(ctx, o1.ID, models.StatusDelivered)
			require.NoError(t, err)
			assert.Equal(t, models.StatusDelivered, updated.Status)

			noted, err := s.Orders.AddNote(ctx, o1.ID, models.AdminNote{Note: "left at door", CreatedBy: bob, AuthorName: "Admin User", CreatedAt: time.Now()})
			require.NoError(t, err)
			require.Len(t, noted.AdminNotes, 1)
			assert.Equal(t, "left at door", noted.AdminNotes[0].Note)

			_, err = s.Orders.UpdateStatus(ctx, primitive.NewObjectID(), models.StatusCancelled)
			assert.ErrorIs(t, err, repositories.ErrNotFound)

			export, err := s.Orders.FindForExport(ctx, nil)
			require.NoError(t, err)
			assert.Len(t, export, 3)
			assert.Equal(t, "ORD-3-CCCC", export[0].OrderID)

			some, err := s.Orders.FindForExport(ctx, []primitive.ObjectID{o2.ID})
			require.NoError(t, err)
			require.Len(t, some, 1)
			assert.Equal(t, "ORD-2-BBBB", some[0].OrderID)
		})
	}
}
