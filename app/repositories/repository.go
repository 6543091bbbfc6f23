// Package repositories persists users, products and orders. Each backend
// (MongoDB, SQL through gorm, in-memory) satisfies the same three
// interfaces so services never know which store they talk to.
package repositories

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/storefront/app/models"
)

var (
	ErrNotFound          = errors.New("repositories: not found")
	ErrDuplicate         = errors.New("repositories: duplicate key")
	ErrInsufficientStock = errors.New("repositories: insufficient stock")
)

type UserRepository interface {
	// Create assigns an id and timestamps. A taken email yields ErrDuplicate.
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByIDs returns the users that exist, keyed by id.
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error)
	Update(ctx context.Context, u *models.User) error
}

type ProductRepository interface {
	// Create assigns an id and timestamps. A taken slug yields ErrDuplicate.
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id primitive.ObjectID, includeDeleted bool) (*models.Product, error)
	FindBySlug(ctx context.Context, slug string, includeDeleted bool) (*models.Product, error)
	// List returns one page of matches, newest first, and the total match count.
	List(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error)
	Update(ctx context.Context, p *models.Product) error
	SoftDelete(ctx context.Context, id primitive.ObjectID) error
	// DecrementStock subtracts qty only while stock >= qty and the product is
	// not deleted; otherwise it returns ErrInsufficientStock.
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error
	IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error
	CountActive(ctx context.Context) (int64, error)
	// LowStock lists live products whose stock is at or below threshold.
	LowStock(ctx context.Context, threshold int) ([]models.Product, error)
	// Categories lists the distinct categories of live products.
	Categories(ctx context.Context) ([]models.Category, error)
}

type OrderRepository interface {
	// Create assigns an id and timestamps. A taken orderId yields ErrDuplicate.
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	List(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, error)
	Summary(ctx context.Context, f models.OrderFilter) (models.OrderSummary, error)
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
	Recent(ctx context.Context, n int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus) (*models.Order, error)
	AddNote(ctx context.Context, id primitive.ObjectID, note models.AdminNote) (*models.Order, error)
	// FindForExport returns the listed orders, or every order when ids is
	// empty, newest first.
	FindForExport(ctx context.Context, ids []primitive.ObjectID) ([]models.Order, error)
}

// Store groups the repositories of one backend.
type Store struct {
	Users    UserRepository
	Products ProductRepository
	Orders   OrderRepository
	Driver   string
	// Ping reports backend readiness for health probes.
	Ping func(ctx context.Context) error
	// Close releases the backend connection.
	Close func(ctx context.Context) error
}
