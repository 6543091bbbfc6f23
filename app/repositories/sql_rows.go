package repositories

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/pkg/rbac"
)

// UserRow, ProductRow and OrderRow are the SQL shapes of the domain models.
// Ids keep the 24-hex ObjectID form so that tokens and URLs look the same on
// every backend. Nested values are stored as JSON columns.
type UserRow struct {
	ID                string                   `gorm:"primaryKey;size:24"`
	Name              string                   `gorm:"size:255;not null"`
	Email             string                   `gorm:"size:191;uniqueIndex;not null"`
	Password          string                   `gorm:"size:255;not null"`
	Role              string                   `gorm:"size:16;not null;default:user"`
	ShippingAddresses []models.ShippingAddress `gorm:"serializer:json"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (UserRow) TableName() string { return "users" }

type ProductRow struct {
	ID          string    `gorm:"primaryKey;size:24"`
	Name        string    `gorm:"size:255;not null"`
	Slug        string    `gorm:"size:191;uniqueIndex;not null"`
	Description string    `gorm:"type:text"`
	Price       float64   `gorm:"not null"`
	Category    string    `gorm:"size:32;index"`
	Weight      float64   `gorm:"not null"`
	Stock       int       `gorm:"not null;default:0"`
	Images      []string  `gorm:"serializer:json"`
	IsDeleted   bool      `gorm:"index;not null;default:false"`
	CreatedBy   string    `gorm:"size:24"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
}

func (ProductRow) TableName() string { return "products" }

type OrderRow struct {
	ID              string                 `gorm:"primaryKey;size:24"`
	OrderID         string                 `gorm:"column:order_id;size:64;uniqueIndex;not null"`
	UserID          string                 `gorm:"size:24;index;not null"`
	Items           []models.OrderItem     `gorm:"serializer:json"`
	ShippingAddress models.ShippingAddress `gorm:"serializer:json"`
	TotalAmount     float64                `gorm:"not null"`
	Status          string                 `gorm:"size:16;index;not null"`
	AdminNotes      []models.AdminNote     `gorm:"serializer:json"`
	CreatedAt       time.Time              `gorm:"index"`
	UpdatedAt       time.Time
}

func (OrderRow) TableName() string { return "orders" }

func oid(hex string) primitive.ObjectID {
	id, _ := primitive.ObjectIDFromHex(hex)
	return id
}

func toUserRow(u *models.User) UserRow {
	return UserRow{
		ID:                u.ID.Hex(),
		Name:              u.Name,
		Email:             u.Email,
		Password:          u.Password,
		Role:              string(u.Role),
		ShippingAddresses: u.ShippingAddresses,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func (r UserRow) model() *models.User {
	addrs := r.ShippingAddresses
	if addrs == nil {
		addrs = []models.ShippingAddress{}
	}
	return &models.User{
		ID:                oid(r.ID),
		Name:              r.Name,
		Email:             r.Email,
		Password:          r.Password,
		Role:              rbac.ParseRole(r.Role),
		ShippingAddresses: addrs,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func toProductRow(p *models.Product) ProductRow {
	row := ProductRow{
		ID:          p.ID.Hex(),
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       p.Price,
		Category:    string(p.Category),
		Weight:      p.Weight,
		Stock:       p.Stock,
		Images:      p.Images,
		IsDeleted:   p.IsDeleted,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.CreatedBy != nil {
		row.CreatedBy = p.CreatedBy.Hex()
	}
	return row
}

func (r ProductRow) model() models.Product {
	p := models.Product{
		ID:          oid(r.ID),
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Price:       r.Price,
		Category:    models.Category(r.Category),
		Weight:      r.Weight,
		Stock:       r.Stock,
		Images:      r.Images,
		IsDeleted:   r.IsDeleted,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if r.CreatedBy != "" {
		by := oid(r.CreatedBy)
		p.CreatedBy = &by
	}
	return p
}

func toOrderRow(o *models.Order) OrderRow {
	return OrderRow{
		ID:              o.ID.Hex(),
		OrderID:         o.OrderID,
		UserID:          o.UserID.Hex(),
		Items:           o.Items,
		ShippingAddress: o.ShippingAddress,
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		AdminNotes:      o.AdminNotes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (r OrderRow) model() models.Order {
	o := models.Order{
		ID:              oid(r.ID),
		OrderID:         r.OrderID,
		UserID:          oid(r.UserID),
		Items:           r.Items,
		ShippingAddress: r.ShippingAddress,
		TotalAmount:     r.TotalAmount,
		Status:          models.OrderStatus(r.Status),
		AdminNotes:      r.AdminNotes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if o.Items == nil {
		o.Items = []models.OrderItem{}
	}
	if o.AdminNotes == nil {
		o.AdminNotes = []models.AdminNote{}
	}
	return o
}

func productModels(rows []ProductRow) []models.Product {
	out := make([]models.Product, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out
}

func orderModels(rows []OrderRow) []models.Order {
	out := make([]models.Order, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out
}
