package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category is the closed set of catalog categories.
type Category string

const (
	Electronics Category = "Electronics"
	Clothing    Category = "Clothing"
	Books       Category = "Books"
	HomeGarden  Category = "Home & Garden"
	Sports      Category = "Sports"
	Toys        Category = "Toys"
	Food        Category = "Food"
	OtherGoods  Category = "Other"
)

// All as a category or status query value means no filter.
const All = "All"

// Categories lists every category in display order.
var Categories = []Category{Electronics, Clothing, Books, HomeGarden, Sports, Toys, Food, OtherGoods}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Product is a catalog entry. Deleted products stay in the store so that
// historical orders keep resolving.
type Product struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty"        json:"_id"`
	Name        string              `bson:"name"                 json:"name"`
	Slug        string              `bson:"slug"                 json:"slug"`
	Description string              `bson:"description"          json:"description"`
	Price       float64             `bson:"price"                json:"price"`
	Category    Category            `bson:"category"             json:"category"`
	Weight      float64             `bson:"weight"               json:"weight"`
	Stock       int                 `bson:"stock"                json:"stock"`
	Images      []string            `bson:"images"               json:"images"`
	IsDeleted   bool                `bson:"isDeleted"            json:"isDeleted"`
	CreatedBy   *primitive.ObjectID `bson:"createdBy,omitempty"  json:"createdBy,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt"            json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt"            json:"updatedAt"`
}

// FirstImage is the snapshot image for order lines.
func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ProductFilter narrows catalog queries. Zero values mean "no filter".
type ProductFilter struct {
	Category       Category
	Search         string
	MatchSlug      bool // admin search also matches slug
	MinPrice       *float64
	MaxPrice       *float64
	IncludeDeleted bool
	Page           int
	Limit          int
}

// Skip is the offset for the filter's page.
func (f ProductFilter) Skip() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}
