package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus is the order lifecycle value. Any status may move to any other.
type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

var OrderStatuses = []OrderStatus{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

func (s OrderStatus) Valid() bool {
	for _, k := range OrderStatuses {
		if s == k {
			return true
		}
	}
	return false
}

// ShippingAddress is a value object copied into each order.
type ShippingAddress struct {
	FullName string `bson:"fullName" json:"fullName" validate:"required" msg:"Full name is required"`
	Phone    string `bson:"phone"    json:"phone"    validate:"required" msg:"Phone is required"`
	Address  string `bson:"address"  json:"address"  validate:"required" msg:"Address is required"`
	City     string `bson:"city"     json:"city"     validate:"required" msg:"City is required"`
	State    string `bson:"state"    json:"state"    validate:"required" msg:"State is required"`
	ZipCode  string `bson:"zipCode"  json:"zipCode"  validate:"required" msg:"Zip code is required"`
	Country  string `bson:"country"  json:"country"  validate:"required" msg:"Country is required"`
}

// OrderItem is the frozen snapshot of a product at checkout.
type OrderItem struct {
	Product  primitive.ObjectID `bson:"product"  json:"product"`
	Name     string             `bson:"name"     json:"name"`
	Price    float64            `bson:"price"    json:"price"`
	Quantity int                `bson:"quantity" json:"quantity"`
	Image    string             `bson:"image"    json:"image"`
}

// AdminNote is an append-only annotation.
type AdminNote struct {
	Note       string             `bson:"note"       json:"note"`
	CreatedBy  primitive.ObjectID `bson:"createdBy"  json:"createdBy"`
	AuthorName string             `bson:"authorName" json:"authorName"`
	CreatedAt  time.Time          `bson:"createdAt"  json:"createdAt"`
}

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"   json:"_id"`
	OrderID         string             `bson:"orderId"         json:"orderId"`
	UserID          primitive.ObjectID `bson:"user"            json:"-"`
	Customer        *Customer          `bson:"-"               json:"user,omitempty"`
	Items           []OrderItem        `bson:"items"           json:"items"`
	ShippingAddress ShippingAddress    `bson:"shippingAddress" json:"shippingAddress"`
	TotalAmount     float64            `bson:"totalAmount"     json:"totalAmount"`
	Status          OrderStatus        `bson:"status"          json:"status"`
	AdminNotes      []AdminNote        `bson:"adminNotes"      json:"adminNotes"`
	CreatedAt       time.Time          `bson:"createdAt"       json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"       json:"updatedAt"`
}

// ItemCount is the number of order lines.
func (o *Order) ItemCount() int { return len(o.Items) }

// OrderFilter narrows admin order queries.
type OrderFilter struct {
	Status    OrderStatus
	Search    string // substring of orderId, case-insensitive
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

func (f OrderFilter) Skip() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// OrderSummary aggregates the orders matching a filter.
type OrderSummary struct {
	TotalRevenue float64 `json:"totalRevenue"`
	TotalOrders  int64   `json:"totalOrders"`
}

// StatusCount is one row of the orders-by-status breakdown.
type StatusCount struct {
	Status OrderStatus `json:"status"`
	Count  int64       `json:"count"`
}
