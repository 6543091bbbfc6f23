package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/storefront/pkg/rbac"
)

// User is a storefront account. Password holds the bcrypt hash and never
// leaves the server.
type User struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"      json:"_id"`
	Name              string             `bson:"name"               json:"name"`
	Email             string             `bson:"email"              json:"email"`
	Password          string             `bson:"password"           json:"-"`
	Role              rbac.Role          `bson:"role"               json:"role"`
	ShippingAddresses []ShippingAddress  `bson:"shippingAddresses"  json:"shippingAddresses"`
	CreatedAt         time.Time          `bson:"createdAt"          json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt"          json:"updatedAt"`
}

// PublicUser is the shape returned next to a token.
type PublicUser struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  rbac.Role `json:"role"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID.Hex(), Name: u.Name, Email: u.Email, Role: u.Role}
}

// Subject converts u into the principal carried on the request context.
func (u *User) Subject() *rbac.Subject {
	return &rbac.Subject{ID: u.ID.Hex(), Name: u.Name, Email: u.Email, Role: u.Role}
}

// Customer is the populated user reference embedded in order responses.
type Customer struct {
	ID    primitive.ObjectID `json:"_id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
}

func (u *User) Customer() *Customer {
	return &Customer{ID: u.ID, Name: u.Name, Email: u.Email}
}
