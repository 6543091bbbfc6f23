package services

import (
	"errors"
	"fmt"

	"github.com/shashiranjanraj/storefront/app/repositories"
)

// Sentinel errors carry the message shown to API callers. Controllers map
// them to status codes with errors.Is.
var (
	ErrEmailTaken          = errors.New("User already exists with this email")
	ErrInvalidCredentials  = errors.New("Invalid email or password")
	ErrNotAdmin            = errors.New("Invalid credentials or insufficient permissions")
	ErrUserNotFound        = errors.New("User not found")
	ErrProductNotFound     = errors.New("Product not found")
	ErrSlugTaken           = errors.New("Product with this slug already exists")
	ErrOrderNotFound       = errors.New("Order not found")
	ErrForbidden           = errors.New("Access denied")
	ErrInvalidStatus       = errors.New("Invalid status")
	ErrNoteRequired        = errors.New("Note content is required")
	ErrImportEmpty         = errors.New("Products array is required")
	ErrInvalidCategory     = errors.New("Invalid category")
	errProductAlreadyExist = errors.New("Product already exists")
)

// OrderError rejects a checkout with a 400 and a human readable message.
type OrderError struct {
	Reason  string // metric label: not_found | insufficient_stock
	Message string
}

func (e *OrderError) Error() string { return e.Message }

func productMissing(id string) *OrderError {
	return &OrderError{Reason: "not_found", Message: fmt.Sprintf("Product %s not found", id)}
}

func outOfStock(name string, available int) *OrderError {
	return &OrderError{
		Reason:  "insufficient_stock",
		Message: fmt.Sprintf("Insufficient stock for %s. Available: %d", name, available),
	}
}

func notFound(err, sentinel error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return sentinel
	}
	return err
}

// ErrInvalidDate rejects an unparseable startDate/endDate filter.
var ErrInvalidDate = errors.New("Invalid date filter")
