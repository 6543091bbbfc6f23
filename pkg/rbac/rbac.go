// Package rbac models who is calling and what they may do.
//
// Roles are a closed set. Handlers never compare role strings; routes are
// guarded by capabilities:
//
//	admin.Use(rbac.Require(rbac.ManageCatalog))
//	if rbac.Can(subject.Role, rbac.ViewAnyOrder) { ... }
package rbac

import (
	"context"
	"net/http"

	"github.com/shashiranjanraj/storefront/pkg/response"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// ParseRole maps a stored role string to a Role, defaulting to RoleUser.
func ParseRole(s string) Role {
	if r := Role(s); r.Valid() {
		return r
	}
	return RoleUser
}

// Capability is a single permission checked by routes and services.
type Capability string

const (
	PlaceOrder     Capability = "orders.place"
	ViewOwnOrders  Capability = "orders.view_own"
	ViewAnyOrder   Capability = "orders.view_any"
	ManageOrders   Capability = "orders.manage"
	ExportOrders   Capability = "orders.export"
	ManageCatalog  Capability = "catalog.manage"
	ViewDashboard  Capability = "dashboard.view"
	UseAdminPortal Capability = "admin.portal"
)

var grants = map[Role]map[Capability]bool{
	RoleUser: {
		PlaceOrder:    true,
		ViewOwnOrders: true,
	},
	RoleAdmin: {
		PlaceOrder:     true,
		ViewOwnOrders:  true,
		ViewAnyOrder:   true,
		ManageOrders:   true,
		ExportOrders:   true,
		ManageCatalog:  true,
		ViewDashboard:  true,
		UseAdminPortal: true,
	},
}

// Can reports whether role holds capability.
func Can(role Role, c Capability) bool {
	return grants[role][c]
}

// Subject is the authenticated caller, re-loaded from the datastore on
// every request.
type Subject struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Can reports whether the subject holds capability.
func (s *Subject) Can(c Capability) bool {
	return s != nil && Can(s.Role, c)
}

type ctxKey struct{}

// WithSubject stores s in ctx.
func WithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// SubjectFromCtx returns the authenticated subject, if any.
func SubjectFromCtx(ctx context.Context) (*Subject, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Subject)
	return s, ok && s != nil
}

// Require allows the request only when the authenticated subject holds every
// listed capability. It must run after the authentication middleware.
func Require(caps ...Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := SubjectFromCtx(r.Context())
			if !ok {
				response.Unauthorized(w, "Authentication required")
				return
			}
			for _, c := range caps {
				if !s.Can(c) {
					response.Forbidden(w, "Access denied. Admin only.")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
