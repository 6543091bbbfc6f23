package store

import (
	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/rbac"
)

// Auth is the session view of an App.
type Auth struct{ app *App }

// Token is the bearer token, or "" when signed out. It fits
// client.WithToken.
func (s *Auth) Token() string {
	var t string
	s.app.read(func(st *snapshot) { t = st.Auth.Token })
	return t
}

func (s *Auth) User() *models.PublicUser {
	var u *models.PublicUser
	s.app.read(func(st *snapshot) {
		if st.Auth.User != nil {
			cp := *st.Auth.User
			u = &cp
		}
	})
	return u
}

func (s *Auth) IsAuthenticated() bool { return s.Token() != "" }

// IsAdmin reports whether the signed-in user may open the admin console.
func (s *Auth) IsAdmin() bool {
	u := s.User()
	return u != nil && rbac.Can(u.Role, rbac.UseAdminPortal)
}

// SignIn stores the result of a register or login call.
func (s *Auth) SignIn(res *services.AuthResult) error {
	return s.app.update(AuthChanged, func(st *snapshot) error {
		u := res.User
		st.Auth = session{Token: res.Token, User: &u}
		return nil
	})
}

// Logout clears the session. The cart is kept.
func (s *Auth) Logout() error {
	return s.app.update(AuthChanged, func(st *snapshot) error {
		st.Auth = session{}
		return nil
	})
}
