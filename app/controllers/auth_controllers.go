package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
)

type AuthController struct {
	service *services.AuthService
}

func NewAuthController(service *services.AuthService) *AuthController {
	return &AuthController{service: service}
}

// Register  POST /api/auth/register
func (h *AuthController) Register(c *ctx.Context) {
	var in services.RegisterInput
	if !c.BindJSON(&in) {
		return
	}
	res, err := h.service.Register(c.Context(), in)
	if err != nil {
		abort(c, err, "Server error during registration")
		return
	}
	c.Created("Registration successful", res)
}

// Login  POST /api/auth/login
func (h *AuthController) Login(c *ctx.Context) {
	var in services.LoginInput
	if !c.BindJSON(&in) {
		return
	}
	res, err := h.service.Login(c.Context(), in)
	if err != nil {
		abort(c, err, "Server error during login")
		return
	}
	c.Respond(http.StatusOK, "Login successful", res)
}

// Profile  GET /api/auth/profile
func (h *AuthController) Profile(c *ctx.Context) {
	user, err := h.service.Profile(c.Context(), c.Subject().ID)
	if err != nil {
		abort(c, err, "Server error fetching profile")
		return
	}
	c.Success(M{"user": user})
}

// UpdateProfile  PUT /api/auth/profile
func (h *AuthController) UpdateProfile(c *ctx.Context) {
	var in services.ProfileInput
	if !c.BindJSON(&in) {
		return
	}
	user, err := h.service.UpdateProfile(c.Context(), c.Subject().ID, in)
	if err != nil {
		abort(c, err, "Server error updating profile")
		return
	}
	c.Respond(http.StatusOK, "Profile updated successfully", M{"user": user})
}

// AdminLogin  POST /api/admin/auth/login
func (h *AuthController) AdminLogin(c *ctx.Context) {
	var in services.LoginInput
	if !c.BindJSON(&in) {
		return
	}
	res, err := h.service.AdminLogin(c.Context(), in)
	if err != nil {
		abort(c, err, "Server error during admin login")
		return
	}
	c.Respond(http.StatusOK, "Admin login successful", res)
}

// AdminProfile  GET /api/admin/auth/profile
func (h *AuthController) AdminProfile(c *ctx.Context) {
	user, err := h.service.Profile(c.Context(), c.Subject().ID)
	if err != nil {
		abort(c, err, "Server error fetching admin profile")
		return
	}
	c.Success(M{"user": user})
}
