package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/rbac"
)

type RegisterInput struct {
	Name     string `json:"name"     validate:"required"        msg:"Name is required"`
	Email    string `json:"email"    validate:"required,email"  msg:"Valid email is required"`
	Password string `json:"password" validate:"required,min=6"  msg:"Password must be at least 6 characters"`
}

type LoginInput struct {
	Email    string `json:"email"    validate:"required,email" msg:"Valid email is required"`
	Password string `json:"password" validate:"required"       msg:"Password is required"`
}

// ProfileInput updates only the fields that are present.
type ProfileInput struct {
	Name              string                   `json:"name"`
	ShippingAddresses []models.ShippingAddress `json:"shippingAddresses" validate:"nullable,dive"`
}

// AuthResult is returned by register and both logins.
type AuthResult struct {
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

type AuthService struct {
	users repositories.UserRepository
}

func NewAuthService(users repositories.UserRepository) *AuthService {
	return &AuthService{users: users}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user := &models.User{
		Name:              strings.TrimSpace(in.Name),
		Email:             strings.ToLower(strings.TrimSpace(in.Email)),
		Password:          hash,
		Role:              rbac.RoleUser,
		ShippingAddresses: []models.ShippingAddress{},
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := s.verify(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// AdminLogin is Login restricted to accounts that may use the admin portal.
// A wrong password and a non-admin account fail the same way.
func (s *AuthService) AdminLogin(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := s.verify(ctx, in)
	if errors.Is(err, ErrInvalidCredentials) || (err == nil && !rbac.Can(user.Role, rbac.UseAdminPortal)) {
		return nil, ErrNotAdmin
	}
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) verify(ctx context.Context, in LoginInput) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.Password, in.Password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := auth.GenerateToken(user.ID.Hex())
	if err != nil {
		return nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return &AuthResult{Token: token, User: user.Public()}, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*models.User, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = name
	}
	if in.ShippingAddresses != nil {
		user.ShippingAddresses = in.ShippingAddresses
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

// Principal loads the caller behind a token. A missing user yields
// (nil, nil) so the middleware can answer 401.
func (s *AuthService) Principal(ctx context.Context, userID string) (*rbac.Subject, error) {
	user, err := s.Profile(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user.Subject(), nil
}

// EnsureAdmin creates an admin account, or promotes and re-keys the existing
// one with that email. Used by the seeder and the admin:create command.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		user.Role = rbac.RoleAdmin
		user.Password = hash
		return user, s.users.Update(ctx, user)
	case errors.Is(err, repositories.ErrNotFound):
		user = &models.User{Name: name, Email: email, Password: hash, Role: rbac.RoleAdmin, ShippingAddresses: []models.ShippingAddress{}}
		return user, s.users.Create(ctx, user)
	default:
		return nil, err
	}
}
