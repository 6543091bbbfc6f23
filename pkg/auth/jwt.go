// Package auth signs session tokens and hashes passwords.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shashiranjanraj/storefront/config"
)

// Claims carries only the user id. Role and profile are re-read from the
// datastore on every request.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

// Issuer signs and verifies HS256 tokens for one secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	name   string
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, name: config.AppName()}
}

// Sign returns a token for userID and the moment it stops being accepted.
func (i *Issuer) Sign(userID string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(i.ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.name,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	return signed, exp, err
}

func (i *Issuer) Verify(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	// Tokens minted before the issuer claim existed carry none; accept those.
	if claims.Issuer != "" && claims.Issuer != i.name {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// issuer reads the current JWT_SECRET and JWT_TTL.
func issuer() *Issuer { return NewIssuer(config.JWTSecret(), config.JWTTTL()) }

// GenerateToken signs a token for userID with the configured secret and TTL.
func GenerateToken(userID string) (string, error) {
	tok, _, err := issuer().Sign(userID)
	return tok, err
}

// ValidateToken verifies t against the configured secret.
func ValidateToken(t string) (*Claims, error) { return issuer().Verify(t) }
