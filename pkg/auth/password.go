package auth

import (
	"github.com/shashiranjanraj/storefront/config"
	"golang.org/x/crypto/bcrypt"
)

// cost reads BCRYPT_COST, clamped to what bcrypt accepts. Tests lower it.
func cost() int {
	c := config.Int("BCRYPT_COST", bcrypt.DefaultCost)
	return max(bcrypt.MinCost, min(c, bcrypt.MaxCost))
}

func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost())
	return string(b), err
}

// CheckPassword reports whether plain matches hash. A malformed hash never matches.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
