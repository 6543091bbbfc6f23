package bind_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/bind"
)

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func request(body, contentType string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return r
}

func TestJSONValid(t *testing.T) {
	var in loginInput
	errs, err := bind.JSON(request(`{"email":"user@example.com","password":"User@12345"}`, "application/json"), &in)
	require.NoError(t, err)
	assert.Nil(t, errs)
	assert.Equal(t, "user@example.com", in.Email)
}

func TestJSONRuleFailures(t *testing.T) {
	var in loginInput
	errs, err := bind.JSON(request(`{"email":"nope"}`, ""), &in)
	require.NoError(t, err)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
}

func TestJSONDecodeErrors(t *testing.T) {
	config.Set("MAX_BODY_BYTES", "64")
	t.Cleanup(func() { config.Set("MAX_BODY_BYTES", "") })

	cases := map[string]struct {
		body, ct string
		status   int
	}{
		"malformed":     {`{"email":`, "application/json", http.StatusBadRequest},
		"trailing data": {`{} {}`, "application/json", http.StatusBadRequest},
		"form body":     {`email=a`, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		"too large":     {`{"email":"` + strings.Repeat("a", 100) + `"}`, "application/json", http.StatusRequestEntityTooLarge},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var in loginInput
			_, err := bind.JSON(request(tc.body, tc.ct), &in)
			var be *bind.Error
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tc.status, be.Status)
		})
	}
}
