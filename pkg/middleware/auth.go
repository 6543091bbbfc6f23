package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/rbac"
	"github.com/shashiranjanraj/storefront/pkg/response"
)

// SubjectLoader resolves the user id carried by a token into the current
// subject. It returns (nil, nil) when the user no longer exists.
type SubjectLoader func(ctx context.Context, userID string) (*rbac.Subject, error)

// Authenticate verifies the bearer token and re-loads the user it names on
// every request, so role changes and deleted accounts take effect
// immediately. The subject is stored with rbac.WithSubject.
//
// Websocket upgrades may pass the token as ?token= because browsers cannot
// set headers on a websocket handshake.
func Authenticate(load SubjectLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				response.Unauthorized(w, "Authentication required")
				return
			}

			claims, err := auth.ValidateToken(token)
			if err != nil {
				response.Unauthorized(w, "Invalid token")
				return
			}

			subject, err := load(r.Context(), claims.UserID)
			if err != nil {
				logger.WithCtx(r.Context()).Error("load subject", "user_id", claims.UserID, "error", err)
				response.Error(w, http.StatusInternalServerError, "Authentication failed")
				return
			}
			if subject == nil {
				response.Unauthorized(w, "User not found")
				return
			}

			next.ServeHTTP(w, r.WithContext(rbac.WithSubject(r.Context(), subject)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}
