package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/memorygrid/internal/api/apierr"
	"github.com/mcoot/memorygrid/internal/services/auth"
)

type contextKey string

const grantContextKey contextKey = "grant"

// TokenValidator resolves bearer tokens
type TokenValidator interface {
	ValidateToken(token string) (*auth.Grant, error)
}

// Auth creates authentication middleware
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			grant, err := validator.ValidateToken(token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), grantContextKey, grant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken reads the bearer token from the Authorization header, falling
// back to the access_token query parameter browsers use for websockets
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}

// GetGrant returns the authenticated grant from the request context
func GetGrant(ctx context.Context) *auth.Grant {
	grant, _ := ctx.Value(grantContextKey).(*auth.Grant)
	return grant
}

// MustGetGrant returns the authenticated grant or panics
func MustGetGrant(ctx context.Context) *auth.Grant {
	grant := GetGrant(ctx)
	if grant == nil {
		panic("no grant in context - auth middleware not applied?")
	}
	return grant
}
