package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"kindmesh/internal/identity"
)

// TokenValidator validates bearer tokens for the HTTP surface.
type TokenValidator interface {
	Validate(tokenString string) (Principal, error)
}

// Principal is the authenticated caller extracted from a token.
type Principal struct {
	Username string
	Role     identity.Role
}

type contextKeyPrincipal struct{}

// GetPrincipal retrieves the authenticated caller from the context.
// The zero Principal means the request was not authenticated.
func GetPrincipal(ctx context.Context) Principal {
	p, ok := ctx.Value(contextKeyPrincipal{}).(Principal)
	if !ok {
		return Principal{}
	}
	return p
}

// RequireAuth rejects requests without a valid bearer token and stores
// the principal in the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			principal, err := validator.Validate(token)
			if err != nil {
				if logger != nil {
					logger.WarnContext(r.Context(), "token validation failed",
						"request_id", GetRequestID(r.Context()),
						"error", err.Error(),
					)
				}
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyPrincipal{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin layers on RequireAuth and rejects non-admin principals.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetPrincipal(r.Context()).Role != identity.RoleAdmin {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
