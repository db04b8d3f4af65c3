// Package middleware provides HTTP middleware for the hub API.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelsilo/silo/pkg/auth"
	"github.com/modelsilo/silo/pkg/models"
)

// Context key type for storing the authenticated principal.
type contextKey string

const principalContextKey contextKey = "principal"

// GetPrincipal retrieves the authenticated principal from the request
// context. Returns nil for anonymous requests.
func GetPrincipal(ctx context.Context) *auth.Principal {
	p, ok := ctx.Value(principalContextKey).(*auth.Principal)
	if !ok {
		return nil
	}
	return p
}

// WithPrincipal stores a principal in a context. Exposed for tests.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// Authenticate resolves the request credential (API token, session
// bearer or cookie) into a principal and stores it in the context.
//
// Requests without any credential continue anonymously; handlers decide
// per route whether anonymous access is allowed. Requests with a bad
// credential are rejected here so a client never silently degrades to
// anonymous.
func Authenticate(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authenticator.Authenticate(r.Context(), r)
			if err != nil {
				kind := "invalid_credentials"
				if errors.Is(err, models.ErrRevokedToken) {
					kind = "revoked_token"
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Error-Code", kind)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"` + kind + `"}`))
				return
			}
			if principal != nil {
				r = r.WithContext(WithPrincipal(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}
