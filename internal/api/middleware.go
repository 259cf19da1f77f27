/**
 * @description
 * This file contains custom middleware for the HTTP router. The auth
 * middleware validates the bearer token and stores the verified principal in
 * the request context; handlers then pass the principal explicitly into the
 * application layer.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - internal/app: Token verification.
 */

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/lumenbank/ledger-service/internal/app"
)

// PrincipalContextKey is a custom type for the context key to avoid collisions.
type PrincipalContextKey string

const principalKey PrincipalContextKey = "principal"

// AuthMiddleware creates a middleware that validates bearer tokens issued by
// the authenticator and rejects requests without a verifiable principal.
func AuthMiddleware(auth *app.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			principal, err := auth.VerifyToken(tokenString)
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal retrieves the authenticated principal from the request context.
func GetPrincipal(ctx context.Context) (string, bool) {
	principal, ok := ctx.Value(principalKey).(string)
	return principal, ok
}
