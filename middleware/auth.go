package middleware

import (
	"context"
	"net/http"
	"strings"

	"inkwell/internal/auth"
)

type contextKey string

// IdentityKey carries the verified auth.Identity through the request
// context.
const IdentityKey contextKey = "identity"

// Auth wraps a handler with credential verification. Tokens arrive as a
// Bearer header or, for clients that cannot set headers, a "token" query
// parameter.
func Auth(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if tokenString == "" {
				tokenString = r.URL.Query().Get("token")
			}
			if tokenString == "" {
				http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
				return
			}

			ident, err := verifier.Verify(tokenString)
			if err != nil {
				http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
