package middleware

import (
	"net/http"
	"strings"

	"schoolpoints/relay/internal/auth"
)

// AdminAuthMiddleware validates the bearer token issued by admin login and
// stores its claims for handlers. Console-only routes sit behind this.
func AdminAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "Unauthorized. Missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseAdminToken(auth.Secret(), strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				http.Error(w, "Unauthorized. Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := auth.SetAdminClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
