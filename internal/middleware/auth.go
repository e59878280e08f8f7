package middleware

import (
	"net/http"
	"time"

	"schoolpoints/relay/internal/common"
	appcontext "schoolpoints/relay/internal/context"
	"schoolpoints/relay/internal/db/repositories"
	"schoolpoints/relay/internal/models/entities"
)

const credentialCacheTTL = 30 * time.Second

// TenantAuthMiddleware authenticates station traffic by tenant id and shared
// API key. The institution row is cached briefly so a busy tenant's pushes
// don't hit the registry on every request; a key rotation takes effect within
// the cache TTL.
func TenantAuthMiddleware(tenants *repositories.TenantRepository, cache *common.CacheService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := r.Header.Get("X-Tenant-Id")
			apiKey := r.Header.Get("X-API-Key")

			if tenantID == "" || apiKey == "" {
				http.Error(w, "Unauthorized. Missing tenant credentials", http.StatusUnauthorized)
				return
			}

			v, err := cache.GetOrSet("tenant:"+tenantID, credentialCacheTTL, func() (interface{}, error) {
				return tenants.GetByTenantID(r.Context(), tenantID)
			})
			if err != nil {
				http.Error(w, "Unauthorized. Unknown tenant", http.StatusUnauthorized)
				return
			}

			inst, ok := v.(*entities.Institution)
			if !ok || inst.APIKey == "" || inst.APIKey != apiKey {
				http.Error(w, "Unauthorized. Invalid API Key", http.StatusUnauthorized)
				return
			}

			ctx := appcontext.WithTenant(r.Context(), inst)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
