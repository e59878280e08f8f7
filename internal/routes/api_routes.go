package routes

import (
	"github.com/go-chi/chi/v5"

	"schoolpoints/relay/internal/api"
	"schoolpoints/relay/internal/middleware"
)

// RegisterAPIRoutes registers all API routes and handlers.
// Three trust levels: public (pre-credential), admin (bearer token from the
// console login), and station (tenant id + API key headers).
func RegisterAPIRoutes(r chi.Router, deps *api.Dependencies) {

	// Public routes: registration, console login and the pairing handshake.
	// Rate limited per IP since none of them carry credentials.
	r.Group(func(public chi.Router) {
		public.Use(middleware.RateLimitMiddleware)

		public.Post("/api/register", api.RegisterHandler(deps))
		public.Post("/api/admin/login", api.AdminLoginHandler(deps))
		public.Post("/api/device/pair/start", api.PairStartHandler(deps))
		public.Get("/api/device/pair/poll", api.PairPollHandler(deps))
	})

	// Console routes
	r.Group(func(admin chi.Router) {
		admin.Use(middleware.AdminAuthMiddleware())

		admin.Post("/api/device/pair/approve", api.PairApproveHandler(deps))
	})

	// Station routes: everything here acts on the authenticated tenant.
	r.Group(func(station chi.Router) {
		station.Use(middleware.TenantAuthMiddleware(deps.Repo.Tenants, deps.Services.Cache))

		station.Post("/sync/push", api.PushHandler(deps))
		station.Get("/sync/pull", api.PullHandler(deps))
		station.Post("/sync/snapshot", api.SnapshotUploadHandler(deps))
		station.Get("/sync/snapshot", api.SnapshotDownloadHandler(deps))

		station.Route("/sync/files", func(f chi.Router) {
			f.Post("/manifest", api.FileManifestHandler(deps))
			f.Post("/upload", api.FileUploadHandler(deps))
			f.Get("/download", api.FileDownloadHandler(deps))
		})

		station.Route("/holds", func(h chi.Router) {
			h.Post("/stock", api.StockHoldHandler(deps))
			h.Post("/scheduled", api.ScheduledHoldHandler(deps))
			h.Post("/refresh", api.HoldRefreshHandler(deps))
			h.Post("/clear", api.HoldClearHandler(deps))
			h.Post("/commit", api.HoldCommitHandler(deps))
		})
	})
}
