// internal/app/features/dashboard/routes.go
package dashboard

import "github.com/go-chi/chi/v5"

// Routes mounts the public dashboard endpoints under "/api/dashboard".
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/metrics", h.ServeMetrics)
	r.Get("/leaderboard", h.ServeLeaderboard)
	return r
}
