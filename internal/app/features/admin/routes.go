// internal/app/features/admin/routes.go
package admin

import (
	"github.com/dalemusser/impacthub/internal/app/policy/accesspolicy"
	"github.com/dalemusser/impacthub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the admin endpoints under "/api/admin".
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.Require)

	r.Route("/users", func(ur chi.Router) {
		ur.Use(auth.RequireRole(h.Log, accesspolicy.Roles(accesspolicy.AdminUsers)...))
		ur.Get("/", h.ServeUsers)
		ur.Get("/stats", h.ServeStats)
		ur.Get("/{id}", h.ServeUser)
		ur.Put("/{id}", h.HandleUpdate)
		ur.Delete("/{id}", h.HandleDelete)
		ur.Patch("/{id}/promote", h.HandlePromote)
		ur.Patch("/{id}/verify", h.HandleVerify)
		ur.Patch("/{id}/reset-password", h.HandleResetPassword)
	})

	r.With(auth.RequireRole(h.Log, accesspolicy.Roles(accesspolicy.AdminAudit)...)).Get("/audit", h.ServeAudit)

	return r
}
