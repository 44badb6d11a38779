// internal/app/features/ngos/routes.go
package ngos

import (
	"github.com/dalemusser/impacthub/internal/app/policy/accesspolicy"
	"github.com/dalemusser/impacthub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the NGO endpoints (typically under "/api/ngos"). Role
// gates come from the access policy table; ownership is checked by the
// service.
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Get("/{id}", h.ServeGet)

	r.Group(func(pr chi.Router) {
		pr.Use(mw.Require)

		pr.With(auth.RequireRole(h.Log, accesspolicy.Roles(accesspolicy.NGORegister)...)).Post("/", h.HandleRegister)
		pr.With(auth.RequireRole(h.Log, accesspolicy.Roles(accesspolicy.NGOUpdate)...)).Put("/{id}", h.HandleUpdate)
		pr.With(auth.RequireRole(h.Log, accesspolicy.Roles(accesspolicy.NGODelete)...)).Delete("/{id}", h.HandleDelete)
		pr.With(auth.RequireRole(h.Log, accesspolicy.Roles(accesspolicy.NGOVerify)...)).Patch("/{id}/verify", h.HandleVerify)
	})

	return r
}
