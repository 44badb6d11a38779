// internal/app/features/events/routes.go
package events

import (
	"net/http"

	"github.com/dalemusser/impacthub/internal/app/policy/accesspolicy"
	"github.com/dalemusser/impacthub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the event endpoints (typically under "/api/events").
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	roles := func(op accesspolicy.Operation) func(http.Handler) http.Handler {
		return auth.RequireRole(h.Log, accesspolicy.Roles(op)...)
	}

	r.Get("/", h.ServeList)
	r.Get("/{id}", h.ServeGet)

	r.Group(func(pr chi.Router) {
		pr.Use(mw.Require)

		pr.With(roles(accesspolicy.EventListMine)).Get("/mine", h.ServeMine)
		pr.With(roles(accesspolicy.EventCreate)).Post("/", h.HandleCreate)
		pr.With(roles(accesspolicy.EventUpdate)).Put("/{id}", h.HandleUpdate)
		pr.With(roles(accesspolicy.EventDelete)).Delete("/{id}", h.HandleDelete)
		pr.With(roles(accesspolicy.EventRegister)).Post("/{id}/register", h.HandleRegister)
		pr.With(roles(accesspolicy.EventUnregister)).Delete("/{id}/register", h.HandleUnregister)
	})

	return r
}
