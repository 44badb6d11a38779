// internal/app/features/participations/routes.go
package participations

import (
	"github.com/dalemusser/impacthub/internal/app/policy/accesspolicy"
	"github.com/dalemusser/impacthub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the participation endpoints under "/api/participations".
// Every route needs a signed-in user.
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.Require)

	manage := auth.RequireRole(h.Log, accesspolicy.Roles(accesspolicy.ParticipationManage)...)

	r.With(auth.RequireRole(h.Log, accesspolicy.Roles(accesspolicy.ParticipationListMine)...)).Get("/my", h.ServeMine)
	r.With(manage).Get("/event/{eventId}", h.ServeByEvent)
	r.With(manage).Patch("/{id}/attendance", h.HandleAttendance)
	r.With(manage).Patch("/{id}/certificate", h.HandleCertificate)
	r.With(auth.RequireRole(h.Log, accesspolicy.Roles(accesspolicy.ParticipationFeedback)...)).Patch("/{id}/feedback", h.HandleFeedback)

	return r
}
