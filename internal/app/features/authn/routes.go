package authn

import (
	"github.com/dalemusser/impacthub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the account endpoints (typically under "/api/auth").
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", h.HandleSignup)
	r.Post("/login", h.HandleLogin)

	r.Group(func(pr chi.Router) {
		pr.Use(mw.Require)

		pr.Get("/me", h.ServeMe)
		pr.Put("/profile", h.HandleUpdateProfile)
		pr.Put("/password", h.HandleChangePassword)
		pr.Get("/notifications", h.ServeNotifications)
		pr.Post("/notifications/read", h.HandleMarkNotificationsRead)
	})

	return r
}
