package authn

import (
	"errors"
	"net/http"

	"github.com/dalemusser/impacthub/internal/app/system/apperr"
	"github.com/dalemusser/impacthub/internal/app/system/auditlog"
	"github.com/dalemusser/impacthub/internal/app/system/auth"
	"github.com/dalemusser/impacthub/internal/app/system/metrics"
	"github.com/dalemusser/impacthub/internal/app/system/normalize"
	"github.com/dalemusser/impacthub/internal/app/system/ratelimit"
	"github.com/dalemusser/impacthub/internal/app/system/respond"
	"go.uber.org/zap"
)

// Handler serves the /api/auth endpoints.
type Handler struct {
	Svc     *Service
	Limiter *ratelimit.LoginLimiter
	Audit   *auditlog.Logger
	Log     *zap.Logger
}

func NewHandler(svc *Service, limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Limiter: limiter, Audit: audit, Log: logger}
}

// HandleSignup handles POST /api/auth/signup.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in SignupInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	sess, err := h.Svc.Signup(r.Context(), in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Audit.Signup(r.Context(), r, sess.User.ID, sess.User.Email)
	respond.Created(w, sess)
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles POST /api/auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	email := normalize.Email(in.Email)

	if h.Limiter != nil {
		if ok, limit := h.Limiter.Check(r, email); !ok {
			metrics.LoginsThrottled.WithLabelValues(limit).Inc()
			h.Audit.LoginFailedRateLimit(r.Context(), r, email, limit)
			respond.JSON(w, http.StatusTooManyRequests, map[string]string{
				"error":   "rate_limited",
				"message": ratelimit.Message(limit),
			})
			return
		}
	}

	sess, u, err := h.Svc.Login(r.Context(), email, in.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownEmail):
			h.Audit.LoginFailedUserNotFound(r.Context(), r, email)
		case errors.Is(err, ErrWrongPassword) && u != nil:
			h.Audit.LoginFailedWrongPassword(r.Context(), r, u.ID, email)
		}
		respond.Error(w, r, h.Log, err)
		return
	}

	if h.Limiter != nil {
		h.Limiter.ResetEmail(r.Context(), email)
	}
	h.Audit.LoginSuccess(r.Context(), r, u.ID, email)
	respond.OK(w, sess)
}

// ServeMe handles GET /api/auth/me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		respond.Error(w, r, h.Log, apperr.Unauthenticated("authentication required"))
		return
	}
	respond.OK(w, map[string]any{"user": u})
}

// HandleUpdateProfile handles PUT /api/auth/profile.
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	var in ProfileInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	updated, err := h.Svc.UpdateProfile(r.Context(), u, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Message(w, http.StatusOK, "Profile updated", "user", updated)
}

type passwordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// HandleChangePassword handles PUT /api/auth/password.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	var in passwordInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if err := h.Svc.ChangePassword(r.Context(), u, in.CurrentPassword, in.NewPassword); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Audit.PasswordChanged(r.Context(), r, u.ID)
	respond.Message(w, http.StatusOK, "Password updated", "", nil)
}

// ServeNotifications handles GET /api/auth/notifications.
func (h *Handler) ServeNotifications(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	list, err := h.Svc.Notifications(r.Context(), u)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, map[string]any{"data": list})
}

// HandleMarkNotificationsRead handles POST /api/auth/notifications/read.
func (h *Handler) HandleMarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	if err := h.Svc.MarkNotificationsRead(r.Context(), u); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Message(w, http.StatusOK, "Notifications marked as read", "", nil)
}
