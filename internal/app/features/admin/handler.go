// internal/app/features/admin/handler.go
package admin

import (
	"net/http"

	"github.com/dalemusser/impacthub/internal/app/system/auditlog"
	"github.com/dalemusser/impacthub/internal/app/system/auth"
	"github.com/dalemusser/impacthub/internal/app/system/paging"
	"github.com/dalemusser/impacthub/internal/app/system/respond"
	"github.com/dalemusser/impacthub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// Handler serves /api/admin.
type Handler struct {
	Svc   *Service
	Audit *auditlog.Logger
	Log   *zap.Logger
}

func NewHandler(svc *Service, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Audit: audit, Log: logger}
}

// ServeUsers handles GET /api/admin/users.
func (h *Handler) ServeUsers(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "admin user list")
	defer cancel()

	res, err := h.Svc.ListUsers(ctx, u, ListFilter{
		Search: query.Get(r, "search"),
		Role:   query.Get(r, "role"),
	}, paging.Parse(r, paging.AdminDefaultLimit))
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, res)
}

// ServeStats handles GET /api/admin/users/stats.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "admin user stats")
	defer cancel()

	st, err := h.Svc.Stats(ctx, u)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, st)
}

// ServeUser handles GET /api/admin/users/{id}.
func (h *Handler) ServeUser(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	target, err := h.Svc.GetUser(r.Context(), u, id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, target)
}

// HandleUpdate handles PUT /api/admin/users/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	var in UpdateInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	target, fields, err := h.Svc.UpdateUser(r.Context(), u, id, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Audit.UserUpdated(r.Context(), r, u.ID, id, fields)
	respond.Message(w, http.StatusOK, "User updated successfully", "user", target)
}

// HandleDelete handles DELETE /api/admin/users/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "admin user delete")
	defer cancel()

	role, err := h.Svc.DeleteUser(ctx, u, id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Audit.UserDeleted(r.Context(), r, u.ID, id, role)
	h.Log.Info("user deleted", zap.String("user_id", id.Hex()), zap.String("role", role), zap.String("actor_id", u.ID.Hex()))
	respond.Message(w, http.StatusOK, "User deleted successfully", "", nil)
}

// HandlePromote handles PATCH /api/admin/users/{id}/promote.
func (h *Handler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	target, err := h.Svc.Promote(r.Context(), u, id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Audit.UserPromoted(r.Context(), r, u.ID, id)
	respond.Message(w, http.StatusOK, "User promoted to NGO_ADMIN successfully", "user", target)
}

// HandleVerify handles PATCH /api/admin/users/{id}/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	target, err := h.Svc.VerifyNGOAdmin(r.Context(), u, id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Audit.NGOAdminVerified(r.Context(), r, u.ID, id)
	respond.Message(w, http.StatusOK, "NGO Admin verified successfully", "user", target)
}

type resetPasswordInput struct {
	NewPassword string `json:"new_password"`
}

// HandleResetPassword handles PATCH /api/admin/users/{id}/reset-password.
func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	var in resetPasswordInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if err := h.Svc.ResetPassword(r.Context(), u, id, in.NewPassword); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Audit.PasswordReset(r.Context(), r, u.ID, id)
	respond.Message(w, http.StatusOK, "Password reset successfully", "", nil)
}

// ServeAudit handles GET /api/admin/audit.
func (h *Handler) ServeAudit(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	res, err := h.Svc.Audit(ctx, u, AuditFilter{
		Category:  query.Get(r, "category"),
		EventType: query.Get(r, "event_type"),
		User:      query.Get(r, "user"),
		StartDate: query.Get(r, "start_date"),
		EndDate:   query.Get(r, "end_date"),
	}, paging.Parse(r, paging.AdminDefaultLimit))
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, res)
}
