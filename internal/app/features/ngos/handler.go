// internal/app/features/ngos/handler.go
package ngos

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

// Handler serves the /api/ngos endpoints.
type Handler struct {
	Svc   *Service
	Audit *auditlog.Logger
	Log   *zap.Logger
}

func NewHandler(svc *Service, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Audit: audit, Log: logger}
}

// ServeList handles GET /api/ngos.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "ngo list")
	defer cancel()

	res, err := h.Svc.List(ctx, ListFilter{
		Search:    query.Get(r, "search"),
		Status:    query.Get(r, "status"),
		CreatedBy: query.Get(r, "created_by"),
	}, paging.Parse(r, paging.DefaultLimit))
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, res)
}

// ServeGet handles GET /api/ngos/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	n, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, n)
}

// HandleRegister handles POST /api/ngos.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	var in RegisterInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	n, err := h.Svc.Register(r.Context(), u, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Log.Info("ngo registered", zap.String("ngo_id", n.ID.Hex()), zap.String("user_id", u.ID.Hex()))
	respond.Message(w, http.StatusCreated, "NGO registered", "ngo", n)
}

// HandleUpdate handles PUT /api/ngos/{id}.
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
	n, err := h.Svc.Update(r.Context(), u, id, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Message(w, http.StatusOK, "NGO updated", "ngo", n)
}

// HandleDelete handles DELETE /api/ngos/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "ngo delete")
	defer cancel()

	if err := h.Svc.Delete(ctx, u, id); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Audit.NGODeleted(r.Context(), r, u.ID, id)
	respond.Message(w, http.StatusOK, "NGO deleted", "", nil)
}

// HandleVerify handles PATCH /api/ngos/{id}/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	n, err := h.Svc.Verify(r.Context(), u, id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Audit.NGOVerified(r.Context(), r, u.ID, id, "admin")
	respond.Message(w, http.StatusOK, "NGO verified successfully", "ngo", n)
}
