// internal/app/features/events/handler.go
package events

import (
	"net/http"

	"github.com/dalemusser/impacthub/internal/app/system/auth"
	"github.com/dalemusser/impacthub/internal/app/system/paging"
	"github.com/dalemusser/impacthub/internal/app/system/respond"
	"github.com/dalemusser/impacthub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// Handler serves the /api/events endpoints.
type Handler struct {
	Svc *Service
	Log *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

// ServeList handles GET /api/events.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "event list")
	defer cancel()

	res, err := h.Svc.List(ctx, ListFilter{
		Search:   query.Get(r, "search"),
		Status:   query.Get(r, "status"),
		Category: query.Get(r, "category"),
		NGO:      query.Get(r, "ngo"),
	}, paging.Parse(r, paging.DefaultLimit))
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, res)
}

// ServeGet handles GET /api/events/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	v, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, v)
}

// ServeMine handles GET /api/events/mine.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	rows, err := h.Svc.ListMine(r.Context(), u)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if rows == nil {
		rows = []View{}
	}
	respond.OK(w, map[string]any{"data": rows})
}

// HandleCreate handles POST /api/events.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	var in CreateInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	v, err := h.Svc.Create(r.Context(), u, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Log.Info("event created", zap.String("event_id", v.ID.Hex()), zap.String("ngo_id", v.NGO.Hex()))
	respond.Message(w, http.StatusCreated, "Event created", "event", v)
}

// HandleUpdate handles PUT /api/events/{id}.
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
	v, err := h.Svc.Update(r.Context(), u, id, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Message(w, http.StatusOK, "Event updated", "event", v)
}

// HandleDelete handles DELETE /api/events/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "event delete")
	defer cancel()

	if err := h.Svc.Delete(ctx, u, id); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Log.Info("event deleted", zap.String("event_id", id.Hex()), zap.String("user_id", u.ID.Hex()))
	respond.Message(w, http.StatusOK, "Event deleted", "", nil)
}

// HandleRegister handles POST /api/events/{id}/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	p, err := h.Svc.Register(r.Context(), u, id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Message(w, http.StatusCreated, "Registered for event", "participation", p)
}

// HandleUnregister handles DELETE /api/events/{id}/register.
func (h *Handler) HandleUnregister(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if err := h.Svc.Unregister(r.Context(), u, id); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Message(w, http.StatusOK, "Unregistered from event", "", nil)
}
