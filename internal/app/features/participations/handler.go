// internal/app/features/participations/handler.go
package participations

import (
	"net/http"

	"github.com/dalemusser/impacthub/internal/app/system/auth"
	"github.com/dalemusser/impacthub/internal/app/system/respond"
	"github.com/dalemusser/impacthub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Svc *Service
	Log *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

// ServeMine handles GET /api/participations/my.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "participation list mine")
	defer cancel()

	rows, err := h.Svc.ListMine(ctx, u)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, map[string]any{"data": rows})
}

// ServeByEvent handles GET /api/participations/event/{eventId}.
func (h *Handler) ServeByEvent(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	eventID, err := respond.ObjectID(r, "eventId")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "participation roster")
	defer cancel()

	rows, err := h.Svc.ListByEvent(ctx, u, eventID)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, map[string]any{"data": rows})
}

// HandleAttendance handles PATCH /api/participations/{id}/attendance.
func (h *Handler) HandleAttendance(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	p, err := h.Svc.MarkAttended(r.Context(), u, id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Message(w, http.StatusOK, "Attendance marked", "participation", p)
}

// HandleFeedback handles POST /api/participations/{id}/feedback.
func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	var in FeedbackInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	p, err := h.Svc.SubmitFeedback(r.Context(), u, id, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Message(w, http.StatusOK, "Feedback submitted", "participation", p)
}

// HandleCertificate handles PATCH /api/participations/{id}/certificate.
func (h *Handler) HandleCertificate(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	p, err := h.Svc.IssueCertificate(r.Context(), u, id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Log.Info("certificate issued", zap.String("participation_id", p.ID.Hex()), zap.String("user_id", p.User.Hex()))
	respond.Message(w, http.StatusOK, "Certificate issued", "participation", p)
}
