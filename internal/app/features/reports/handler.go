// internal/app/features/reports/handler.go
package reports

import (
	"net/http"

	"github.com/dalemusser/impacthub/internal/app/store/audit"
	"github.com/dalemusser/impacthub/internal/app/system/auditlog"
	"github.com/dalemusser/impacthub/internal/app/system/auth"
	"github.com/dalemusser/impacthub/internal/app/system/paging"
	"github.com/dalemusser/impacthub/internal/app/system/respond"
	"github.com/dalemusser/impacthub/internal/app/system/timeouts"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// Handler serves /api/verification-reports.
type Handler struct {
	Svc   *Service
	Audit *auditlog.Logger
	Log   *zap.Logger
}

func NewHandler(svc *Service, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Audit: audit, Log: logger}
}

func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "report list")
	defer cancel()

	res, err := h.Svc.List(ctx, u, ListFilter{
		Status: query.Get(r, "status"),
		NGO:    query.Get(r, "ngo"),
	}, paging.Parse(r, paging.DefaultLimit))
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, res)
}

func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	rep, err := h.Svc.Get(r.Context(), u, id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, rep)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	var in CreateInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	rep, err := h.Svc.Create(r.Context(), u, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Audit.ReportChanged(r.Context(), r, audit.EventReportCreated, u.ID, rep.ID, rep.NGO)
	h.auditVerified(r, u, rep)
	respond.Message(w, http.StatusCreated, "Verification report created", "report", rep)
}

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
	rep, err := h.Svc.Update(r.Context(), u, id, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Audit.ReportChanged(r.Context(), r, audit.EventReportUpdated, u.ID, rep.ID, rep.NGO)
	h.auditVerified(r, u, rep)
	respond.Message(w, http.StatusOK, "Verification report updated", "report", rep)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := respond.ObjectID(r, "id")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	rep, err := h.Svc.Delete(r.Context(), u, id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Audit.ReportChanged(r.Context(), r, audit.EventReportDeleted, u.ID, rep.ID, rep.NGO)
	respond.Message(w, http.StatusOK, "Verification report deleted", "", nil)
}

func (h *Handler) auditVerified(r *http.Request, actor *models.User, rep *models.VerificationReport) {
	if !rep.QualifiesForAutoVerify() {
		return
	}
	h.Log.Info("ngo auto-verified",
		zap.String("ngo_id", rep.NGO.Hex()),
		zap.String("report_id", rep.ID.Hex()),
		zap.Int("credibility_score", rep.CredibilityScore))
	h.Audit.NGOVerified(r.Context(), r, actor.ID, rep.NGO, "report")
}
