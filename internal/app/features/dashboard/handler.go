// internal/app/features/dashboard/handler.go
package dashboard

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/impacthub/internal/app/system/respond"
	"github.com/dalemusser/impacthub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

type Handler struct {
	Svc *Service
	Log *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

// ServeMetrics handles GET /api/dashboard/metrics.
func (h *Handler) ServeMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "dashboard metrics")
	defer cancel()

	m, err := h.Svc.Metrics(ctx)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, m)
}

// ServeLeaderboard handles GET /api/dashboard/leaderboard?limit=N.
func (h *Handler) ServeLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "leaderboard")
	defer cancel()

	// A malformed limit falls back to the default.
	limit, _ := strconv.Atoi(query.Get(r, "limit"))
	rows, err := h.Svc.Leaderboard(ctx, limit)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, map[string]any{"data": rows})
}
