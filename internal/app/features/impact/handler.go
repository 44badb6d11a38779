// internal/app/features/impact/handler.go
package impact

import (
	"net/http"

	"github.com/dalemusser/impacthub/internal/app/system/respond"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

// HandleCalculate handles POST /api/impact/calculate.
func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	res, err := Calculate(in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, res)
}

// Routes mounts the calculator under "/api/impact".
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/calculate", h.HandleCalculate)
	return r
}
