package api

import (
	"context"
	"net/http"

	"github.com/okian/ultralive/internal/domain/model"
)

// ChartDependencies defines the interface for distance series reads.
type ChartDependencies interface {
	Chart(ctx context.Context, bibs []int) ([]model.ChartSeries, error)
}

// ChartHandler handles distance chart requests.
type ChartHandler struct {
	deps ChartDependencies
}

// NewChartHandler creates a new chart handler.
func NewChartHandler(deps ChartDependencies) *ChartHandler {
	return &ChartHandler{deps: deps}
}

// HandleGetChart handles GET /chart?bibs=1,2. One series per requested
// runner; bibs the race has never seen are skipped, not errors.
func (h *ChartHandler) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_chart"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	bibs, err := parseBibs(r.URL.Query().Get("bibs"))
	if err != nil || len(bibs) == 0 {
		writeError(w, http.StatusBadRequest, "bad_bibs", NewKind(op, ErrBadRequest))
		return
	}

	series, err := h.deps.Chart(r.Context(), bibs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, series)
}
