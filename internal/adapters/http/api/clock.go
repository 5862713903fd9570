package api

import (
	"context"
	"net/http"

	"github.com/okian/ultralive/internal/domain/model"
)

// ClockDependencies defines the interface for race clock reads.
type ClockDependencies interface {
	Clock(ctx context.Context) (model.RaceClock, error)
}

// ClockHandler handles race clock requests.
type ClockHandler struct {
	deps ClockDependencies
}

// NewClockHandler creates a new clock handler.
func NewClockHandler(deps ClockDependencies) *ClockHandler {
	return &ClockHandler{deps: deps}
}

// HandleGetClock handles GET /clock requests.
func (h *ClockHandler) HandleGetClock(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_clock"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	clock, err := h.deps.Clock(r.Context())
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, clock)
}
