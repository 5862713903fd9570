package api

import (
	"encoding/json"
	"net/http"
)

// StatsProvider exposes the engine's runtime counters: tick health,
// prediction cache size, ingestion state.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the engine health snapshot on /stats.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a stats handler backed by the given provider.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats. The payload is whatever the engine
// reports, encoded as-is; keys are stable but values are diagnostic.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(h.provider.GetStats())
}
