package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/ultralive/internal/domain/model"
)

// LapsDependencies defines the interface for lap history reads.
type LapsDependencies interface {
	Laps(ctx context.Context, bib int) ([]model.LapRecord, error)
}

// LapsHandler handles lap history requests.
type LapsHandler struct {
	deps LapsDependencies
}

// NewLapsHandler creates a new laps handler.
func NewLapsHandler(deps LapsDependencies) *LapsHandler {
	return &LapsHandler{deps: deps}
}

type lapEntry struct {
	Lap         int     `json:"lap"`
	LapTimeSec  int64   `json:"lap_time_sec"`
	RaceTimeSec int64   `json:"race_time_sec"`
	DistanceKm  float64 `json:"distance_km"`
	Rank        int     `json:"rank"`
	GenderRank  int     `json:"gender_rank"`
	LapPace     float64 `json:"lap_pace"`
	AvgPace     float64 `json:"avg_pace"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

// HandleGetLaps handles GET /laps/{bib} requests.
func (h *LapsHandler) HandleGetLaps(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_laps"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/laps/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	bib, err := strconv.Atoi(path)
	if err != nil || bib < 1 {
		writeError(w, http.StatusBadRequest, "bad_bib", NewKind(op, ErrBadRequest))
		return
	}

	laps, err := h.deps.Laps(r.Context(), bib)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	entries := make([]lapEntry, 0, len(laps))
	for _, l := range laps {
		e := lapEntry{
			Lap:         l.Lap,
			LapTimeSec:  l.LapTimeSec,
			RaceTimeSec: l.RaceTimeSec,
			DistanceKm:  l.DistanceKm,
			Rank:        l.Rank,
			GenderRank:  l.GenderRank,
			LapPace:     l.LapPace,
			AvgPace:     l.AvgPace,
		}
		if !l.Timestamp.IsZero() {
			e.Timestamp = l.Timestamp.UTC().Format(time.RFC3339)
		}
		entries = append(entries, e)
	}
	writeJSON(w, http.StatusOK, entries)
}
