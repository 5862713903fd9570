package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/ultralive/internal/domain/model"
)

// CountdownDependencies defines the interface for arrival predictions.
type CountdownDependencies interface {
	Countdown(ctx context.Context, bibs []int, country string, gender model.Gender) ([]model.ArrivalPrediction, error)
}

// CountdownHandler handles arrival countdown requests.
type CountdownHandler struct {
	deps CountdownDependencies
}

// NewCountdownHandler creates a new countdown handler.
func NewCountdownHandler(deps CountdownDependencies) *CountdownHandler {
	return &CountdownHandler{deps: deps}
}

type countdownEntry struct {
	Bib                 int     `json:"bib"`
	Name                string  `json:"name"`
	Country             string  `json:"country"`
	Gender              string  `json:"gender"`
	GenderRank          int     `json:"gender_rank"`
	DistanceKm          float64 `json:"distance_km"`
	LastPassing         string  `json:"last_passing,omitempty"`
	TimeSincePassingSec float64 `json:"time_since_passing_sec"`
	PredictedLapTimeSec float64 `json:"predicted_lap_time_sec,omitempty"`
	TimeUntilMatSec     float64 `json:"time_until_mat_sec"`
	TimeUntilCrewSec    float64 `json:"time_until_crew_sec"`
	Confidence          float64 `json:"confidence"`
	RecentLapSec        []int64 `json:"recent_lap_sec,omitempty"`
}

// HandleGetCountdown handles GET /countdown with either an explicit
// bibs=1,2 selection or a country=SWE&gender=w partition. A negative
// time_until_mat_sec means the runner is past their predicted arrival.
func (h *CountdownHandler) HandleGetCountdown(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_countdown"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	bibs, err := parseBibs(q.Get("bibs"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_bibs", NewKind(op, ErrBadRequest))
		return
	}

	country := q.Get("country")
	gender := model.Gender(q.Get("gender"))
	if gender != "" && !gender.Valid() {
		writeError(w, http.StatusBadRequest, "bad_gender", NewKind(op, ErrBadRequest))
		return
	}
	if len(bibs) == 0 && country == "" {
		writeError(w, http.StatusBadRequest, "missing_selection", NewKind(op, ErrBadRequest))
		return
	}

	preds, err := h.deps.Countdown(r.Context(), bibs, country, gender)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	entries := make([]countdownEntry, 0, len(preds))
	for _, p := range preds {
		e := countdownEntry{
			Bib:                 p.Bib,
			Name:                p.Name,
			Country:             p.Country,
			Gender:              string(p.Gender),
			GenderRank:          p.GenderRank,
			DistanceKm:          p.DistanceKm,
			TimeSincePassingSec: p.TimeSincePassingSec,
			PredictedLapTimeSec: p.PredictedLapTimeSec,
			TimeUntilMatSec:     p.TimeUntilMatSec,
			TimeUntilCrewSec:    p.TimeUntilCrewSec,
			Confidence:          p.Confidence,
			RecentLapSec:        p.RecentLapSec,
		}
		if !p.LastPassing.IsZero() {
			e.LastPassing = p.LastPassing.UTC().Format(time.RFC3339)
		}
		entries = append(entries, e)
	}
	writeJSON(w, http.StatusOK, entries)
}
