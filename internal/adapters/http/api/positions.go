package api

import (
	"context"
	"net/http"

	"github.com/okian/ultralive/internal/domain/model"
)

// PositionsDependencies defines the interface for live position reads.
type PositionsDependencies interface {
	Positions(ctx context.Context, bibs []int) (model.PositionField, error)
}

// PositionsHandler handles course position requests.
type PositionsHandler struct {
	deps PositionsDependencies
}

// NewPositionsHandler creates a new positions handler.
func NewPositionsHandler(deps PositionsDependencies) *PositionsHandler {
	return &PositionsHandler{deps: deps}
}

type positionEntry struct {
	Bib                  int     `json:"bib"`
	Name                 string  `json:"name"`
	Country              string  `json:"country"`
	Gender               string  `json:"gender"`
	Rank                 int     `json:"rank"`
	GenderRank           int     `json:"gender_rank"`
	DistanceKm           float64 `json:"distance_km"`
	Lat                  float64 `json:"lat"`
	Lon                  float64 `json:"lon"`
	Status               string  `json:"status"`
	ProgressPercent      float64 `json:"progress_percent"`
	TimeSincePassingSec  float64 `json:"time_since_passing_sec"`
	PredictedLapTimeSec  float64 `json:"predicted_lap_time_sec"`
	TimeOverdueSec       float64 `json:"time_overdue_sec,omitempty"`
	PredictionConfidence float64 `json:"prediction_confidence"`
}

// positionsResponse carries every derived state, the bibs currently
// classified as on a break, and the fixed landmarks map clients draw.
type positionsResponse struct {
	Positions []positionEntry `json:"positions"`
	OnBreak   []int           `json:"on_break"`
	TimingMat *model.LatLon   `json:"timing_mat,omitempty"`
	CrewSpot  *model.LatLon   `json:"crew_spot,omitempty"`
}

// HandleGetPositions handles GET /positions?bibs=1,2. Without bibs the
// whole field is returned. The derivation never fails per runner: stale
// runners come back on a break rather than erroring.
func (h *PositionsHandler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_positions"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	bibs, err := parseBibs(r.URL.Query().Get("bibs"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_bibs", NewKind(op, ErrBadRequest))
		return
	}

	field, err := h.deps.Positions(r.Context(), bibs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	resp := positionsResponse{
		Positions: make([]positionEntry, 0, len(field.States)),
		OnBreak:   field.OnBreak,
		TimingMat: field.TimingMat,
		CrewSpot:  field.CrewSpot,
	}
	if resp.OnBreak == nil {
		resp.OnBreak = make([]int, 0)
	}
	for _, s := range field.States {
		resp.Positions = append(resp.Positions, positionEntry{
			Bib:                  s.Bib,
			Name:                 s.Name,
			Country:              s.Country,
			Gender:               string(s.Gender),
			Rank:                 s.Rank,
			GenderRank:           s.GenderRank,
			DistanceKm:           s.DistanceKm,
			Lat:                  s.Lat,
			Lon:                  s.Lon,
			Status:               string(s.Status),
			ProgressPercent:      s.ProgressPercent,
			TimeSincePassingSec:  s.TimeSincePassingSec,
			PredictedLapTimeSec:  s.PredictedLapTimeSec,
			TimeOverdueSec:       s.TimeOverdueSec,
			PredictionConfidence: s.PredictionConfidence,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
