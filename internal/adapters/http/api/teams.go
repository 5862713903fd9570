package api

import (
	"context"
	"net/http"

	"github.com/okian/ultralive/internal/domain/model"
)

// TeamsDependencies defines the interface for team standings reads.
type TeamsDependencies interface {
	Teams(ctx context.Context, gender model.Gender) ([]model.TeamScore, error)
}

// TeamsHandler handles national team standings requests.
type TeamsHandler struct {
	deps TeamsDependencies
}

// NewTeamsHandler creates a new teams handler.
func NewTeamsHandler(deps TeamsDependencies) *TeamsHandler {
	return &TeamsHandler{deps: deps}
}

type teamEntry struct {
	Country string  `json:"country"`
	Gender  string  `json:"gender"`
	Rank    int     `json:"rank"`
	TotalKm float64 `json:"total_km"`
	Bibs    []int   `json:"bibs"`
}

// HandleGetTeams handles GET /teams?gender=m|w. Without a gender the
// combined standings across both partitions are returned.
func (h *TeamsHandler) HandleGetTeams(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_teams"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	gender := model.Gender(r.URL.Query().Get("gender"))
	if gender != "" && !gender.Valid() {
		writeError(w, http.StatusBadRequest, "bad_gender", NewKind(op, ErrBadRequest))
		return
	}

	teams, err := h.deps.Teams(r.Context(), gender)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	entries := make([]teamEntry, 0, len(teams))
	for _, t := range teams {
		entries = append(entries, teamEntry{
			Country: t.Country,
			Gender:  string(t.Gender),
			Rank:    t.Rank,
			TotalKm: t.TotalKm,
			Bibs:    t.Bibs,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}
