package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/ultralive/internal/domain/model"
)

// Leaderboard view names. Watchlist and custom both restrict to an
// explicit bibs selection; the split exists for client-side semantics.
const (
	ViewOverall   = "overall"
	ViewMen       = "men"
	ViewWomen     = "women"
	ViewWatchlist = "watchlist"
	ViewCustom    = "custom"
)

// LeaderboardDependencies defines the interface for leaderboard reads.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, view string, bibs []int) ([]model.RunnerSnapshot, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles GET /leaderboard?view=V&bibs=1,2&limit=N.
// The default view is the overall field; "custom" restricts to the bibs
// list and keeps overall ranks intact.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	view := r.URL.Query().Get("view")
	if view == "" {
		view = ViewOverall
	}
	switch view {
	case ViewOverall, ViewMen, ViewWomen, ViewWatchlist, ViewCustom:
	default:
		writeError(w, http.StatusBadRequest, "bad_view", NewKind(op, ErrBadRequest))
		return
	}

	bibs, err := parseBibs(r.URL.Query().Get("bibs"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_bibs", NewKind(op, ErrBadRequest))
		return
	}
	if (view == ViewCustom || view == ViewWatchlist) && len(bibs) == 0 {
		writeError(w, http.StatusBadRequest, "missing_bibs", NewKind(op, ErrBadRequest))
		return
	}

	limit := h.maxLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if limit > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
	}

	field, err := h.deps.Leaderboard(r.Context(), view, bibs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if len(field) > limit {
		field = field[:limit]
	}

	entries := make([]runnerEntry, 0, len(field))
	for _, s := range field {
		entries = append(entries, toRunnerEntry(s))
	}
	writeJSON(w, http.StatusOK, entries)
}
