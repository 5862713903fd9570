// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/ultralive/internal/domain/model"
)

// Dependencies bundles the read operations handlers need. Using an
// interface bundle keeps the handler layer loosely coupled to the service
// implementation.
type Dependencies interface {
	// Leaderboard returns the current field for a view: "overall", "men",
	// "women", or "watchlist"/"custom" restricted to bibs.
	Leaderboard(ctx context.Context, view string, bibs []int) ([]model.RunnerSnapshot, error)

	// Positions derives live course spots, optionally restricted to bibs.
	Positions(ctx context.Context, bibs []int) (model.PositionField, error)

	// Countdown predicts timing mat and crew spot arrivals for the
	// selected runners.
	Countdown(ctx context.Context, bibs []int, country string, gender model.Gender) ([]model.ArrivalPrediction, error)

	// Chart returns the distance series of the selected runners. Unknown
	// bibs are skipped.
	Chart(ctx context.Context, bibs []int) ([]model.ChartSeries, error)

	// Laps returns one runner's full lap history.
	Laps(ctx context.Context, bib int) ([]model.LapRecord, error)

	// Teams returns national team standings, optionally for one gender.
	Teams(ctx context.Context, gender model.Gender) ([]model.TeamScore, error)

	// Clock reports race timing state.
	Clock(ctx context.Context) (model.RaceClock, error)
}

// Server wires HTTP routes for the race API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	boardHandler     *LeaderboardHandler
	positionsHandler *PositionsHandler
	countdownHandler *CountdownHandler
	chartHandler     *ChartHandler
	lapsHandler      *LapsHandler
	teamsHandler     *TeamsHandler
	clockHandler     *ClockHandler
}

// NewServer creates an API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxBoardLimit int) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		boardHandler:     NewLeaderboardHandler(deps, maxBoardLimit),
		positionsHandler: NewPositionsHandler(deps),
		countdownHandler: NewCountdownHandler(deps),
		chartHandler:     NewChartHandler(deps),
		lapsHandler:      NewLapsHandler(deps),
		teamsHandler:     NewTeamsHandler(deps),
		clockHandler:     NewClockHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.boardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/positions", MetricsMiddleware(s.positionsHandler.HandleGetPositions, "positions"))
	mux.HandleFunc("/countdown", MetricsMiddleware(s.countdownHandler.HandleGetCountdown, "countdown"))
	mux.HandleFunc("/chart", MetricsMiddleware(s.chartHandler.HandleGetChart, "chart"))
	mux.HandleFunc("/laps/", MetricsMiddleware(s.lapsHandler.HandleGetLaps, "laps"))
	mux.HandleFunc("/teams", MetricsMiddleware(s.teamsHandler.HandleGetTeams, "teams"))
	mux.HandleFunc("/clock", MetricsMiddleware(s.clockHandler.HandleGetClock, "clock"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound translates upstream not-found errors to 404 without coupling
// to the repository package.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// parseBibs splits a comma-separated bibs query parameter.
func parseBibs(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	bibs := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 1 {
			return nil, errors.New("bibs must be positive integers")
		}
		bibs = append(bibs, n)
	}
	return bibs, nil
}

// runnerEntry is the wire shape of one leaderboard row.
type runnerEntry struct {
	Bib         int     `json:"bib"`
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	Gender      string  `json:"gender"`
	Rank        int     `json:"rank"`
	GenderRank  int     `json:"gender_rank"`
	DistanceKm  float64 `json:"distance_km"`
	ProjectedKm float64 `json:"projected_km"`
	RaceTimeSec int64   `json:"race_time_sec"`
	LapPaceSec  float64 `json:"lap_pace_sec"`
	LapTimeSec  float64 `json:"lap_time_sec"`
	Lap         int     `json:"lap"`
	Trend       string  `json:"trend"`
	LastPassing string  `json:"last_passing,omitempty"`
}

func toRunnerEntry(s model.RunnerSnapshot) runnerEntry {
	e := runnerEntry{
		Bib:         s.Bib,
		Name:        s.Name,
		Country:     s.Country,
		Gender:      string(s.Gender),
		Rank:        s.Rank,
		GenderRank:  s.GenderRank,
		DistanceKm:  s.DistanceKm,
		ProjectedKm: s.ProjectedKm,
		RaceTimeSec: s.RaceTimeSec,
		LapPaceSec:  s.LapPaceSec,
		LapTimeSec:  s.LapTimeSec,
		Lap:         s.Lap,
		Trend:       string(s.Trend),
	}
	if !s.LastPassing.IsZero() {
		e.LastPassing = s.LastPassing.UTC().Format(time.RFC3339)
	}
	return e
}
