// Package model contains domain models passed between layers.
package model

import "time"

// Gender identifies the ranking partition a runner competes in.
type Gender string

// Gender values as reported by the entry list.
const (
	GenderMen   Gender = "m"
	GenderWomen Gender = "w"
)

// Valid reports whether g is one of the known partitions.
func (g Gender) Valid() bool {
	return g == GenderMen || g == GenderWomen
}

// RunnerSnapshot is one runner's row from a single provider snapshot.
// It lives for exactly one ingestion tick: produced by the feed adapter,
// enriched by the race-time calculator and ranker, written to the
// leaderboard store, then discarded.
type RunnerSnapshot struct {
	Bib         int
	Name        string
	Country     string // 3-letter code, "XXX" when unmatched
	Gender      Gender
	Rank        int
	GenderRank  int
	DistanceKm  float64
	ProjectedKm float64
	RaceTimeSec int64
	LapPaceSec  float64 // seconds per km
	LapTimeSec  float64 // average seconds per lap
	Lap         int
	Trend       Trend
	LastPassing time.Time // timing mat crossing, wall clock
}

// Trend classifies recent pace relative to the runner's race average.
type Trend string

// Trend values.
const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// LapRecord is one completed lap, keyed by (RaceID, Bib, Lap).
// Rows are append-only: once persisted they are never overwritten.
type LapRecord struct {
	RaceID      string
	Bib         int
	Lap         int
	LapTimeSec  int64
	RaceTimeSec int64
	DistanceKm  float64
	Rank        int
	GenderRank  int
	LapPace     float64 // seconds per km over this lap
	AvgPace     float64 // seconds per km over the whole race
	Timestamp   time.Time
}

// Key returns the unique identity of the lap within its race.
func (l LapRecord) Key() LapKey {
	return LapKey{RaceID: l.RaceID, Bib: l.Bib, Lap: l.Lap}
}

// LapKey identifies a lap row. Used for existence checks and the
// reconciliation idempotency cache.
type LapKey struct {
	RaceID string
	Bib    int
	Lap    int
}

// LeaderboardRow is the persisted "current state" of one runner,
// keyed by (RaceID, Bib) and overwritten in full every tick.
type LeaderboardRow struct {
	RaceID      string
	Bib         int
	Name        string
	Country     string
	Gender      Gender
	Rank        int
	GenderRank  int
	DistanceKm  float64
	ProjectedKm float64
	RaceTimeSec int64
	LapPaceSec  float64
	LapTimeSec  float64
	Lap         int
	Trend       Trend
	LastPassing time.Time
	UpdatedAt   time.Time
}

// Snapshot converts the row back to its transient form for computations
// that run on the read path.
func (r LeaderboardRow) Snapshot() RunnerSnapshot {
	return RunnerSnapshot{
		Bib:         r.Bib,
		Name:        r.Name,
		Country:     r.Country,
		Gender:      r.Gender,
		Rank:        r.Rank,
		GenderRank:  r.GenderRank,
		DistanceKm:  r.DistanceKm,
		ProjectedKm: r.ProjectedKm,
		RaceTimeSec: r.RaceTimeSec,
		LapPaceSec:  r.LapPaceSec,
		LapTimeSec:  r.LapTimeSec,
		Lap:         r.Lap,
		Trend:       r.Trend,
		LastPassing: r.LastPassing,
	}
}

// RaceState gates ingestion: ticks no-op unless the race is live.
type RaceState string

// Race states.
const (
	RaceNotStarted RaceState = "not_started"
	RaceLive       RaceState = "live"
	RaceFinished   RaceState = "finished"
)

// RaceSettings is the operator-owned tunables row for one race.
// This engine only reads it; an external configuration surface mutates it.
type RaceSettings struct {
	RaceID                   string
	State                    RaceState
	StartTime                time.Time
	StartTimeOffsetSec       int64 // race started this much later than nominal
	LapLengthKm              float64
	FirstLapKm               float64 // opening partial lap (start offset from the mat)
	BreakThresholdMultiplier float64
	OverdueDisplaySec        float64
	CrewSpotOffsetMeters     float64 // signed: negative = before the timing mat
	TimingMatLat             float64
	TimingMatLon             float64
	ReverseTrackDirection    bool
	FeedURL                  string
	LastFetch                time.Time
}

// TeamScore is the top-3 aggregate for one (country, gender) group.
type TeamScore struct {
	Country string
	Gender  Gender
	Rank    int
	TotalKm float64
	Bibs    []int // the scoring runners, best first
}

// RunnerStatus classifies presence on course between mat crossings.
type RunnerStatus string

// Runner statuses in order of increasing absence.
const (
	StatusOnCourse RunnerStatus = "on-course"
	StatusOverdue  RunnerStatus = "overdue"
	StatusBreak    RunnerStatus = "break"
)

// RunnerPositionState is the derived, never-persisted live position of a
// runner on the course polyline.
type RunnerPositionState struct {
	Bib                  int
	Name                 string
	Country              string
	Gender               Gender
	Rank                 int
	GenderRank           int
	DistanceKm           float64
	Lat                  float64
	Lon                  float64
	Status               RunnerStatus
	ProgressPercent      float64 // [0,100)
	TimeSincePassingSec  float64
	PredictedLapTimeSec  float64
	TimeOverdueSec       float64 // >0 only for overdue/break
	PredictionConfidence float64 // 0 when no prediction is available
}

// LatLon is a coordinate pair on the course.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PositionField is the full live-position answer: derived runner states,
// the bibs currently classified as on a break, and the fixed landmarks map
// clients draw.
type PositionField struct {
	States    []RunnerPositionState
	OnBreak   []int
	TimingMat *LatLon
	CrewSpot  *LatLon
}

// ArrivalPrediction is the countdown estimate for one runner.
type ArrivalPrediction struct {
	Bib                 int
	Name                string
	Country             string
	Gender              Gender
	GenderRank          int
	DistanceKm          float64
	LastPassing         time.Time
	TimeSincePassingSec float64
	PredictedLapTimeSec float64
	TimeUntilMatSec     float64 // negative = overdue by that magnitude
	TimeUntilCrewSec    float64
	Confidence          float64 // 0-1
	RecentLapSec        []int64 // samples behind the prediction
}

// RaceClock is the timing state reported to clients.
type RaceClock struct {
	RaceID       string    `json:"race_id"`
	State        RaceState `json:"state"`
	StartTime    time.Time `json:"start_time"`
	ServerTime   time.Time `json:"server_time"`
	RaceTimeSec  int64     `json:"race_time_sec"`
	RemainingSec int64     `json:"remaining_sec"`
	LastFetch    time.Time `json:"last_fetch"`
}

// ChartSeries is one runner's distance series.
type ChartSeries struct {
	Bib    int          `json:"bib"`
	Points []ChartPoint `json:"points"`
}

// ChartPoint is one sample of a runner's distance series.
type ChartPoint struct {
	RaceTimeSec int64   `json:"race_time_sec"`
	DistanceKm  float64 `json:"distance_km"`
	ProjectedKm float64 `json:"projected_km"`
	AvgPace     float64 `json:"avg_pace"`
}
