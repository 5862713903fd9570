// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration plus the default race tunables
// used until an operator-maintained settings row exists in the store.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// RaceID names the race this process ingests and serves.
	RaceID string `koanf:"race_id"`

	// PostgresDSN selects the persistent store. Empty selects the
	// in-memory store (tests, simulator).
	PostgresDSN string `koanf:"postgres_dsn"`

	// FeedURL is the timing provider endpoint.
	FeedURL string `koanf:"feed_url"`

	// PollIntervalSec schedules ingestion ticks.
	PollIntervalSec int `koanf:"poll_interval_sec"`

	// FetchTimeoutSec bounds one provider fetch.
	FetchTimeoutSec int `koanf:"fetch_timeout_sec"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// DedupeSize bounds the reconciliation lap-key cache.
	DedupeSize int `koanf:"dedupe_size"`

	// CourseGPXPath points at the course polyline file.
	CourseGPXPath string `koanf:"course_gpx_path"`

	// RaceState seeds the settings row on first boot: not_started, live
	// or finished. Operators flip state through the settings row afterwards.
	RaceState string `koanf:"race_state"`

	// StartTime seeds the race start as RFC3339. Empty means process start.
	StartTime string `koanf:"start_time"`

	// Race tunables. Operators normally maintain these in the race
	// settings row; these values seed it for a fresh race.
	LapLengthKm              float64 `koanf:"lap_length_km"`
	FirstLapKm               float64 `koanf:"first_lap_km"`
	StartTimeOffsetSec       int64   `koanf:"start_time_offset_sec"`
	BreakThresholdMultiplier float64 `koanf:"break_threshold_multiplier"`
	OverdueDisplaySec        float64 `koanf:"overdue_display_sec"`
	CrewSpotOffsetMeters     float64 `koanf:"crew_spot_offset_meters"`
	TimingMatLat             float64 `koanf:"timing_mat_lat"`
	TimingMatLon             float64 `koanf:"timing_mat_lon"`
	ReverseTrackDirection    bool    `koanf:"reverse_track_direction"`

	// TypicalLapSec is the reference lap time used to validate the
	// overdue window before any live prediction exists.
	TypicalLapSec float64 `koanf:"typical_lap_sec"`
}

// New creates a Config with defaults: a 1.5km loop polled every 10 seconds.
func New() *Config {
	return &Config{
		LogLevel:                 "info",
		Addr:                     ":9080",
		RaceID:                   "default",
		PollIntervalSec:          10,
		FetchTimeoutSec:          20,
		MaxLeaderboardLimit:      500,
		DedupeSize:               100_000,
		RaceState:                "live",
		LapLengthKm:              1.5,
		FirstLapKm:               0.1,
		BreakThresholdMultiplier: 2.5,
		OverdueDisplaySec:        180,
		TypicalLapSec:            600,
	}
}
