package feedtest

import "time"

// Config holds configuration for the feed simulator.
type Config struct {
	Addr        string        // HTTP listen address
	Runners     int           // field size
	LapLengthKm float64       // full lap length
	FirstLapKm  float64       // opening partial lap
	MeanLapSec  float64       // average lap time across the field
	Start       time.Time     // race start instant
	Format      string        // "json" or "html"
	Meters      bool          // report distances in meters instead of km
	Seed        int64         // RNG seed; same seed, same race
	BreakEvery  int           // laps between breaks, 0 disables breaks
	BreakSec    float64       // break duration
	LogRequests bool          // log each served snapshot
	Jitter      time.Duration // reserved: per-request response delay
}

// NewConfig returns a simulator configuration with defaults resembling a
// mid-size 24h event on a 1.5km loop.
func NewConfig() *Config {
	return &Config{
		Addr:        ":9090",
		Runners:     40,
		LapLengthKm: 1.5,
		FirstLapKm:  0.1,
		MeanLapSec:  600,
		Start:       time.Now(),
		Format:      "json",
		Seed:        1,
		BreakEvery:  25,
		BreakSec:    900,
	}
}
