// Package feedtest simulates a timing provider for a 24h loop race. It
// serves the same payload shapes the real provider emits, driven by a
// deterministic simulated field, so the engine can be exercised end to end
// without a live event.
package feedtest

import (
	"fmt"
	"math/rand"
)

// name pools for the generated field.
var (
	firstNames = []string{
		"Camille", "Aleksandr", "Noora", "Benoît", "Yuki", "Marta",
		"Piotr", "Ingrid", "Tomás", "Aoife", "Stefan", "Linnea",
		"Marco", "Hana", "Viktor", "Elodie", "Janne", "Sofia",
	}
	lastNames = []string{
		"Bruyas", "Sorokin", "Virtanen", "Dupont", "Tanaka", "Kowalska",
		"Nowak", "Berg", "Silva", "Byrne", "Weber", "Lund",
		"Ricci", "Nováková", "Petrov", "Martin", "Korhonen", "Rossi",
	}
	countries = []string{"FRA", "LTU", "FIN", "JPN", "POL", "NOR", "PRT", "IRL", "DEU", "SWE", "ITA", "CZE"}
)

// runner is one simulated competitor with a fixed pace profile.
type runner struct {
	bib        int
	name       string
	country    string
	gender     string
	meanLapSec float64
	// lapJitter scales per-lap variation around the mean, in [0, 0.15).
	lapJitter float64
	seed      int64
}

// runnerState is a runner's progress at some race-elapsed instant.
type runnerState struct {
	laps         int
	lastCrossSec float64 // cumulative race seconds at the last mat crossing
	onBreak      bool
}

// newField generates a deterministic field. The same seed always produces
// the same runners and the same race.
func newField(cfg *Config) []runner {
	rng := rand.New(rand.NewSource(cfg.Seed))
	field := make([]runner, 0, cfg.Runners)
	for i := 0; i < cfg.Runners; i++ {
		gender := "M"
		if rng.Intn(2) == 0 {
			gender = "F"
		}
		field = append(field, runner{
			bib:     i + 1,
			name:    fmt.Sprintf("%s %s", firstNames[rng.Intn(len(firstNames))], lastNames[rng.Intn(len(lastNames))]),
			country: countries[rng.Intn(len(countries))],
			gender:  gender,
			// spread paces so the board actually shuffles
			meanLapSec: cfg.MeanLapSec * (0.8 + 0.4*rng.Float64()),
			lapJitter:  0.15 * rng.Float64(),
			seed:       rng.Int63(),
		})
	}
	return field
}

// stateAt replays the runner's race up to elapsed seconds. Lap times are
// drawn from the runner's own RNG so replays are reproducible: calling
// stateAt twice with growing elapsed values never contradicts itself.
func (r runner) stateAt(cfg *Config, elapsedSec float64) runnerState {
	if elapsedSec <= 0 {
		return runnerState{}
	}

	rng := rand.New(rand.NewSource(r.seed))
	var st runnerState
	cum := 0.0
	for {
		lapTime := r.meanLapSec * (1 + r.lapJitter*(2*rng.Float64()-1))
		if cfg.BreakEvery > 0 && st.laps > 0 && st.laps%cfg.BreakEvery == 0 {
			lapTime += cfg.BreakSec
		}
		if cum+lapTime > elapsedSec {
			// mid-lap: long ones read as a break in progress
			st.onBreak = lapTime > 2*r.meanLapSec
			return st
		}
		cum += lapTime
		st.laps++
		st.lastCrossSec = cum
	}
}

// distanceKm converts a lap count into covered distance.
func distanceKm(cfg *Config, laps int) float64 {
	if laps <= 0 {
		return 0
	}
	return cfg.FirstLapKm + float64(laps-1)*cfg.LapLengthKm
}
