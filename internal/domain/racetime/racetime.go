// Package racetime derives race-elapsed time, pace and 24h projections
// from raw timing mat timestamps.
package racetime

import (
	"time"

	"github.com/okian/ultralive/internal/domain/model"
)

// Seconds in a full 24h race.
const raceDurationSec = 86400

// Trend classification threshold: a lap pace within 5% of the race
// average counts as stable.
const trendThreshold = 0.05

// RaceSeconds converts a wall-clock passing timestamp into race-elapsed
// seconds. startOffsetSec compensates for a race that began later than its
// nominal scheduled start.
func RaceSeconds(lastPassing, raceStart time.Time, startOffsetSec int64) int64 {
	if lastPassing.IsZero() || raceStart.IsZero() {
		return 0
	}
	return lastPassing.Sub(raceStart).Milliseconds()/1000 - startOffsetSec
}

// ProjectedKm extrapolates the 24h total distance at the runner's current
// average speed. Returns 0 when no race time has elapsed, which consumers
// read as "insufficient data".
func ProjectedKm(distanceKm float64, raceTimeSec int64) float64 {
	if raceTimeSec <= 0 {
		return 0
	}
	return distanceKm / float64(raceTimeSec) * raceDurationSec
}

// LapPaceSec is the average pace in seconds per kilometre.
func LapPaceSec(raceTimeSec int64, distanceKm float64) float64 {
	if distanceKm <= 0 {
		return 0
	}
	return float64(raceTimeSec) / distanceKm
}

// AverageLapTimeSec is the average seconds per completed lap.
func AverageLapTimeSec(raceTimeSec int64, lapCount int) float64 {
	if lapCount <= 0 {
		return 0
	}
	return float64(raceTimeSec) / float64(lapCount)
}

// Enrich recomputes the derived time fields of every snapshot in place.
// It must run before ranking and lap reconciliation: both depend on a
// correct RaceTimeSec, not the provider's placeholder.
func Enrich(snapshots []model.RunnerSnapshot, settings model.RaceSettings) {
	for i := range snapshots {
		s := &snapshots[i]
		s.RaceTimeSec = RaceSeconds(s.LastPassing, settings.StartTime, settings.StartTimeOffsetSec)
		s.ProjectedKm = ProjectedKm(s.DistanceKm, s.RaceTimeSec)
		s.LapPaceSec = LapPaceSec(s.RaceTimeSec, s.DistanceKm)
		s.LapTimeSec = AverageLapTimeSec(s.RaceTimeSec, s.Lap)
	}
}

// Trend compares a runner's latest lap pace against their race average.
func Trend(currentLapPace, avgPace float64) model.Trend {
	if avgPace <= 0 || currentLapPace <= 0 {
		return model.TrendStable
	}
	ratio := currentLapPace / avgPace
	switch {
	case ratio < 1-trendThreshold:
		return model.TrendUp // faster than average (lower pace)
	case ratio > 1+trendThreshold:
		return model.TrendDown
	default:
		return model.TrendStable
	}
}

// Gap reports the distance and estimated time deficit to the leader at the
// runner's current average pace.
func Gap(leaderKm, runnerKm, runnerPaceSecPerKm float64) (distanceKm, timeSec float64) {
	distanceKm = leaderKm - runnerKm
	timeSec = distanceKm * runnerPaceSecPerKm
	return distanceKm, timeSec
}

// RollingPace averages the last windowSize lap paces.
func RollingPace(lapPaces []float64, windowSize int) float64 {
	if len(lapPaces) == 0 || windowSize <= 0 {
		return 0
	}
	if windowSize > len(lapPaces) {
		windowSize = len(lapPaces)
	}
	window := lapPaces[len(lapPaces)-windowSize:]
	sum := 0.0
	for _, p := range window {
		sum += p
	}
	return sum / float64(len(window))
}
