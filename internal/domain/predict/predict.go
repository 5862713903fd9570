// Package predict estimates a runner's next timing mat arrival from their
// recent lap history.
package predict

import (
	"math"
	"sort"

	"github.com/okian/ultralive/internal/domain/model"
)

// Adaptive window bounds. The window grows with race time so that late-race
// predictions smooth over fatigue swings, but never looks back further than
// a quarter of the race.
const (
	minWindowSec   = 3 * 3600
	maxWindowSec   = 6 * 3600
	windowFraction = 0.2
)

// Tukey fence weights. Outlier laps (breaks, aid station stops) still carry
// information about the runner's rhythm, so they are down-weighted rather
// than discarded.
const (
	weightNormal  = 1.0
	weightMild    = 0.3
	weightExtreme = 0.1
)

// Result is one runner's lap time estimate. Available is false when the
// window holds fewer than two laps; all other fields are zero then.
type Result struct {
	Available       bool
	PredictedLapSec float64
	Confidence      float64 // 0-1
	SampleLapSec    []int64 // window samples, oldest first
}

// WindowSec returns the lookback window for a given race-elapsed time.
func WindowSec(elapsedSec int64) float64 {
	w := float64(elapsedSec) * windowFraction
	if w < minWindowSec {
		return minWindowSec
	}
	if w > maxWindowSec {
		return maxWindowSec
	}
	return w
}

// LapTime predicts the runner's next lap duration from their persisted lap
// records. laps may arrive in any order; only laps whose finishing race
// time falls inside the adaptive window ending at elapsedSec contribute.
func LapTime(laps []model.LapRecord, elapsedSec int64) Result {
	window := WindowSec(elapsedSec)
	cutoff := float64(elapsedSec) - window

	samples := make([]int64, 0, len(laps))
	for _, l := range laps {
		if l.LapTimeSec > 0 && float64(l.RaceTimeSec) >= cutoff {
			samples = append(samples, l.LapTimeSec)
		}
	}
	if len(samples) < 2 {
		return Result{}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	weights, outliers := tukeyWeights(samples)

	var sum, wsum float64
	for i, s := range samples {
		sum += float64(s) * weights[i]
		wsum += weights[i]
	}
	predicted := sum / wsum

	var varsum float64
	for i, s := range samples {
		d := float64(s) - predicted
		varsum += weights[i] * d * d
	}
	stddev := math.Sqrt(varsum / wsum)

	return Result{
		Available:       true,
		PredictedLapSec: predicted,
		Confidence:      confidence(stddev/predicted, len(samples), outliers),
		SampleLapSec:    samples,
	}
}

// tukeyWeights assigns each sorted sample a weight by its distance outside
// the interquartile fences, and reports how many samples were outliers.
func tukeyWeights(sorted []int64) (weights []float64, outliers int) {
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1

	mildLo, mildHi := q1-1.5*iqr, q3+1.5*iqr
	extremeLo, extremeHi := q1-3*iqr, q3+3*iqr

	weights = make([]float64, len(sorted))
	for i, s := range sorted {
		v := float64(s)
		switch {
		case v < extremeLo || v > extremeHi:
			weights[i] = weightExtreme
			outliers++
		case v < mildLo || v > mildHi:
			weights[i] = weightMild
			outliers++
		default:
			weights[i] = weightNormal
		}
	}
	return weights, outliers
}

// quantile interpolates linearly between sorted samples.
func quantile(sorted []int64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return float64(sorted[lo])
	}
	frac := pos - float64(lo)
	return float64(sorted[lo]) + frac*(float64(sorted[hi])-float64(sorted[lo]))
}

// confidence maps the coefficient of variation to a band, then penalises
// thin windows and outlier-dominated windows.
func confidence(cv float64, sampleCount, outliers int) float64 {
	var c float64
	switch {
	case cv < 0.15:
		c = 0.9
	case cv < 0.25:
		c = 0.7
	case cv < 0.35:
		c = 0.5
	default:
		c = 0.3
	}
	if sampleCount < 3 {
		c *= 0.7
	}
	if outliers*2 > sampleCount {
		c *= 0.8
	}
	return c
}

// Countdown derives the arrival estimates for one runner. timeSinceSec is
// seconds since the last mat crossing; a negative TimeUntilMatSec means the
// runner is already past their predicted arrival. The crew spot estimate
// shifts by the time needed to cover the signed mat offset at the runner's
// predicted speed.
func Countdown(r Result, timeSinceSec, lapLengthKm, crewOffsetM float64) (untilMatSec, untilCrewSec float64) {
	if !r.Available || r.PredictedLapSec <= 0 {
		return 0, 0
	}
	untilMatSec = r.PredictedLapSec - timeSinceSec
	untilCrewSec = untilMatSec
	if lapLengthKm > 0 {
		speedMPerSec := lapLengthKm * 1000 / r.PredictedLapSec
		untilCrewSec = untilMatSec + crewOffsetM/speedMPerSec
	}
	return untilMatSec, untilCrewSec
}
