// Package position derives where each runner is on the loop between timing
// mat crossings. Nothing here is persisted; state is recomputed on demand
// from the leaderboard and lap history.
package position

import (
	"time"

	"github.com/okian/ultralive/internal/domain/course"
	"github.com/okian/ultralive/internal/domain/model"
	"github.com/okian/ultralive/internal/domain/predict"
)

// maxExtrapolatedPct holds an extrapolated runner just short of the mat.
// A new lap only starts on an observed crossing, never on projection.
const maxExtrapolatedPct = 99.5

// Status classifies a runner by how long they have been out on the loop.
// Below the display threshold they are on course; past the predicted lap
// time scaled by the break multiplier they are on a break; in between they
// are overdue. With no usable prediction a runner past the display
// threshold stays overdue, since the break boundary cannot be computed.
func Status(timeSinceSec, overdueDisplaySec, predictedLapSec, breakMultiplier float64) model.RunnerStatus {
	if timeSinceSec < overdueDisplaySec {
		return model.StatusOnCourse
	}
	if predictedLapSec > 0 && timeSinceSec >= predictedLapSec*breakMultiplier {
		return model.StatusBreak
	}
	return model.StatusOverdue
}

// Advance extrapolates lap progress forward from the last observed mat
// crossing at the runner's predicted speed. Runners on a break hold their
// anchored position, and nobody crosses the mat by extrapolation alone.
func Advance(anchorPct, elapsedSec, predictedLapSec float64, status model.RunnerStatus) float64 {
	if status == model.StatusBreak || predictedLapSec <= 0 || elapsedSec <= 0 {
		return anchorPct
	}
	pct := anchorPct + elapsedSec*(100/predictedLapSec)
	if pct > maxExtrapolatedPct {
		pct = maxExtrapolatedPct
	}
	return pct
}

// Estimator maps leaderboard rows onto course coordinates.
type Estimator struct {
	line     *course.Polyline
	settings model.RaceSettings
}

// NewEstimator builds an estimator. line may be nil when no course file is
// configured; coordinates then stay zero but status and progress still work.
func NewEstimator(line *course.Polyline, settings model.RaceSettings) *Estimator {
	return &Estimator{line: line, settings: settings}
}

// State derives one runner's live position at the given instant. It never
// fails: a runner with no mat crossing yet is reported at the start line on
// a break.
func (e *Estimator) State(row model.LeaderboardRow, pred predict.Result, now time.Time) model.RunnerPositionState {
	st := model.RunnerPositionState{
		Bib:        row.Bib,
		Name:       row.Name,
		Country:    row.Country,
		Gender:     row.Gender,
		Rank:       row.Rank,
		GenderRank: row.GenderRank,
		DistanceKm: row.DistanceKm,
	}

	if row.LastPassing.IsZero() {
		st.Status = model.StatusBreak
		if e.line != nil {
			st.Lat, st.Lon = e.line.PositionAt(0)
		}
		return st
	}

	timeSince := now.Sub(row.LastPassing).Seconds()
	if timeSince < 0 {
		timeSince = 0
	}

	predicted := row.LapTimeSec // race-average fallback
	if pred.Available {
		predicted = pred.PredictedLapSec
		st.PredictionConfidence = pred.Confidence
	}

	st.TimeSincePassingSec = timeSince
	st.PredictedLapTimeSec = predicted
	st.Status = Status(timeSince, e.settings.OverdueDisplaySec, predicted, e.settings.BreakThresholdMultiplier)

	if st.Status != model.StatusOnCourse {
		overdueFrom := predicted
		if overdueFrom <= 0 {
			overdueFrom = e.settings.OverdueDisplaySec
		}
		if over := timeSince - overdueFrom; over > 0 {
			st.TimeOverdueSec = over
		}
	}

	anchor := course.ProgressPercent(row.DistanceKm, e.settings.LapLengthKm)
	st.ProgressPercent = Advance(anchor, timeSince, predicted, st.Status)
	if e.line != nil {
		st.Lat, st.Lon = e.line.PositionAt(st.ProgressPercent)
	}
	return st
}

// Field derives positions for every row, pairing each with its prediction.
func (e *Estimator) Field(rows []model.LeaderboardRow, preds map[int]predict.Result, now time.Time) []model.RunnerPositionState {
	out := make([]model.RunnerPositionState, 0, len(rows))
	for _, row := range rows {
		out = append(out, e.State(row, preds[row.Bib], now))
	}
	return out
}
