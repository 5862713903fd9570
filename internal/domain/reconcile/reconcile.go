// Package reconcile detects newly completed laps by comparing the current
// field snapshot against the latest persisted lap per runner. Lap rows are
// append-only, so detection must be idempotent across ticks and restarts.
package reconcile

import (
	"context"

	"github.com/okian/ultralive/internal/domain/dedupe"
	"github.com/okian/ultralive/internal/domain/model"
	"github.com/okian/ultralive/pkg/logger"
	"github.com/okian/ultralive/pkg/metrics"
)

// LatestLap is the most recent persisted lap for one runner.
type LatestLap struct {
	Lap         int
	RaceTimeSec int64
}

// ExistsFunc reports whether a lap row is already persisted. Consulted
// only when the in-memory cache has no verdict.
type ExistsFunc func(ctx context.Context, key model.LapKey) (bool, error)

// Stats summarises one reconciliation pass. Rejected and Duplicate are
// diagnostics; neither aborts the tick.
type Stats struct {
	Detected  int // valid new laps handed to the store
	Rejected  int // candidates with impossible timing, skipped
	Duplicate int // candidates already persisted
}

// Engine turns snapshot/lap-history deltas into lap rows.
type Engine struct {
	cache dedupe.Deduper
	log   logger.Logger
}

// New builds an engine around the given idempotency cache.
func New(cache dedupe.Deduper) *Engine {
	return &Engine{
		cache: cache,
		log:   logger.Named("reconcile"),
	}
}

// Reconcile finds each runner whose snapshot lap count moved past their
// latest persisted lap and emits exactly one new lap row for them: the
// current lap, timed as the race-time delta since their previous lap.
// Candidates whose delta is non-positive (clock glitches, provider
// corrections) are rejected and will re-qualify on a later tick if the
// data heals. Existence re-checks make the pass safe to repeat.
func (e *Engine) Reconcile(ctx context.Context, settings model.RaceSettings, field []model.RunnerSnapshot, latest map[int]LatestLap, exists ExistsFunc) ([]model.LapRecord, Stats) {
	var stats Stats
	records := make([]model.LapRecord, 0)

	for _, s := range field {
		last := latest[s.Bib] // zero value: no laps persisted yet
		if s.Lap <= last.Lap {
			continue
		}

		lapTime := s.RaceTimeSec - last.RaceTimeSec
		if s.RaceTimeSec <= 0 || lapTime <= 0 {
			stats.Rejected++
			e.log.Debug(ctx, "rejected lap candidate",
				logger.Int("bib", s.Bib),
				logger.Int("lap", s.Lap),
				logger.Int64("race_time_sec", s.RaceTimeSec),
				logger.Int64("lap_time_sec", lapTime))
			continue
		}

		key := model.LapKey{RaceID: settings.RaceID, Bib: s.Bib, Lap: s.Lap}
		if e.cache.SeenAndRecord(ctx, key) {
			stats.Duplicate++
			continue
		}
		if exists != nil {
			found, err := exists(ctx, key)
			if err != nil {
				// leave the key unrecorded so the next tick retries
				e.cache.Unrecord(ctx, key)
				stats.Rejected++
				e.log.Warn(ctx, "lap existence check failed",
					logger.Int("bib", s.Bib),
					logger.Int("lap", s.Lap),
					logger.Error(err))
				continue
			}
			if found {
				stats.Duplicate++
				continue
			}
		}

		lapPace := 0.0
		if settings.LapLengthKm > 0 {
			lapPace = float64(lapTime) / settings.LapLengthKm
		}
		records = append(records, model.LapRecord{
			RaceID:      settings.RaceID,
			Bib:         s.Bib,
			Lap:         s.Lap,
			LapTimeSec:  lapTime,
			RaceTimeSec: s.RaceTimeSec,
			DistanceKm:  s.DistanceKm,
			Rank:        s.Rank,
			GenderRank:  s.GenderRank,
			LapPace:     lapPace,
			AvgPace:     s.LapPaceSec,
			Timestamp:   s.LastPassing,
		})
		stats.Detected++
	}

	metrics.RecordLapsDetected(stats.Detected)
	metrics.RecordLapsRejected(stats.Rejected)
	metrics.RecordLapsDuplicate(stats.Duplicate)
	return records, stats
}

// Forget releases keys whose store write failed so the laps re-qualify on
// the next tick.
func (e *Engine) Forget(ctx context.Context, records []model.LapRecord) {
	for _, r := range records {
		e.cache.Unrecord(ctx, r.Key())
	}
}
