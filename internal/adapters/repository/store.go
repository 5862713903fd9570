// Package repository persists race state. Writes come in two distinct
// shapes: the leaderboard is overwritten in full every tick, while lap
// rows are append-only and never updated. The interfaces keep those two
// write disciplines apart so neither path can drift into the other.
package repository

import (
	"context"
	"time"

	"github.com/okian/ultralive/internal/domain/model"
	"github.com/okian/ultralive/internal/domain/reconcile"
)

// LeaderboardStore is the idempotent current-state surface. Re-running a
// tick re-writes identical rows and changes nothing.
type LeaderboardStore interface {
	// UpsertBoard replaces the stored row of every runner present in rows.
	UpsertBoard(ctx context.Context, raceID string, rows []model.LeaderboardRow) error

	// Board returns all rows for a race ordered by rank ascending.
	Board(ctx context.Context, raceID string) ([]model.LeaderboardRow, error)

	// Runner returns one row, or ErrNotFound.
	Runner(ctx context.Context, raceID string, bib int) (model.LeaderboardRow, error)
}

// LapStore is the append-only lap history. Rows are keyed by
// (race, bib, lap) and a key is written at most once, ever.
type LapStore interface {
	// AppendLaps inserts rows whose keys are not yet present and reports
	// how many actually landed. Duplicate keys are skipped, not errors.
	AppendLaps(ctx context.Context, records []model.LapRecord) (int, error)

	// LatestLaps returns each runner's highest persisted lap in one query.
	LatestLaps(ctx context.Context, raceID string) (map[int]reconcile.LatestLap, error)

	// LapExists reports whether a lap row is already persisted.
	LapExists(ctx context.Context, key model.LapKey) (bool, error)

	// LapsForBib returns one runner's full history ordered by lap.
	LapsForBib(ctx context.Context, raceID string, bib int) ([]model.LapRecord, error)
}

// SettingsStore holds the operator-owned race configuration row.
type SettingsStore interface {
	// Settings returns a race's settings, or ErrNotFound when the race is
	// not configured. Ticks no-op on ErrNotFound.
	Settings(ctx context.Context, raceID string) (model.RaceSettings, error)

	// SaveSettings writes the full settings row.
	SaveSettings(ctx context.Context, settings model.RaceSettings) error

	// TouchLastFetch records when the provider was last polled.
	TouchLastFetch(ctx context.Context, raceID string, at time.Time) error
}

// Store is the full persistence surface the service runs on.
type Store interface {
	LeaderboardStore
	LapStore
	SettingsStore

	Close()
}
