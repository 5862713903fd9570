package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/ultralive/internal/domain/model"
	"github.com/okian/ultralive/internal/domain/reconcile"
)

// MemStore is the in-memory Store used when no database is configured and
// throughout the test suites. Same write discipline as the SQL store:
// leaderboard rows overwrite, lap rows never do.
type MemStore struct {
	mu       sync.RWMutex
	board    map[string]map[int]model.LeaderboardRow // raceID -> bib -> row
	laps     map[model.LapKey]model.LapRecord
	settings map[string]model.RaceSettings
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		board:    make(map[string]map[int]model.LeaderboardRow),
		laps:     make(map[model.LapKey]model.LapRecord),
		settings: make(map[string]model.RaceSettings),
	}
}

func (m *MemStore) UpsertBoard(ctx context.Context, raceID string, rows []model.LeaderboardRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byBib, ok := m.board[raceID]
	if !ok {
		byBib = make(map[int]model.LeaderboardRow, len(rows))
		m.board[raceID] = byBib
	}
	for _, r := range rows {
		r.RaceID = raceID
		byBib[r.Bib] = r
	}
	return nil
}

func (m *MemStore) Board(ctx context.Context, raceID string) ([]model.LeaderboardRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]model.LeaderboardRow, 0, len(m.board[raceID]))
	for _, r := range m.board[raceID] {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })
	return rows, nil
}

func (m *MemStore) Runner(ctx context.Context, raceID string, bib int) (model.LeaderboardRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.board[raceID][bib]
	if !ok {
		return model.LeaderboardRow{}, fmt.Errorf("runner %d: %w", bib, ErrNotFound)
	}
	return row, nil
}

func (m *MemStore) AppendLaps(ctx context.Context, records []model.LapRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, r := range records {
		key := r.Key()
		if _, exists := m.laps[key]; exists {
			continue
		}
		m.laps[key] = r
		inserted++
	}
	return inserted, nil
}

func (m *MemStore) LatestLaps(ctx context.Context, raceID string) (map[int]reconcile.LatestLap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int]reconcile.LatestLap)
	for key, rec := range m.laps {
		if key.RaceID != raceID {
			continue
		}
		if last, ok := out[key.Bib]; !ok || key.Lap > last.Lap {
			out[key.Bib] = reconcile.LatestLap{Lap: key.Lap, RaceTimeSec: rec.RaceTimeSec}
		}
	}
	return out, nil
}

func (m *MemStore) LapExists(ctx context.Context, key model.LapKey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.laps[key]
	return exists, nil
}

func (m *MemStore) LapsForBib(ctx context.Context, raceID string, bib int) ([]model.LapRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.LapRecord, 0)
	for key, rec := range m.laps {
		if key.RaceID == raceID && key.Bib == bib {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lap < out[j].Lap })
	return out, nil
}

func (m *MemStore) Settings(ctx context.Context, raceID string) (model.RaceSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.settings[raceID]
	if !ok {
		return model.RaceSettings{}, fmt.Errorf("race %q: %w", raceID, ErrNotFound)
	}
	return s, nil
}

func (m *MemStore) SaveSettings(ctx context.Context, settings model.RaceSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[settings.RaceID] = settings
	return nil
}

func (m *MemStore) TouchLastFetch(ctx context.Context, raceID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.settings[raceID]
	if !ok {
		return fmt.Errorf("race %q: %w", raceID, ErrNotFound)
	}
	s.LastFetch = at
	m.settings[raceID] = s
	return nil
}

func (m *MemStore) Close() {}
