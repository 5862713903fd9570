// Package service provides the core race engine that implements the
// dependencies required by the HTTP API and drives the ingestion loop.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/ultralive/internal/adapters/poll"
	"github.com/okian/ultralive/internal/adapters/repository"
	"github.com/okian/ultralive/internal/domain/course"
	"github.com/okian/ultralive/internal/domain/dedupe"
	"github.com/okian/ultralive/internal/domain/feed"
	"github.com/okian/ultralive/internal/domain/model"
	"github.com/okian/ultralive/internal/domain/position"
	"github.com/okian/ultralive/internal/domain/predict"
	"github.com/okian/ultralive/internal/domain/racetime"
	"github.com/okian/ultralive/internal/domain/ranking"
	"github.com/okian/ultralive/internal/domain/reconcile"
	"github.com/okian/ultralive/pkg/logger"
	"github.com/okian/ultralive/pkg/metrics"
)

// raceDurationSec is the fixed 24h race length.
const raceDurationSec = 86400

// Service implements the API dependencies for the race engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	source     feed.Source
	parser     *feed.Parser
	reconciler *reconcile.Engine
	poller     *poll.Poller
	line       *course.Polyline

	// Configuration
	raceID       string
	pollInterval time.Duration
	dedupeSize   int

	// Per-runner predictions, refreshed when a runner completes a lap.
	predictions map[int]predict.Result

	// State
	started   bool
	lastTick  time.Time
	lastError string

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. Defaults to the in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSource sets the provider feed source. Without one the service only
// serves reads.
func WithSource(source feed.Source) Option {
	return func(s *Service) {
		s.source = source
	}
}

// WithRaceID sets the race this instance ingests.
func WithRaceID(raceID string) Option {
	return func(s *Service) {
		if raceID != "" {
			s.raceID = raceID
		}
	}
}

// WithPollInterval sets the ingestion tick interval.
func WithPollInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// WithDedupeSize sets the size of the lap key cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithCourse sets the course polyline used for position estimation.
func WithCourse(line *course.Polyline) Option {
	return func(s *Service) {
		s.line = line
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		raceID:       "default",
		pollInterval: 10 * time.Second,
		dedupeSize:   100_000,
		predictions:  make(map[int]predict.Result),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the components and, when a feed source is configured,
// launches the ingestion poller.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemStore()
		s.logger.Info(ctx, "using in-memory store")
	}

	s.parser = feed.NewParser()
	s.reconciler = reconcile.New(dedupe.NewInMemory(
		dedupe.WithMaxSize(s.dedupeSize),
	))

	if s.source != nil {
		s.poller = poll.New(s.pollInterval, s.RunTick)
		s.poller.Start(ctx)
	} else {
		s.logger.Warn(ctx, "no feed source configured, ingestion disabled")
	}

	s.started = true
	s.logger.Info(ctx, "race engine started",
		logger.String("race_id", s.raceID),
		logger.Duration("poll_interval", s.pollInterval),
	)
	return nil
}

// Stop gracefully shuts down the service. The poller wait must happen
// outside the mutex: an in-flight tick takes s.mu to record its outcome,
// so holding the lock here would deadlock against it.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	poller := s.poller
	store := s.store
	s.mu.Unlock()

	if poller != nil {
		poller.Stop()
	}
	if store != nil {
		store.Close()
	}
	s.logger.Info(context.Background(), "race engine stopped")
}

// RunTick executes one full ingestion pass: fetch, parse, derive, rank,
// write. Any failure before the writes aborts the tick with nothing
// persisted; the next tick starts clean.
func (s *Service) RunTick(ctx context.Context, tickID string) error {
	settings, err := s.store.Settings(ctx, s.raceID)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Debug(ctx, "race not configured, skipping tick",
			logger.String("race_id", s.raceID))
		return nil
	}
	if err != nil {
		return s.failTick(fmt.Errorf("load settings: %w", err))
	}
	if settings.State != model.RaceLive {
		s.logger.Debug(ctx, "race not live, skipping tick",
			logger.String("state", string(settings.State)))
		return nil
	}

	body, err := s.source.Fetch(ctx)
	if err != nil {
		return s.failTick(err)
	}
	fetchedAt := time.Now()

	rows, _, err := s.parser.Parse(ctx, body)
	if errors.Is(err, feed.ErrNoRows) {
		// a mid-race wipe means the provider broke, not that everyone quit
		s.logger.Error(ctx, "provider returned zero rows mid-race",
			logger.String("tick_id", tickID))
		return s.failTick(err)
	}
	if err != nil {
		return s.failTick(err)
	}

	field := feed.Normalize(rows, fetchedAt, settings)
	racetime.Enrich(field, settings)
	ranking.Apply(field)

	latest, err := s.store.LatestLaps(ctx, s.raceID)
	if err != nil {
		return s.failTick(fmt.Errorf("load latest laps: %w", err))
	}
	records, stats := s.reconciler.Reconcile(ctx, settings, field, latest, s.store.LapExists)

	s.applyTrends(field, records)

	// Phase 1: overwrite the current state.
	boardRows := make([]model.LeaderboardRow, 0, len(field))
	for _, snap := range field {
		boardRows = append(boardRows, toBoardRow(s.raceID, snap))
	}
	if err := s.store.UpsertBoard(ctx, s.raceID, boardRows); err != nil {
		s.reconciler.Forget(ctx, records)
		return s.failTick(fmt.Errorf("upsert board: %w", err))
	}

	// Phase 2: append the newly completed laps.
	inserted, err := s.store.AppendLaps(ctx, records)
	if err != nil {
		s.reconciler.Forget(ctx, records)
		return s.failTick(fmt.Errorf("append laps: %w", err))
	}
	metrics.RecordLapsInserted(inserted)

	s.refreshPredictions(ctx, records)

	if err := s.store.TouchLastFetch(ctx, s.raceID, fetchedAt); err != nil {
		s.logger.Warn(ctx, "failed to record fetch time", logger.Error(err))
	}

	metrics.UpdateFieldSize(len(field))
	metrics.UpdateRunnersOnBreak(s.countOnBreak(boardRows, settings, time.Now()))

	s.mu.Lock()
	s.lastTick = time.Now()
	s.lastError = ""
	s.mu.Unlock()

	s.logger.Info(ctx, "tick complete",
		logger.String("tick_id", tickID),
		logger.Int("runners", len(field)),
		logger.Int("laps_detected", stats.Detected),
		logger.Int("laps_inserted", inserted),
		logger.Int("laps_rejected", stats.Rejected),
		logger.Int("laps_duplicate", stats.Duplicate),
	)
	return nil
}

// failTick records the error for /stats and passes it through.
func (s *Service) failTick(err error) error {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
	return err
}

// applyTrends classifies pace movement for runners who just completed a
// lap. Everyone else stays stable until their next crossing.
func (s *Service) applyTrends(field []model.RunnerSnapshot, records []model.LapRecord) {
	byBib := make(map[int]model.LapRecord, len(records))
	for _, r := range records {
		byBib[r.Bib] = r
	}
	for i := range field {
		field[i].Trend = model.TrendStable
		if rec, ok := byBib[field[i].Bib]; ok {
			field[i].Trend = racetime.Trend(rec.LapPace, field[i].LapPaceSec)
		}
	}
}

// refreshPredictions recomputes the arrival model for runners who just
// completed a lap. Only those runners changed, so the rest of the cache
// stays valid.
func (s *Service) refreshPredictions(ctx context.Context, records []model.LapRecord) {
	for _, rec := range records {
		history, err := s.store.LapsForBib(ctx, s.raceID, rec.Bib)
		if err != nil {
			s.logger.Warn(ctx, "failed to load lap history for prediction",
				logger.Int("bib", rec.Bib),
				logger.Error(err))
			continue
		}
		result := predict.LapTime(history, rec.RaceTimeSec)

		s.mu.Lock()
		s.predictions[rec.Bib] = result
		s.mu.Unlock()
	}
}

// prediction returns the cached arrival model for a runner.
func (s *Service) prediction(bib int) predict.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.predictions[bib]
}

// countOnBreak classifies the field for the live gauge.
func (s *Service) countOnBreak(rows []model.LeaderboardRow, settings model.RaceSettings, now time.Time) int {
	n := 0
	for _, row := range rows {
		if row.LastPassing.IsZero() {
			continue
		}
		timeSince := now.Sub(row.LastPassing).Seconds()
		predicted := row.LapTimeSec
		if p := s.prediction(row.Bib); p.Available {
			predicted = p.PredictedLapSec
		}
		if position.Status(timeSince, settings.OverdueDisplaySec, predicted, settings.BreakThresholdMultiplier) == model.StatusBreak {
			n++
		}
	}
	return n
}

func toBoardRow(raceID string, s model.RunnerSnapshot) model.LeaderboardRow {
	return model.LeaderboardRow{
		RaceID:      raceID,
		Bib:         s.Bib,
		Name:        s.Name,
		Country:     s.Country,
		Gender:      s.Gender,
		Rank:        s.Rank,
		GenderRank:  s.GenderRank,
		DistanceKm:  s.DistanceKm,
		ProjectedKm: s.ProjectedKm,
		RaceTimeSec: s.RaceTimeSec,
		LapPaceSec:  s.LapPaceSec,
		LapTimeSec:  s.LapTimeSec,
		Lap:         s.Lap,
		Trend:       s.Trend,
		LastPassing: s.LastPassing,
	}
}
