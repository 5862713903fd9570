package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/ultralive/internal/domain/model"
	"github.com/okian/ultralive/internal/domain/reconcile"
	"github.com/okian/ultralive/pkg/metrics"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a pool, verifies connectivity and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.createSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) createSchema(ctx context.Context) error {
	schema := `
	-- Current state: one row per runner, overwritten every tick
	CREATE TABLE IF NOT EXISTS race_leaderboard (
		race_id        TEXT NOT NULL,
		bib            INTEGER NOT NULL,
		name           TEXT NOT NULL,
		country        TEXT NOT NULL DEFAULT 'XXX',
		gender         TEXT NOT NULL DEFAULT '',
		rank           INTEGER NOT NULL DEFAULT 0,
		gender_rank    INTEGER NOT NULL DEFAULT 0,
		distance_km    DOUBLE PRECISION NOT NULL DEFAULT 0,
		projected_km   DOUBLE PRECISION NOT NULL DEFAULT 0,
		race_time_sec  BIGINT NOT NULL DEFAULT 0,
		lap_pace_sec   DOUBLE PRECISION NOT NULL DEFAULT 0,
		lap_time_sec   DOUBLE PRECISION NOT NULL DEFAULT 0,
		lap            INTEGER NOT NULL DEFAULT 0,
		trend          TEXT NOT NULL DEFAULT 'stable',
		last_passing   TIMESTAMPTZ,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (race_id, bib)
	);

	CREATE INDEX IF NOT EXISTS idx_leaderboard_rank ON race_leaderboard(race_id, rank);

	-- History: append-only, one row per completed lap
	CREATE TABLE IF NOT EXISTS race_laps (
		race_id        TEXT NOT NULL,
		bib            INTEGER NOT NULL,
		lap            INTEGER NOT NULL,
		lap_time_sec   BIGINT NOT NULL,
		race_time_sec  BIGINT NOT NULL,
		distance_km    DOUBLE PRECISION NOT NULL DEFAULT 0,
		rank           INTEGER NOT NULL DEFAULT 0,
		gender_rank    INTEGER NOT NULL DEFAULT 0,
		lap_pace       DOUBLE PRECISION NOT NULL DEFAULT 0,
		avg_pace       DOUBLE PRECISION NOT NULL DEFAULT 0,
		ts             TIMESTAMPTZ,
		PRIMARY KEY (race_id, bib, lap)
	);

	CREATE INDEX IF NOT EXISTS idx_laps_bib ON race_laps(race_id, bib);

	-- Operator-owned race configuration
	CREATE TABLE IF NOT EXISTS race_config (
		race_id                    TEXT PRIMARY KEY,
		state                      TEXT NOT NULL DEFAULT 'not_started',
		start_time                 TIMESTAMPTZ,
		start_time_offset_sec      BIGINT NOT NULL DEFAULT 0,
		lap_length_km              DOUBLE PRECISION NOT NULL,
		first_lap_km               DOUBLE PRECISION NOT NULL DEFAULT 0,
		break_threshold_multiplier DOUBLE PRECISION NOT NULL DEFAULT 2.5,
		overdue_display_sec        DOUBLE PRECISION NOT NULL DEFAULT 180,
		crew_spot_offset_meters    DOUBLE PRECISION NOT NULL DEFAULT 0,
		timing_mat_lat             DOUBLE PRECISION NOT NULL DEFAULT 0,
		timing_mat_lon             DOUBLE PRECISION NOT NULL DEFAULT 0,
		reverse_track_direction    BOOLEAN NOT NULL DEFAULT FALSE,
		feed_url                   TEXT NOT NULL DEFAULT '',
		last_fetch                 TIMESTAMPTZ
	);`

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertBoard(ctx context.Context, raceID string, rows []model.LeaderboardRow) error {
	start := time.Now()

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO race_leaderboard (
				race_id, bib, name, country, gender, rank, gender_rank,
				distance_km, projected_km, race_time_sec, lap_pace_sec,
				lap_time_sec, lap, trend, last_passing, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NOW())
			ON CONFLICT (race_id, bib) DO UPDATE SET
				name = EXCLUDED.name,
				country = EXCLUDED.country,
				gender = EXCLUDED.gender,
				rank = EXCLUDED.rank,
				gender_rank = EXCLUDED.gender_rank,
				distance_km = EXCLUDED.distance_km,
				projected_km = EXCLUDED.projected_km,
				race_time_sec = EXCLUDED.race_time_sec,
				lap_pace_sec = EXCLUDED.lap_pace_sec,
				lap_time_sec = EXCLUDED.lap_time_sec,
				lap = EXCLUDED.lap,
				trend = EXCLUDED.trend,
				last_passing = EXCLUDED.last_passing,
				updated_at = NOW()`,
			raceID, r.Bib, r.Name, r.Country, string(r.Gender), r.Rank, r.GenderRank,
			r.DistanceKm, r.ProjectedKm, r.RaceTimeSec, r.LapPaceSec,
			r.LapTimeSec, r.Lap, string(r.Trend), nullTime(r.LastPassing))
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert board: %w", err)
	}
	metrics.ObserveStoreWrite(time.Since(start))
	metrics.RecordBoardUpserts(len(rows))
	return nil
}

func (s *PostgresStore) Board(ctx context.Context, raceID string) ([]model.LeaderboardRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT race_id, bib, name, country, gender, rank, gender_rank,
		       distance_km, projected_km, race_time_sec, lap_pace_sec,
		       lap_time_sec, lap, trend, last_passing, updated_at
		FROM race_leaderboard
		WHERE race_id = $1
		ORDER BY rank`, raceID)
	if err != nil {
		return nil, fmt.Errorf("query board: %w", err)
	}
	defer rows.Close()

	var out []model.LeaderboardRow
	for rows.Next() {
		r, err := scanBoardRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Runner(ctx context.Context, raceID string, bib int) (model.LeaderboardRow, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT race_id, bib, name, country, gender, rank, gender_rank,
		       distance_km, projected_km, race_time_sec, lap_pace_sec,
		       lap_time_sec, lap, trend, last_passing, updated_at
		FROM race_leaderboard
		WHERE race_id = $1 AND bib = $2`, raceID, bib)

	r, err := scanBoardRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.LeaderboardRow{}, fmt.Errorf("runner %d: %w", bib, ErrNotFound)
	}
	return r, err
}

func (s *PostgresStore) AppendLaps(ctx context.Context, records []model.LapRecord) (int, error) {
	start := time.Now()

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO race_laps (
				race_id, bib, lap, lap_time_sec, race_time_sec,
				distance_km, rank, gender_rank, lap_pace, avg_pace, ts
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (race_id, bib, lap) DO NOTHING`,
			r.RaceID, r.Bib, r.Lap, r.LapTimeSec, r.RaceTimeSec,
			r.DistanceKm, r.Rank, r.GenderRank, r.LapPace, r.AvgPace,
			nullTime(r.Timestamp))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range records {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("append laps: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	metrics.ObserveStoreWrite(time.Since(start))
	return inserted, nil
}

func (s *PostgresStore) LatestLaps(ctx context.Context, raceID string) (map[int]reconcile.LatestLap, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (bib) bib, lap, race_time_sec
		FROM race_laps
		WHERE race_id = $1
		ORDER BY bib, lap DESC`, raceID)
	if err != nil {
		return nil, fmt.Errorf("query latest laps: %w", err)
	}
	defer rows.Close()

	out := make(map[int]reconcile.LatestLap)
	for rows.Next() {
		var bib int
		var last reconcile.LatestLap
		if err := rows.Scan(&bib, &last.Lap, &last.RaceTimeSec); err != nil {
			return nil, fmt.Errorf("scan latest lap: %w", err)
		}
		out[bib] = last
	}
	return out, rows.Err()
}

func (s *PostgresStore) LapExists(ctx context.Context, key model.LapKey) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM race_laps WHERE race_id = $1 AND bib = $2 AND lap = $3
		)`, key.RaceID, key.Bib, key.Lap).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lap exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) LapsForBib(ctx context.Context, raceID string, bib int) ([]model.LapRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT race_id, bib, lap, lap_time_sec, race_time_sec,
		       distance_km, rank, gender_rank, lap_pace, avg_pace, ts
		FROM race_laps
		WHERE race_id = $1 AND bib = $2
		ORDER BY lap`, raceID, bib)
	if err != nil {
		return nil, fmt.Errorf("query laps: %w", err)
	}
	defer rows.Close()

	var out []model.LapRecord
	for rows.Next() {
		var r model.LapRecord
		var ts *time.Time
		if err := rows.Scan(&r.RaceID, &r.Bib, &r.Lap, &r.LapTimeSec, &r.RaceTimeSec,
			&r.DistanceKm, &r.Rank, &r.GenderRank, &r.LapPace, &r.AvgPace, &ts); err != nil {
			return nil, fmt.Errorf("scan lap: %w", err)
		}
		if ts != nil {
			r.Timestamp = *ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Settings(ctx context.Context, raceID string) (model.RaceSettings, error) {
	var (
		cfg       model.RaceSettings
		state     string
		startTime *time.Time
		lastFetch *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT race_id, state, start_time, start_time_offset_sec, lap_length_km,
		       first_lap_km, break_threshold_multiplier, overdue_display_sec,
		       crew_spot_offset_meters, timing_mat_lat, timing_mat_lon,
		       reverse_track_direction, feed_url, last_fetch
		FROM race_config
		WHERE race_id = $1`, raceID).Scan(
		&cfg.RaceID, &state, &startTime, &cfg.StartTimeOffsetSec, &cfg.LapLengthKm,
		&cfg.FirstLapKm, &cfg.BreakThresholdMultiplier, &cfg.OverdueDisplaySec,
		&cfg.CrewSpotOffsetMeters, &cfg.TimingMatLat, &cfg.TimingMatLon,
		&cfg.ReverseTrackDirection, &cfg.FeedURL, &lastFetch)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RaceSettings{}, fmt.Errorf("race %q: %w", raceID, ErrNotFound)
	}
	if err != nil {
		return model.RaceSettings{}, fmt.Errorf("query settings: %w", err)
	}

	cfg.State = model.RaceState(state)
	if startTime != nil {
		cfg.StartTime = *startTime
	}
	if lastFetch != nil {
		cfg.LastFetch = *lastFetch
	}
	return cfg, nil
}

func (s *PostgresStore) SaveSettings(ctx context.Context, settings model.RaceSettings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO race_config (
			race_id, state, start_time, start_time_offset_sec, lap_length_km,
			first_lap_km, break_threshold_multiplier, overdue_display_sec,
			crew_spot_offset_meters, timing_mat_lat, timing_mat_lon,
			reverse_track_direction, feed_url, last_fetch
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (race_id) DO UPDATE SET
			state = EXCLUDED.state,
			start_time = EXCLUDED.start_time,
			start_time_offset_sec = EXCLUDED.start_time_offset_sec,
			lap_length_km = EXCLUDED.lap_length_km,
			first_lap_km = EXCLUDED.first_lap_km,
			break_threshold_multiplier = EXCLUDED.break_threshold_multiplier,
			overdue_display_sec = EXCLUDED.overdue_display_sec,
			crew_spot_offset_meters = EXCLUDED.crew_spot_offset_meters,
			timing_mat_lat = EXCLUDED.timing_mat_lat,
			timing_mat_lon = EXCLUDED.timing_mat_lon,
			reverse_track_direction = EXCLUDED.reverse_track_direction,
			feed_url = EXCLUDED.feed_url,
			last_fetch = EXCLUDED.last_fetch`,
		settings.RaceID, string(settings.State), nullTime(settings.StartTime),
		settings.StartTimeOffsetSec, settings.LapLengthKm, settings.FirstLapKm,
		settings.BreakThresholdMultiplier, settings.OverdueDisplaySec,
		settings.CrewSpotOffsetMeters, settings.TimingMatLat, settings.TimingMatLon,
		settings.ReverseTrackDirection, settings.FeedURL, nullTime(settings.LastFetch))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) TouchLastFetch(ctx context.Context, raceID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE race_config SET last_fetch = $2 WHERE race_id = $1`, raceID, at)
	if err != nil {
		return fmt.Errorf("touch last fetch: %w", err)
	}
	return nil
}

// scanBoardRow scans one leaderboard row from either a pgx.Row or
// pgx.Rows cursor.
func scanBoardRow(row pgx.Row) (model.LeaderboardRow, error) {
	var (
		r           model.LeaderboardRow
		gender      string
		trend       string
		lastPassing *time.Time
	)
	err := row.Scan(&r.RaceID, &r.Bib, &r.Name, &r.Country, &gender, &r.Rank,
		&r.GenderRank, &r.DistanceKm, &r.ProjectedKm, &r.RaceTimeSec,
		&r.LapPaceSec, &r.LapTimeSec, &r.Lap, &trend, &lastPassing, &r.UpdatedAt)
	if err != nil {
		return model.LeaderboardRow{}, err
	}
	r.Gender = model.Gender(gender)
	r.Trend = model.Trend(trend)
	if lastPassing != nil {
		r.LastPassing = *lastPassing
	}
	return r, nil
}

// nullTime maps Go's zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
