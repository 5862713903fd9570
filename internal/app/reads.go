package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/ultralive/internal/adapters/repository"
	"github.com/okian/ultralive/internal/domain/model"
	"github.com/okian/ultralive/internal/domain/position"
	"github.com/okian/ultralive/internal/domain/predict"
	"github.com/okian/ultralive/internal/domain/racetime"
	"github.com/okian/ultralive/internal/domain/ranking"
)

// Leaderboard returns the current field for a view. Views "men" and
// "women" filter by gender, "watchlist" and "custom" restrict to the given
// bibs, anything else returns the overall field. Ranks are the stored
// overall ranks.
func (s *Service) Leaderboard(ctx context.Context, view string, bibs []int) ([]model.RunnerSnapshot, error) {
	rows, err := s.store.Board(ctx, s.raceID)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}

	wanted := make(map[int]bool, len(bibs))
	for _, b := range bibs {
		wanted[b] = true
	}

	out := make([]model.RunnerSnapshot, 0, len(rows))
	for _, row := range rows {
		switch view {
		case "men":
			if row.Gender != model.GenderMen {
				continue
			}
		case "women":
			if row.Gender != model.GenderWomen {
				continue
			}
		case "watchlist", "custom":
			if !wanted[row.Bib] {
				continue
			}
		}
		out = append(out, row.Snapshot())
	}
	return out, nil
}

// Positions derives live course spots at call time, for the whole field or
// just the selected bibs, plus the fixed landmarks.
func (s *Service) Positions(ctx context.Context, bibs []int) (model.PositionField, error) {
	settings, err := s.store.Settings(ctx, s.raceID)
	if err != nil {
		return model.PositionField{}, fmt.Errorf("load settings: %w", err)
	}
	rows, err := s.store.Board(ctx, s.raceID)
	if err != nil {
		return model.PositionField{}, fmt.Errorf("load leaderboard: %w", err)
	}
	if len(bibs) > 0 {
		wanted := make(map[int]bool, len(bibs))
		for _, b := range bibs {
			wanted[b] = true
		}
		kept := rows[:0]
		for _, row := range rows {
			if wanted[row.Bib] {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	s.mu.RLock()
	preds := make(map[int]predict.Result, len(s.predictions))
	for bib, p := range s.predictions {
		preds[bib] = p
	}
	s.mu.RUnlock()

	est := position.NewEstimator(s.line, settings)
	field := model.PositionField{
		States: est.Field(rows, preds, time.Now()),
	}
	for _, st := range field.States {
		if st.Status == model.StatusBreak {
			field.OnBreak = append(field.OnBreak, st.Bib)
		}
	}
	if settings.TimingMatLat != 0 || settings.TimingMatLon != 0 {
		field.TimingMat = &model.LatLon{Lat: settings.TimingMatLat, Lon: settings.TimingMatLon}
	}
	if s.line != nil {
		lat, lon := s.line.PointAtOffset(settings.CrewSpotOffsetMeters)
		field.CrewSpot = &model.LatLon{Lat: lat, Lon: lon}
	}
	return field, nil
}

// Countdown predicts timing mat and crew spot arrivals. Selection is by
// explicit bibs when given, otherwise by country and/or gender; with no
// selector the whole field is returned.
func (s *Service) Countdown(ctx context.Context, bibs []int, country string, gender model.Gender) ([]model.ArrivalPrediction, error) {
	settings, err := s.store.Settings(ctx, s.raceID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	rows, err := s.store.Board(ctx, s.raceID)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}

	wanted := make(map[int]bool, len(bibs))
	for _, b := range bibs {
		wanted[b] = true
	}

	now := time.Now()
	out := make([]model.ArrivalPrediction, 0, len(rows))
	for _, row := range rows {
		if len(bibs) > 0 {
			if !wanted[row.Bib] {
				continue
			}
		} else {
			if country != "" && row.Country != country {
				continue
			}
			if gender != "" && row.Gender != gender {
				continue
			}
		}

		p := s.prediction(row.Bib)
		if !p.Available && row.LapTimeSec > 0 {
			// race-average fallback, reported with zero confidence
			p = predict.Result{Available: true, PredictedLapSec: row.LapTimeSec}
		}

		timeSince := 0.0
		if !row.LastPassing.IsZero() {
			timeSince = now.Sub(row.LastPassing).Seconds()
			if timeSince < 0 {
				timeSince = 0
			}
		}
		untilMat, untilCrew := predict.Countdown(p, timeSince, settings.LapLengthKm, settings.CrewSpotOffsetMeters)

		out = append(out, model.ArrivalPrediction{
			Bib:                 row.Bib,
			Name:                row.Name,
			Country:             row.Country,
			Gender:              row.Gender,
			GenderRank:          row.GenderRank,
			DistanceKm:          row.DistanceKm,
			LastPassing:         row.LastPassing,
			TimeSincePassingSec: timeSince,
			PredictedLapTimeSec: p.PredictedLapSec,
			TimeUntilMatSec:     untilMat,
			TimeUntilCrewSec:    untilCrew,
			Confidence:          p.Confidence,
			RecentLapSec:        p.SampleLapSec,
		})
	}
	return out, nil
}

// Chart returns the selected runners' distance series, one point per
// completed lap. Bibs the race has never seen are skipped.
func (s *Service) Chart(ctx context.Context, bibs []int) ([]model.ChartSeries, error) {
	series := make([]model.ChartSeries, 0, len(bibs))
	for _, bib := range bibs {
		laps, err := s.runnerLaps(ctx, bib)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		points := make([]model.ChartPoint, 0, len(laps))
		for _, lap := range laps {
			points = append(points, model.ChartPoint{
				RaceTimeSec: lap.RaceTimeSec,
				DistanceKm:  lap.DistanceKm,
				ProjectedKm: racetime.ProjectedKm(lap.DistanceKm, lap.RaceTimeSec),
				AvgPace:     lap.AvgPace,
			})
		}
		series = append(series, model.ChartSeries{Bib: bib, Points: points})
	}
	return series, nil
}

// Laps returns one runner's full lap history, oldest first.
func (s *Service) Laps(ctx context.Context, bib int) ([]model.LapRecord, error) {
	return s.runnerLaps(ctx, bib)
}

// runnerLaps loads a runner's lap history, distinguishing "unknown bib"
// from "known runner with no laps yet".
func (s *Service) runnerLaps(ctx context.Context, bib int) ([]model.LapRecord, error) {
	laps, err := s.store.LapsForBib(ctx, s.raceID, bib)
	if err != nil {
		return nil, fmt.Errorf("load laps for bib %d: %w", bib, err)
	}
	if len(laps) == 0 {
		if _, err := s.store.Runner(ctx, s.raceID, bib); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, repository.ErrNotFound
			}
			return nil, fmt.Errorf("load runner %d: %w", bib, err)
		}
	}
	return laps, nil
}

// Teams returns national team standings from the current board, optionally
// restricted to one gender partition.
func (s *Service) Teams(ctx context.Context, gender model.Gender) ([]model.TeamScore, error) {
	rows, err := s.store.Board(ctx, s.raceID)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	field := make([]model.RunnerSnapshot, 0, len(rows))
	for _, row := range rows {
		field = append(field, row.Snapshot())
	}
	if gender.Valid() {
		return ranking.TeamsForGender(field, gender), nil
	}
	return ranking.Teams(field), nil
}

// Clock reports the race timing state at call time.
func (s *Service) Clock(ctx context.Context) (model.RaceClock, error) {
	settings, err := s.store.Settings(ctx, s.raceID)
	if err != nil {
		return model.RaceClock{}, fmt.Errorf("load settings: %w", err)
	}

	now := time.Now()
	clock := model.RaceClock{
		RaceID:     settings.RaceID,
		State:      settings.State,
		StartTime:  settings.StartTime,
		ServerTime: now,
		LastFetch:  settings.LastFetch,
	}

	if settings.State != model.RaceNotStarted && !settings.StartTime.IsZero() {
		elapsed := racetime.RaceSeconds(now, settings.StartTime, settings.StartTimeOffsetSec)
		if elapsed < 0 {
			elapsed = 0
		}
		if elapsed > raceDurationSec {
			elapsed = raceDurationSec
		}
		clock.RaceTimeSec = elapsed
		clock.RemainingSec = raceDurationSec - elapsed
	} else {
		clock.RemainingSec = raceDurationSec
	}
	return clock, nil
}

// GetStats returns service statistics for the stats endpoint.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":           s.started,
		"race_id":           s.raceID,
		"poll_interval_sec": s.pollInterval.Seconds(),
		"predictions":       len(s.predictions),
		"course_loaded":     s.line != nil,
		"ingestion":         s.source != nil,
	}
	if !s.lastTick.IsZero() {
		stats["last_tick"] = s.lastTick.UTC().Format(time.RFC3339)
	}
	if s.lastError != "" {
		stats["last_error"] = s.lastError
	}
	return stats
}
