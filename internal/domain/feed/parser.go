package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/ultralive/internal/domain/model"
	"github.com/okian/ultralive/pkg/logger"
	"github.com/okian/ultralive/pkg/metrics"
)

// Row is one runner's line as parsed from the provider payload, before
// normalisation. Zero values mean "not present in the payload".
type Row struct {
	Bib        int
	Name       string
	Country    string
	Gender     string // raw provider token, normalised later
	DistanceKm float64
	Laps       int
	ClockTime  string    // wall-clock passing as H:MM:SS, if textual
	Timestamp  time.Time // absolute passing, if the payload carried one
}

// Strategy recognises one payload shape. Parse returns the rows it could
// assemble and how many lines it had to drop.
type Strategy interface {
	Name() string
	Parse(body []byte) (rows []Row, dropped int, err error)
}

// Parser runs strategies in order until one yields rows.
type Parser struct {
	strategies []Strategy
	log        logger.Logger
}

// NewParser builds the default chain: embedded structured data first, the
// tabular heuristic as fallback.
func NewParser() *Parser {
	return &Parser{
		strategies: []Strategy{structuredStrategy{}, tabularStrategy{}},
		log:        logger.Named("feed.parser"),
	}
}

// Parse tries each strategy against the payload. A strategy that errors or
// recognises nothing passes the payload on; the first to produce rows
// wins. Recognised-but-empty payloads surface as ErrNoRows so the caller
// can alarm on a mid-race provider wipe.
func (p *Parser) Parse(ctx context.Context, body []byte) ([]Row, int, error) {
	recognised := false
	for _, s := range p.strategies {
		rows, dropped, err := s.Parse(body)
		if err != nil {
			p.log.Debug(ctx, "strategy did not match",
				logger.String("strategy", s.Name()),
				logger.Error(err))
			continue
		}
		recognised = true
		if len(rows) == 0 {
			continue
		}
		metrics.RecordRowsParsed(len(rows))
		metrics.RecordRowsDropped(dropped)
		p.log.Debug(ctx, "parsed feed",
			logger.String("strategy", s.Name()),
			logger.Int("rows", len(rows)),
			logger.Int("dropped", dropped))
		return rows, dropped, nil
	}
	if recognised {
		metrics.RecordEmptyBatch()
		return nil, 0, ErrNoRows
	}
	return nil, 0, ErrNoParse
}

// ResolveClock anchors a wall-clock H:MM:SS reading to the calendar date
// nearest the reference instant. The provider omits dates, so a reading
// taken just after midnight must not land 24h in the past; the candidate
// within 12h of the reference wins.
func ResolveClock(clock string, ref time.Time) (time.Time, error) {
	t, err := time.ParseInLocation("15:04:05", clock, ref.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("resolve clock %q: %w", clock, err)
	}
	sameDay := time.Date(ref.Year(), ref.Month(), ref.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, ref.Location())

	best := sameDay
	for _, cand := range []time.Time{sameDay.AddDate(0, 0, -1), sameDay.AddDate(0, 0, 1)} {
		if absDur(ref.Sub(cand)) < absDur(ref.Sub(best)) {
			best = cand
		}
	}
	return best, nil
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Normalize converts parsed rows into snapshots: clock readings become
// absolute timestamps, metric distances reported in meters scale to km,
// and a runner with laps but no distance gets the course-derived estimate
// as a last resort.
func Normalize(rows []Row, fetchTime time.Time, settings model.RaceSettings) []model.RunnerSnapshot {
	out := make([]model.RunnerSnapshot, 0, len(rows))
	for _, r := range rows {
		s := model.RunnerSnapshot{
			Bib:        r.Bib,
			Name:       strings.TrimSpace(r.Name),
			Country:    normalizeCountry(r.Country),
			Gender:     normalizeGender(r.Gender),
			DistanceKm: r.DistanceKm,
			Lap:        r.Laps,
		}

		// The provider switches between meters and km across events;
		// raw readings above 100 are meters.
		if s.DistanceKm > 100 {
			s.DistanceKm /= 1000
		}
		if s.DistanceKm == 0 && s.Lap > 0 {
			s.DistanceKm = settings.FirstLapKm + float64(s.Lap-1)*settings.LapLengthKm
		}

		switch {
		case !r.Timestamp.IsZero():
			s.LastPassing = r.Timestamp
		case r.ClockTime != "":
			if t, err := ResolveClock(r.ClockTime, fetchTime); err == nil {
				s.LastPassing = t
			}
		}

		out = append(out, s)
	}
	return out
}

func normalizeGender(raw string) model.Gender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "m", "h", "male", "homme", "men":
		return model.GenderMen
	case "w", "f", "female", "femme", "women":
		return model.GenderWomen
	default:
		return ""
	}
}

func normalizeCountry(raw string) string {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if len(c) != 3 {
		return "XXX"
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "XXX"
		}
	}
	return c
}
