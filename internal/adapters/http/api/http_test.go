package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/ultralive/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// stubDeps serves canned responses for every read operation.
type stubDeps struct {
	field []model.RunnerSnapshot
	laps  map[int][]model.LapRecord
}

func (s *stubDeps) Leaderboard(ctx context.Context, view string, bibs []int) ([]model.RunnerSnapshot, error) {
	wanted := make(map[int]bool, len(bibs))
	for _, b := range bibs {
		wanted[b] = true
	}
	out := make([]model.RunnerSnapshot, 0, len(s.field))
	for _, r := range s.field {
		switch view {
		case ViewMen:
			if r.Gender != model.GenderMen {
				continue
			}
		case ViewWomen:
			if r.Gender != model.GenderWomen {
				continue
			}
		case ViewCustom:
			if !wanted[r.Bib] {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *stubDeps) Positions(ctx context.Context, bibs []int) (model.PositionField, error) {
	wanted := make(map[int]bool, len(bibs))
	for _, b := range bibs {
		wanted[b] = true
	}
	var field model.PositionField
	for _, r := range s.field {
		if len(bibs) > 0 && !wanted[r.Bib] {
			continue
		}
		status := model.StatusOnCourse
		if r.Bib == 42 {
			status = model.StatusBreak
			field.OnBreak = append(field.OnBreak, r.Bib)
		}
		field.States = append(field.States, model.RunnerPositionState{
			Bib:             r.Bib,
			Name:            r.Name,
			Status:          status,
			ProgressPercent: 42.0,
		})
	}
	field.TimingMat = &model.LatLon{Lat: 48.51, Lon: -2.76}
	return field, nil
}

func (s *stubDeps) Countdown(ctx context.Context, bibs []int, country string, gender model.Gender) ([]model.ArrivalPrediction, error) {
	wanted := make(map[int]bool, len(bibs))
	for _, b := range bibs {
		wanted[b] = true
	}
	out := make([]model.ArrivalPrediction, 0, len(s.field))
	for _, r := range s.field {
		if len(bibs) > 0 && !wanted[r.Bib] {
			continue
		}
		if len(bibs) == 0 && country != "" && r.Country != country {
			continue
		}
		out = append(out, model.ArrivalPrediction{
			Bib:                 r.Bib,
			Name:                r.Name,
			PredictedLapTimeSec: 600,
			TimeUntilMatSec:     120,
			Confidence:          0.9,
		})
	}
	return out, nil
}

func (s *stubDeps) Chart(ctx context.Context, bibs []int) ([]model.ChartSeries, error) {
	series := make([]model.ChartSeries, 0, len(bibs))
	for _, bib := range bibs {
		laps, ok := s.laps[bib]
		if !ok {
			continue
		}
		points := make([]model.ChartPoint, 0, len(laps))
		for _, l := range laps {
			points = append(points, model.ChartPoint{RaceTimeSec: l.RaceTimeSec, DistanceKm: l.DistanceKm})
		}
		series = append(series, model.ChartSeries{Bib: bib, Points: points})
	}
	return series, nil
}

func (s *stubDeps) Laps(ctx context.Context, bib int) ([]model.LapRecord, error) {
	laps, ok := s.laps[bib]
	if !ok {
		return nil, ErrNotFound
	}
	return laps, nil
}

func (s *stubDeps) Teams(ctx context.Context, gender model.Gender) ([]model.TeamScore, error) {
	all := []model.TeamScore{
		{Country: "FRA", Gender: model.GenderWomen, Rank: 1, TotalKm: 420.5, Bibs: []int{42}},
		{Country: "LTU", Gender: model.GenderMen, Rank: 2, TotalKm: 390.1, Bibs: []int{7}},
	}
	if gender == "" {
		return all, nil
	}
	out := make([]model.TeamScore, 0, len(all))
	for _, t := range all {
		if t.Gender == gender {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *stubDeps) Clock(ctx context.Context) (model.RaceClock, error) {
	return model.RaceClock{
		RaceID:       "default",
		State:        model.RaceLive,
		RaceTimeSec:  14400,
		RemainingSec: 72000,
	}, nil
}

type stubStats struct{}

func (stubStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestMux() *http.ServeMux {
	deps := &stubDeps{
		field: []model.RunnerSnapshot{
			{Bib: 7, Name: "Aleksandr Sorokin", Country: "LTU", Gender: model.GenderMen, Rank: 1, GenderRank: 1, DistanceKm: 158.3, LastPassing: time.Now()},
			{Bib: 42, Name: "Camille Bruyas", Country: "FRA", Gender: model.GenderWomen, Rank: 2, GenderRank: 1, DistanceKm: 152.3, LastPassing: time.Now()},
		},
		laps: map[int][]model.LapRecord{
			42: {
				{RaceID: "default", Bib: 42, Lap: 1, LapTimeSec: 540, RaceTimeSec: 540, DistanceKm: 0.1},
				{RaceID: "default", Bib: 42, Lap: 2, LapTimeSec: 560, RaceTimeSec: 1100, DistanceKm: 1.6},
			},
		},
	}
	mux := http.NewServeMux()
	NewServer(deps, stubStats{}, 100).Register(context.Background(), mux)
	return mux
}

func get(mux *http.ServeMux, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestLeaderboardEndpoint(t *testing.T) {
	Convey("Given the API routes", t, func() {
		mux := newTestMux()

		Convey("GET /leaderboard returns the overall field", func() {
			rec := get(mux, "/leaderboard")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var entries []runnerEntry
			So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
			So(len(entries), ShouldEqual, 2)
			So(entries[0].Bib, ShouldEqual, 7)
			So(entries[0].Rank, ShouldEqual, 1)
		})

		Convey("GET /leaderboard?view=women filters but keeps overall ranks", func() {
			rec := get(mux, "/leaderboard?view=women")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var entries []runnerEntry
			So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
			So(len(entries), ShouldEqual, 1)
			So(entries[0].Bib, ShouldEqual, 42)
			So(entries[0].Rank, ShouldEqual, 2)
		})

		Convey("GET /leaderboard bib-list views require bibs", func() {
			So(get(mux, "/leaderboard?view=custom").Code, ShouldEqual, http.StatusBadRequest)
			So(get(mux, "/leaderboard?view=watchlist").Code, ShouldEqual, http.StatusBadRequest)
			So(get(mux, "/leaderboard?view=custom&bibs=42").Code, ShouldEqual, http.StatusOK)
			So(get(mux, "/leaderboard?view=watchlist&bibs=7").Code, ShouldEqual, http.StatusOK)
		})

		Convey("GET /leaderboard rejects bad parameters", func() {
			So(get(mux, "/leaderboard?view=aliens").Code, ShouldEqual, http.StatusBadRequest)
			So(get(mux, "/leaderboard?bibs=x,y").Code, ShouldEqual, http.StatusBadRequest)
			So(get(mux, "/leaderboard?limit=0").Code, ShouldEqual, http.StatusBadRequest)
			So(get(mux, "/leaderboard?limit=101").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET /leaderboard?limit=1 truncates the field", func() {
			rec := get(mux, "/leaderboard?limit=1")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var entries []runnerEntry
			So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
			So(len(entries), ShouldEqual, 1)
		})
	})
}

func TestCountdownEndpoint(t *testing.T) {
	Convey("Given the API routes", t, func() {
		mux := newTestMux()

		Convey("GET /countdown requires a selection", func() {
			So(get(mux, "/countdown").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET /countdown rejects unknown genders", func() {
			So(get(mux, "/countdown?country=FRA&gender=x").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET /countdown?bibs=42 serves predictions", func() {
			rec := get(mux, "/countdown?bibs=42")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var entries []countdownEntry
			So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
			So(len(entries), ShouldEqual, 1)
			So(entries[0].Bib, ShouldEqual, 42)
			So(entries[0].TimeUntilMatSec, ShouldEqual, 120)
		})

		Convey("GET /countdown?country=LTU selects the partition", func() {
			rec := get(mux, "/countdown?country=LTU")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var entries []countdownEntry
			So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
			So(len(entries), ShouldEqual, 1)
			So(entries[0].Bib, ShouldEqual, 7)
		})
	})
}

func TestHistoryEndpoints(t *testing.T) {
	Convey("Given the API routes", t, func() {
		mux := newTestMux()

		Convey("GET /laps/{bib} serves the history", func() {
			rec := get(mux, "/laps/42")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var entries []lapEntry
			So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
			So(len(entries), ShouldEqual, 2)
			So(entries[1].Lap, ShouldEqual, 2)
		})

		Convey("GET /laps/{bib} validates the path", func() {
			So(get(mux, "/laps/").Code, ShouldEqual, http.StatusBadRequest)
			So(get(mux, "/laps/abc").Code, ShouldEqual, http.StatusBadRequest)
			So(get(mux, "/laps/999").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("GET /chart?bibs=42,999 serves known series only", func() {
			rec := get(mux, "/chart?bibs=42,999")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var series []model.ChartSeries
			So(json.Unmarshal(rec.Body.Bytes(), &series), ShouldBeNil)
			So(len(series), ShouldEqual, 1)
			So(series[0].Bib, ShouldEqual, 42)
			So(len(series[0].Points), ShouldEqual, 2)
		})

		Convey("GET /chart requires bibs", func() {
			So(get(mux, "/chart").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStateEndpoints(t *testing.T) {
	Convey("Given the API routes", t, func() {
		mux := newTestMux()

		Convey("GET /positions serves the live field with the break list", func() {
			rec := get(mux, "/positions")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"on-course"`)
			So(rec.Body.String(), ShouldContainSubstring, `"on_break":[42]`)
			So(rec.Body.String(), ShouldContainSubstring, `"timing_mat"`)
		})

		Convey("GET /positions?bibs=7 filters the field", func() {
			rec := get(mux, "/positions?bibs=7")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "Sorokin")
			So(rec.Body.String(), ShouldNotContainSubstring, "Bruyas")
		})

		Convey("GET /teams serves standings, optionally one gender", func() {
			rec := get(mux, "/teams")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "FRA")
			So(rec.Body.String(), ShouldContainSubstring, "LTU")

			rec = get(mux, "/teams?gender=w")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "FRA")
			So(rec.Body.String(), ShouldNotContainSubstring, "LTU")
		})

		Convey("GET /clock reports timing state", func() {
			rec := get(mux, "/clock")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var clock model.RaceClock
			So(json.Unmarshal(rec.Body.Bytes(), &clock), ShouldBeNil)
			So(clock.State, ShouldEqual, model.RaceLive)
			So(clock.RaceTimeSec+clock.RemainingSec, ShouldEqual, int64(86400))
		})

		Convey("GET /healthz reports ok", func() {
			rec := get(mux, "/healthz")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("GET /stats passes the provider's map through", func() {
			rec := get(mux, "/stats")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"started":true`)
		})
	})
}
