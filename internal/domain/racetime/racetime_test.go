package racetime_test

import (
	"testing"
	"time"

	"github.com/okian/ultralive/internal/domain/model"
	"github.com/okian/ultralive/internal/domain/racetime"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRaceSeconds(t *testing.T) {
	Convey("Given a race start and a passing timestamp", t, func() {
		start := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

		Convey("When the runner passed 20 minutes in", func() {
			passing := start.Add(20 * time.Minute)

			Convey("Then race seconds is the elapsed difference", func() {
				So(racetime.RaceSeconds(passing, start, 0), ShouldEqual, 1200)
			})

			Convey("And a start offset shifts the result", func() {
				// race actually started 60s after the nominal gun
				So(racetime.RaceSeconds(passing, start, 60), ShouldEqual, 1140)
			})
		})

		Convey("When sub-second remainders exist", func() {
			passing := start.Add(20*time.Minute + 700*time.Millisecond)

			Convey("Then the result floors to whole seconds", func() {
				So(racetime.RaceSeconds(passing, start, 0), ShouldEqual, 1200)
			})
		})

		Convey("When either timestamp is zero", func() {
			Convey("Then race seconds is zero", func() {
				So(racetime.RaceSeconds(time.Time{}, start, 0), ShouldEqual, 0)
				So(racetime.RaceSeconds(start, time.Time{}, 0), ShouldEqual, 0)
			})
		})
	})
}

func TestProjections(t *testing.T) {
	Convey("Given derived metric calculations", t, func() {
		Convey("When projecting 24h distance", func() {
			Convey("Then a runner at 50km after 6h projects 200km", func() {
				So(racetime.ProjectedKm(50, 6*3600), ShouldAlmostEqual, 200, 1e-9)
			})

			Convey("And zero race time guards to zero", func() {
				So(racetime.ProjectedKm(50, 0), ShouldEqual, 0)
				So(racetime.ProjectedKm(50, -10), ShouldEqual, 0)
			})
		})

		Convey("When computing lap pace", func() {
			So(racetime.LapPaceSec(3600, 10), ShouldAlmostEqual, 360, 1e-9)
			So(racetime.LapPaceSec(3600, 0), ShouldEqual, 0)
		})

		Convey("When computing average lap time", func() {
			So(racetime.AverageLapTimeSec(3000, 10), ShouldAlmostEqual, 300, 1e-9)
			So(racetime.AverageLapTimeSec(3000, 0), ShouldEqual, 0)
		})
	})
}

func TestEnrich(t *testing.T) {
	Convey("Given snapshots with provider placeholder times", t, func() {
		start := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
		settings := model.RaceSettings{
			StartTime:          start,
			StartTimeOffsetSec: 0,
		}
		snaps := []model.RunnerSnapshot{
			{Bib: 1, DistanceKm: 30, Lap: 20, LastPassing: start.Add(3 * time.Hour)},
			{Bib: 2, DistanceKm: 0, Lap: 0}, // never passed the mat
		}

		Convey("When enriching", func() {
			racetime.Enrich(snaps, settings)

			Convey("Then derived fields are populated", func() {
				So(snaps[0].RaceTimeSec, ShouldEqual, 3*3600)
				So(snaps[0].ProjectedKm, ShouldAlmostEqual, 240, 1e-9)
				So(snaps[0].LapPaceSec, ShouldAlmostEqual, 360, 1e-9)
				So(snaps[0].LapTimeSec, ShouldAlmostEqual, 540, 1e-9)
			})

			Convey("And the zero-data runner stays guarded at zero", func() {
				So(snaps[1].RaceTimeSec, ShouldEqual, 0)
				So(snaps[1].ProjectedKm, ShouldEqual, 0)
				So(snaps[1].LapPaceSec, ShouldEqual, 0)
				So(snaps[1].LapTimeSec, ShouldEqual, 0)
			})
		})
	})
}

func TestTrendAndGap(t *testing.T) {
	Convey("Given trend classification", t, func() {
		Convey("Then faster-than-average paces trend up", func() {
			So(racetime.Trend(340, 400), ShouldEqual, model.TrendUp)
		})
		Convey("Then slower-than-average paces trend down", func() {
			So(racetime.Trend(460, 400), ShouldEqual, model.TrendDown)
		})
		Convey("Then small deviations are stable", func() {
			So(racetime.Trend(410, 400), ShouldEqual, model.TrendStable)
		})
		Convey("Then missing data is stable", func() {
			So(racetime.Trend(0, 400), ShouldEqual, model.TrendStable)
		})
	})

	Convey("Given a gap to the leader", t, func() {
		km, sec := racetime.Gap(100, 95, 360)
		So(km, ShouldAlmostEqual, 5, 1e-9)
		So(sec, ShouldAlmostEqual, 1800, 1e-9)
	})
}

func TestRollingPace(t *testing.T) {
	Convey("Given a pace series", t, func() {
		paces := []float64{400, 420, 380, 410}

		Convey("Then a window of 2 averages the most recent laps", func() {
			So(racetime.RollingPace(paces, 2), ShouldAlmostEqual, 395, 1e-9)
		})

		Convey("Then an oversized window averages everything", func() {
			So(racetime.RollingPace(paces, 10), ShouldAlmostEqual, 402.5, 1e-9)
		})

		Convey("Then empty input yields zero", func() {
			So(racetime.RollingPace(nil, 3), ShouldEqual, 0)
		})
	})
}
