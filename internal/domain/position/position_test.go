package position_test

import (
	"testing"
	"time"

	"github.com/okian/ultralive/internal/domain/model"
	"github.com/okian/ultralive/internal/domain/position"
	"github.com/okian/ultralive/internal/domain/predict"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStatus(t *testing.T) {
	Convey("Given the overdue display threshold 180s, predicted lap 300s, multiplier 2.5", t, func() {
		Convey("Then a recent crossing is on course", func() {
			So(position.Status(100, 180, 300, 2.5), ShouldEqual, model.StatusOnCourse)
		})

		Convey("Then 200s out is overdue, not yet a break", func() {
			So(position.Status(200, 180, 300, 2.5), ShouldEqual, model.StatusOverdue)
		})

		Convey("Then 750s out crosses the break boundary", func() {
			So(position.Status(750, 180, 300, 2.5), ShouldEqual, model.StatusBreak)
			So(position.Status(800, 180, 300, 2.5), ShouldEqual, model.StatusBreak)
		})

		Convey("Then without a prediction the runner never escalates past overdue", func() {
			So(position.Status(5000, 180, 0, 2.5), ShouldEqual, model.StatusOverdue)
		})
	})
}

func TestAdvance(t *testing.T) {
	Convey("Given an anchored progress of 40% and a 600s predicted lap", t, func() {
		Convey("Then progress advances linearly at 100/predicted per second", func() {
			So(position.Advance(40, 60, 600, model.StatusOnCourse), ShouldAlmostEqual, 50, 1e-9)
		})

		Convey("Then extrapolation holds just short of the mat", func() {
			So(position.Advance(40, 1000, 600, model.StatusOverdue), ShouldAlmostEqual, 99.5, 1e-9)
		})

		Convey("Then a break suspends advancement", func() {
			So(position.Advance(40, 60, 600, model.StatusBreak), ShouldEqual, 40)
		})

		Convey("Then no prediction means no movement", func() {
			So(position.Advance(40, 60, 0, model.StatusOnCourse), ShouldEqual, 40)
		})
	})
}

func TestEstimatorState(t *testing.T) {
	Convey("Given race settings on a 1.5km loop", t, func() {
		now := time.Date(2026, 10, 17, 14, 0, 0, 0, time.UTC)
		settings := model.RaceSettings{
			LapLengthKm:              1.5,
			OverdueDisplaySec:        180,
			BreakThresholdMultiplier: 2.5,
		}
		est := position.NewEstimator(nil, settings)

		Convey("When a runner passed 60s ago at 36.5km", func() {
			row := model.LeaderboardRow{
				Bib:         7,
				DistanceKm:  36.5,
				LastPassing: now.Add(-60 * time.Second),
			}
			pred := predict.Result{Available: true, PredictedLapSec: 600, Confidence: 0.9}

			st := est.State(row, pred, now)

			Convey("Then they are on course past their anchored third of the lap", func() {
				So(st.Status, ShouldEqual, model.StatusOnCourse)
				// anchored at 33.33%, plus 60s at 600s/lap = +10%
				So(st.ProgressPercent, ShouldAlmostEqual, 43.3333, 1e-3)
				So(st.PredictionConfidence, ShouldAlmostEqual, 0.9, 1e-9)
				So(st.TimeOverdueSec, ShouldEqual, 0)
			})
		})

		Convey("When a runner has been out 700s against a 300s prediction", func() {
			row := model.LeaderboardRow{
				Bib:         8,
				DistanceKm:  30,
				LastPassing: now.Add(-700 * time.Second),
			}
			pred := predict.Result{Available: true, PredictedLapSec: 300, Confidence: 0.7}

			st := est.State(row, pred, now)

			Convey("Then 700s < 750s keeps them overdue with the deficit reported", func() {
				So(st.Status, ShouldEqual, model.StatusOverdue)
				So(st.TimeOverdueSec, ShouldAlmostEqual, 400, 1e-9)
			})
		})

		Convey("When no prediction exists but an average lap does", func() {
			row := model.LeaderboardRow{
				Bib:         9,
				DistanceKm:  30,
				LapTimeSec:  500,
				LastPassing: now.Add(-100 * time.Second),
			}

			st := est.State(row, predict.Result{}, now)

			Convey("Then the race average drives extrapolation", func() {
				So(st.PredictedLapTimeSec, ShouldEqual, 500)
				So(st.PredictionConfidence, ShouldEqual, 0)
				So(st.Status, ShouldEqual, model.StatusOnCourse)
			})
		})

		Convey("When a runner never crossed the mat", func() {
			st := est.State(model.LeaderboardRow{Bib: 10}, predict.Result{}, now)

			Convey("Then the query still answers with a break at the start", func() {
				So(st.Status, ShouldEqual, model.StatusBreak)
				So(st.ProgressPercent, ShouldEqual, 0)
			})
		})
	})
}
