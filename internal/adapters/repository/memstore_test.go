package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/ultralive/internal/adapters/repository"
	"github.com/okian/ultralive/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemStoreBoard(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()

		rows := []model.LeaderboardRow{
			{Bib: 7, Name: "A", Rank: 2, DistanceKm: 40},
			{Bib: 8, Name: "B", Rank: 1, DistanceKm: 45},
		}

		Convey("When the board is upserted", func() {
			So(store.UpsertBoard(ctx, "default", rows), ShouldBeNil)

			Convey("Then reads come back in rank order", func() {
				got, err := store.Board(ctx, "default")
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].Bib, ShouldEqual, 8)
				So(got[1].Bib, ShouldEqual, 7)
			})

			Convey("Then a repeated upsert overwrites in place", func() {
				rows[0].DistanceKm = 41.5
				So(store.UpsertBoard(ctx, "default", rows[:1]), ShouldBeNil)

				r, err := store.Runner(ctx, "default", 7)
				So(err, ShouldBeNil)
				So(r.DistanceKm, ShouldAlmostEqual, 41.5, 1e-9)

				got, _ := store.Board(ctx, "default")
				So(len(got), ShouldEqual, 2)
			})

			Convey("Then an unknown bib is ErrNotFound", func() {
				_, err := store.Runner(ctx, "default", 999)
				So(err, ShouldWrap, repository.ErrNotFound)
			})
		})
	})
}

func TestMemStoreLaps(t *testing.T) {
	Convey("Given lap history writes", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()

		laps := []model.LapRecord{
			{RaceID: "default", Bib: 7, Lap: 1, LapTimeSec: 400, RaceTimeSec: 400},
			{RaceID: "default", Bib: 7, Lap: 2, LapTimeSec: 380, RaceTimeSec: 780},
			{RaceID: "default", Bib: 9, Lap: 1, LapTimeSec: 500, RaceTimeSec: 500},
		}

		Convey("When appending", func() {
			n, err := store.AppendLaps(ctx, laps)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)

			Convey("Then duplicate keys never land twice", func() {
				again, err := store.AppendLaps(ctx, laps)
				So(err, ShouldBeNil)
				So(again, ShouldEqual, 0)

				history, _ := store.LapsForBib(ctx, "default", 7)
				So(len(history), ShouldEqual, 2)
			})

			Convey("Then the original row survives a conflicting write", func() {
				_, err := store.AppendLaps(ctx, []model.LapRecord{
					{RaceID: "default", Bib: 7, Lap: 2, LapTimeSec: 9999},
				})
				So(err, ShouldBeNil)

				history, _ := store.LapsForBib(ctx, "default", 7)
				So(history[1].LapTimeSec, ShouldEqual, 380)
			})

			Convey("Then LatestLaps reports each runner's frontier", func() {
				latest, err := store.LatestLaps(ctx, "default")
				So(err, ShouldBeNil)
				So(latest[7].Lap, ShouldEqual, 2)
				So(latest[7].RaceTimeSec, ShouldEqual, 780)
				So(latest[9].Lap, ShouldEqual, 1)
			})

			Convey("Then existence checks see the keys", func() {
				found, err := store.LapExists(ctx, model.LapKey{RaceID: "default", Bib: 7, Lap: 2})
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)

				found, _ = store.LapExists(ctx, model.LapKey{RaceID: "default", Bib: 7, Lap: 3})
				So(found, ShouldBeFalse)
			})
		})
	})
}

func TestMemStoreSettings(t *testing.T) {
	Convey("Given race settings", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()

		Convey("Then an unconfigured race is ErrNotFound", func() {
			_, err := store.Settings(ctx, "default")
			So(err, ShouldWrap, repository.ErrNotFound)
		})

		Convey("When settings are saved", func() {
			settings := model.RaceSettings{
				RaceID:      "default",
				State:       model.RaceLive,
				LapLengthKm: 1.5,
			}
			So(store.SaveSettings(ctx, settings), ShouldBeNil)

			Convey("Then they read back", func() {
				got, err := store.Settings(ctx, "default")
				So(err, ShouldBeNil)
				So(got.State, ShouldEqual, model.RaceLive)
				So(got.LapLengthKm, ShouldAlmostEqual, 1.5, 1e-9)
			})

			Convey("Then touching last fetch updates only that field", func() {
				at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
				So(store.TouchLastFetch(ctx, "default", at), ShouldBeNil)

				got, _ := store.Settings(ctx, "default")
				So(got.LastFetch, ShouldEqual, at)
				So(got.LapLengthKm, ShouldAlmostEqual, 1.5, 1e-9)
			})
		})
	})
}
