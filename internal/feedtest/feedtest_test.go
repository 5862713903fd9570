package feedtest

import (
	"context"
	"testing"
	"time"

	"github.com/okian/ultralive/internal/domain/feed"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSimulatedField(t *testing.T) {
	Convey("Given a seeded field", t, func() {
		cfg := NewConfig()
		cfg.Runners = 10
		cfg.Seed = 7

		field := newField(cfg)

		Convey("Then the same seed reproduces the same race", func() {
			again := newField(cfg)
			So(len(again), ShouldEqual, len(field))
			for i := range field {
				So(again[i].name, ShouldEqual, field[i].name)
				So(again[i].meanLapSec, ShouldEqual, field[i].meanLapSec)
			}
			So(field[0].stateAt(cfg, 7200).laps, ShouldEqual, again[0].stateAt(cfg, 7200).laps)
		})

		Convey("Then progress is monotonic over time", func() {
			r := field[0]
			prev := runnerState{}
			for _, elapsed := range []float64{600, 3600, 7200, 43200, 86400} {
				st := r.stateAt(cfg, elapsed)
				So(st.laps, ShouldBeGreaterThanOrEqualTo, prev.laps)
				So(st.lastCrossSec, ShouldBeGreaterThanOrEqualTo, prev.lastCrossSec)
				So(st.lastCrossSec, ShouldBeLessThanOrEqualTo, elapsed)
				prev = st
			}
		})

		Convey("Then nobody has crossed before the start", func() {
			st := field[0].stateAt(cfg, -10)
			So(st.laps, ShouldEqual, 0)
		})
	})
}

func TestRenderedPayloadsParse(t *testing.T) {
	Convey("Given a field four hours into the race", t, func() {
		cfg := NewConfig()
		cfg.Runners = 6
		cfg.Seed = 3
		cfg.Start = time.Now().Add(-4 * time.Hour)

		field := newField(cfg)
		rows := snapshot(cfg, field, time.Now())
		So(len(rows), ShouldEqual, 6)

		parser := feed.NewParser()

		Convey("The JSON shape round-trips through the real parser", func() {
			body, err := renderJSON(rows)
			So(err, ShouldBeNil)

			parsed, _, err := parser.Parse(context.Background(), body)
			So(err, ShouldBeNil)
			So(len(parsed), ShouldEqual, 6)
			So(parsed[0].Bib, ShouldEqual, rows[0].Bib)
			So(parsed[0].Laps, ShouldEqual, rows[0].Laps)
		})

		Convey("The HTML shape round-trips through the real parser", func() {
			parsed, _, err := parser.Parse(context.Background(), renderHTML(rows))
			So(err, ShouldBeNil)
			So(len(parsed), ShouldBeGreaterThan, 0)
			So(parsed[0].Bib, ShouldEqual, rows[0].Bib)
			So(parsed[0].Name, ShouldEqual, rows[0].Name)
		})

		Convey("Meter-denominated distances stay proportional", func() {
			cfg.Meters = true
			mrows := snapshot(cfg, field, time.Now())
			So(mrows[0].Distance, ShouldAlmostEqual, rows[0].Distance*1000, 1e-6)
		})
	})
}
