package course_test

import (
	"testing"

	"github.com/okian/ultralive/internal/domain/course"
	. "github.com/smartystreets/goconvey/convey"
)

// square is a roughly 100m-sided loop near the equator; each 0.0009 degree
// step is about 100m.
var square = [][2]float64{
	{0.0000, 0.0000},
	{0.0009, 0.0000},
	{0.0009, 0.0009},
	{0.0000, 0.0009},
	{0.0000, 0.0000},
}

func TestProgressPercent(t *testing.T) {
	Convey("Given cumulative distances on a 1.5km loop", t, func() {
		Convey("Then 36.5km is a third of the way through its lap", func() {
			So(course.ProgressPercent(36.5, 1.5), ShouldAlmostEqual, 33.333333, 1e-4)
		})

		Convey("Then an exact lap boundary reads as 0", func() {
			So(course.ProgressPercent(45.0, 1.5), ShouldAlmostEqual, 0, 1e-9)
		})

		Convey("Then the result never reaches 100", func() {
			for _, d := range []float64{0, 0.1, 1.4999, 1.5, 7.33, 36.5, 150.0001} {
				p := course.ProgressPercent(d, 1.5)
				So(p, ShouldBeGreaterThanOrEqualTo, 0)
				So(p, ShouldBeLessThan, 100)
			}
		})

		Convey("Then a non-positive lap length guards to zero", func() {
			So(course.ProgressPercent(36.5, 0), ShouldEqual, 0)
		})
	})
}

func TestPolyline(t *testing.T) {
	Convey("Given a square course", t, func() {
		line, err := course.New("square", square)
		So(err, ShouldBeNil)

		Convey("Then the measured loop length is close to 400m", func() {
			So(line.TotalM, ShouldAlmostEqual, 400, 5)
		})

		Convey("When interpolating positions", func() {
			Convey("Then 0% is the first vertex", func() {
				lat, lon := line.PositionAt(0)
				So(lat, ShouldAlmostEqual, 0, 1e-9)
				So(lon, ShouldAlmostEqual, 0, 1e-9)
			})

			Convey("Then 12.5% is halfway along the first side", func() {
				lat, lon := line.PositionAt(12.5)
				So(lat, ShouldAlmostEqual, 0.00045, 1e-5)
				So(lon, ShouldAlmostEqual, 0, 1e-9)
			})

			Convey("Then values past 100 wrap onto the loop", func() {
				lat1, lon1 := line.PositionAt(12.5)
				lat2, lon2 := line.PositionAt(112.5)
				So(lat2, ShouldAlmostEqual, lat1, 1e-9)
				So(lon2, ShouldAlmostEqual, lon1, 1e-9)
			})
		})

		Convey("When rotating the loop to a timing mat vertex", func() {
			idx, dist := line.ClosestPoint(0.0009, 0.0009)
			So(idx, ShouldEqual, 2)
			So(dist, ShouldBeLessThan, 1)

			rotated := line.RotateToStart(idx)
			lat, lon := rotated.PositionAt(0)
			So(lat, ShouldAlmostEqual, 0.0009, 1e-9)
			So(lon, ShouldAlmostEqual, 0.0009, 1e-9)
			So(rotated.TotalM, ShouldAlmostEqual, line.TotalM, 10)
		})

		Convey("When reversing direction", func() {
			reversed := line.Reverse()
			lat, lon := reversed.PositionAt(0)
			last := square[len(square)-1]
			So(lat, ShouldAlmostEqual, last[0], 1e-9)
			So(lon, ShouldAlmostEqual, last[1], 1e-9)
		})

		Convey("When locating a signed crew spot offset", func() {
			Convey("Then a positive offset lands past the start", func() {
				lat, _ := line.PointAtOffset(50)
				So(lat, ShouldBeGreaterThan, 0)
			})

			Convey("Then a negative offset wraps to before the mat", func() {
				_, lon := line.PointAtOffset(-50)
				So(lon, ShouldBeGreaterThan, 0)
			})
		})
	})

	Convey("Given no vertices", t, func() {
		_, err := course.New("empty", nil)
		So(err, ShouldEqual, course.ErrNoPoints)
	})
}

func TestParseGPX(t *testing.T) {
	Convey("Given a GPX document", t, func() {
		doc := []byte(`<?xml version="1.0"?>
<gpx><trk><name>Stadium Loop</name><trkseg>
<trkpt lat="48.1000" lon="7.2000"><ele>210</ele></trkpt>
<trkpt lat="48.1009" lon="7.2000"></trkpt>
<trkpt lat="48.1009" lon="7.2009"></trkpt>
</trkseg></trk></gpx>`)

		Convey("When parsed", func() {
			line, err := course.ParseGPX(doc)
			So(err, ShouldBeNil)
			So(line.Name, ShouldEqual, "Stadium Loop")
			So(len(line.Points), ShouldEqual, 3)
			So(line.Points[0].DistFromStart, ShouldEqual, 0)
			So(line.Points[2].DistFromStart, ShouldBeGreaterThan, line.Points[1].DistFromStart)
		})

		Convey("When attributes come in lon-first order", func() {
			alt := []byte(`<trkpt lon="7.2" lat="48.1"/><trkpt lon="7.3" lat="48.2"/>`)
			line, err := course.ParseGPX(alt)
			So(err, ShouldBeNil)
			So(line.Points[0].Lat, ShouldAlmostEqual, 48.1, 1e-9)
			So(line.Points[0].Lon, ShouldAlmostEqual, 7.2, 1e-9)
		})

		Convey("When the document has no track points", func() {
			_, err := course.ParseGPX([]byte(`<gpx></gpx>`))
			So(err, ShouldWrap, course.ErrNoPoints)
		})
	})
}
