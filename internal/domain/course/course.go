// Package course models the fixed race loop as a closed polyline and maps
// lap progress onto coordinates.
package course

import (
	"errors"
	"math"
)

// Earth radius in meters for haversine distances.
const earthRadiusM = 6371000

// ErrNoPoints is returned when a polyline has no usable vertices.
var ErrNoPoints = errors.New("course has no points")

// Point is one polyline vertex with its cumulative distance from the
// course start (the timing mat after rotation).
type Point struct {
	Lat           float64
	Lon           float64
	DistFromStart float64 // meters
}

// Polyline is an ordered closed loop spanning exactly one lap.
type Polyline struct {
	Name   string
	Points []Point
	TotalM float64 // measured loop length in meters
}

// Haversine returns the great-circle distance between two coordinates in
// meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := lat1 * math.Pi / 180
	p2 := lat2 * math.Pi / 180
	dp := (lat2 - lat1) * math.Pi / 180
	dl := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dp/2)*math.Sin(dp/2) +
		math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// New builds a polyline from raw vertices, accumulating segment distances.
func New(name string, coords [][2]float64) (*Polyline, error) {
	if len(coords) == 0 {
		return nil, ErrNoPoints
	}
	points := make([]Point, len(coords))
	cumulative := 0.0
	for i, c := range coords {
		if i > 0 {
			prev := points[i-1]
			cumulative += Haversine(prev.Lat, prev.Lon, c[0], c[1])
		}
		points[i] = Point{Lat: c[0], Lon: c[1], DistFromStart: cumulative}
	}
	return &Polyline{Name: name, Points: points, TotalM: cumulative}, nil
}

// ClosestPoint finds the vertex nearest to the target coordinate and its
// distance from it in meters.
func (p *Polyline) ClosestPoint(lat, lon float64) (index int, distanceM float64) {
	distanceM = math.Inf(1)
	for i, pt := range p.Points {
		if d := Haversine(lat, lon, pt.Lat, pt.Lon); d < distanceM {
			distanceM = d
			index = i
		}
	}
	return index, distanceM
}

// rebuild recomputes cumulative distances after a reorder.
func rebuild(points []Point) *Polyline {
	cumulative := 0.0
	points[0].DistFromStart = 0
	for i := 1; i < len(points); i++ {
		cumulative += Haversine(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
		points[i].DistFromStart = cumulative
	}
	return &Polyline{Points: points, TotalM: cumulative}
}

// RotateToStart returns a polyline rotated so the vertex at startIndex
// becomes 0%/100% of the lap. Used to anchor the loop at the timing mat.
func (p *Polyline) RotateToStart(startIndex int) *Polyline {
	if startIndex <= 0 || startIndex >= len(p.Points) {
		return p
	}
	rotated := make([]Point, 0, len(p.Points))
	rotated = append(rotated, p.Points[startIndex:]...)
	rotated = append(rotated, p.Points[:startIndex]...)
	out := rebuild(rotated)
	out.Name = p.Name
	return out
}

// Reverse returns the polyline traversed in the opposite direction, for
// courses where the survey file was recorded against the race direction.
func (p *Polyline) Reverse() *Polyline {
	if len(p.Points) == 0 {
		return p
	}
	reversed := make([]Point, len(p.Points))
	for i, pt := range p.Points {
		reversed[len(p.Points)-1-i] = pt
	}
	out := rebuild(reversed)
	out.Name = p.Name
	return out
}

// PositionAt interpolates the coordinate at a lap progress percentage.
// Values outside [0,100) wrap around the loop; negatives clamp to start.
func (p *Polyline) PositionAt(progressPercent float64) (lat, lon float64) {
	if len(p.Points) == 0 {
		return 0, 0
	}
	if progressPercent < 0 {
		progressPercent = 0
	}
	progressPercent = math.Mod(progressPercent, 100)

	target := progressPercent / 100 * p.TotalM

	prev := p.Points[0]
	for _, curr := range p.Points[1:] {
		if curr.DistFromStart >= target {
			segment := curr.DistFromStart - prev.DistFromStart
			ratio := 0.0
			if segment > 0 {
				ratio = (target - prev.DistFromStart) / segment
			}
			return prev.Lat + (curr.Lat-prev.Lat)*ratio,
				prev.Lon + (curr.Lon-prev.Lon)*ratio
		}
		prev = curr
	}

	last := p.Points[len(p.Points)-1]
	return last.Lat, last.Lon
}

// PointAtOffset returns the coordinate at a signed distance in meters from
// the course start, wrapping around the loop in either direction. Negative
// offsets land before the timing mat.
func (p *Polyline) PointAtOffset(offsetM float64) (lat, lon float64) {
	if p.TotalM <= 0 {
		return p.PositionAt(0)
	}
	wrapped := math.Mod(offsetM, p.TotalM)
	if wrapped < 0 {
		wrapped += p.TotalM
	}
	return p.PositionAt(wrapped / p.TotalM * 100)
}

// ProgressPercent maps a cumulative race distance onto the current lap,
// always in [0,100) regardless of magnitude.
func ProgressPercent(distanceKm, lapLengthKm float64) float64 {
	if lapLengthKm <= 0 {
		return 0
	}
	frac := math.Mod(distanceKm, lapLengthKm) / lapLengthKm
	if frac < 0 {
		frac += 1
	}
	pct := frac * 100
	if pct >= 100 {
		pct = 0
	}
	return pct
}
