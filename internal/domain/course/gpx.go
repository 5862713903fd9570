package course

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// trkptRe pulls lat/lon attribute pairs out of GPX track points without a
// full XML parse. Survey exports vary in attribute order, so both forms
// are matched.
var (
	trkptRe    = regexp.MustCompile(`<trkpt\s+lat="(-?[\d.]+)"\s+lon="(-?[\d.]+)"`)
	trkptRevRe = regexp.MustCompile(`<trkpt\s+lon="(-?[\d.]+)"\s+lat="(-?[\d.]+)"`)
	nameRe     = regexp.MustCompile(`<name>([^<]+)</name>`)
)

// ParseGPX extracts the track from a GPX document.
func ParseGPX(data []byte) (*Polyline, error) {
	text := string(data)

	matches := trkptRe.FindAllStringSubmatch(text, -1)
	latIdx, lonIdx := 1, 2
	if len(matches) == 0 {
		matches = trkptRevRe.FindAllStringSubmatch(text, -1)
		latIdx, lonIdx = 2, 1
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("parse gpx: %w", ErrNoPoints)
	}

	coords := make([][2]float64, 0, len(matches))
	for _, m := range matches {
		lat, err := strconv.ParseFloat(m[latIdx], 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(m[lonIdx], 64)
		if err != nil {
			continue
		}
		coords = append(coords, [2]float64{lat, lon})
	}
	if len(coords) == 0 {
		return nil, fmt.Errorf("parse gpx: %w", ErrNoPoints)
	}

	name := ""
	if m := nameRe.FindStringSubmatch(text); m != nil {
		name = m[1]
	}
	return New(name, coords)
}

// LoadGPX reads and parses a GPX file, then orients the loop for the race:
// rotated so the timing mat vertex is the lap origin, and reversed first
// when the survey runs against the race direction.
func LoadGPX(path string, matLat, matLon float64, reverse bool) (*Polyline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load gpx %s: %w", path, err)
	}
	line, err := ParseGPX(data)
	if err != nil {
		return nil, err
	}
	if reverse {
		line = line.Reverse()
	}
	if matLat != 0 || matLon != 0 {
		idx, _ := line.ClosestPoint(matLat, matLon)
		line = line.RotateToStart(idx)
	}
	return line, nil
}
