package feed

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Alias sets for the structured payload's keys. The provider localises
// field names per event, so every known spelling maps to one meaning.
var (
	bibKeys     = []string{"bib", "dossard", "number", "num"}
	nameKeys    = []string{"name", "nom", "runner", "athlete"}
	distKeys    = []string{"distance", "dist", "km"}
	timeKeys    = []string{"time", "temps", "duration", "heure"}
	lapKeys     = []string{"laps", "tours", "lap", "tour"}
	genderKeys  = []string{"gender", "sexe", "sex", "genre"}
	countryKeys = []string{"country", "nat", "nationality", "pays"}
)

// jsonArrayRe locates candidate object arrays embedded in an HTML page,
// typically a script-assigned results variable.
var jsonArrayRe = regexp.MustCompile(`\[\s*\{[\s\S]*?\}\s*\]`)

// structuredStrategy handles payloads that embed the results as a JSON
// array of objects, either as the whole body or inside the page markup.
type structuredStrategy struct{}

func (structuredStrategy) Name() string { return "structured" }

func (structuredStrategy) Parse(body []byte) ([]Row, int, error) {
	records, err := extractRecords(body)
	if err != nil {
		return nil, 0, err
	}

	rows := make([]Row, 0, len(records))
	dropped := 0
	for _, rec := range records {
		row := Row{
			Bib:       pickInt(rec, bibKeys),
			Name:      decodeText(pickString(rec, nameKeys)),
			Country:   pickString(rec, countryKeys),
			Gender:    pickString(rec, genderKeys),
			Laps:      pickInt(rec, lapKeys),
			ClockTime: pickString(rec, timeKeys),
		}
		row.DistanceKm = pickFloat(rec, distKeys)
		if row.Bib == 0 || row.Name == "" {
			dropped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, dropped, nil
}

// extractRecords tries the whole body as JSON first, then each embedded
// array candidate, largest first.
func extractRecords(body []byte) ([]map[string]any, error) {
	var records []map[string]any
	if err := json.Unmarshal(body, &records); err == nil {
		return records, nil
	}

	candidates := jsonArrayRe.FindAll(body, -1)
	best := -1
	for i, c := range candidates {
		var recs []map[string]any
		if err := json.Unmarshal(c, &recs); err != nil || len(recs) == 0 {
			continue
		}
		if best < 0 || len(c) > len(candidates[best]) {
			best = i
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("structured: no embedded record array")
	}
	if err := json.Unmarshal(candidates[best], &records); err != nil {
		return nil, fmt.Errorf("structured: %w", err)
	}
	return records, nil
}

// lookup finds the first alias present in the record, case-insensitively.
func lookup(rec map[string]any, keys []string) (any, bool) {
	for k, v := range rec {
		lk := strings.ToLower(k)
		for _, want := range keys {
			if lk == want {
				return v, true
			}
		}
	}
	return nil, false
}

func pickString(rec map[string]any, keys []string) string {
	v, ok := lookup(rec, keys)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func pickInt(rec map[string]any, keys []string) int {
	v, ok := lookup(rec, keys)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(t))
		return n
	default:
		return 0
	}
}

func pickFloat(rec map[string]any, keys []string) float64 {
	v, ok := lookup(rec, keys)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", "."), 64)
		return f
	default:
		return 0
	}
}
