package feed

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// Markup patterns for the provider's rendered results table.
var (
	rowRe  = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>`)
	cellRe = regexp.MustCompile(`(?is)<t[dh][^>]*>(.*?)</t[dh]>`)
	tagRe  = regexp.MustCompile(`<[^>]*>`)

	// Cell shapes. The table carries no headers worth trusting, so each
	// cell is classified by what it looks like.
	combinedRe = regexp.MustCompile(`^N°\s*(\d+)\s*-\s*(.+)$`)
	bibRe      = regexp.MustCompile(`^\d{1,4}$`)
	clockRe    = regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}$`)
	decimalRe  = regexp.MustCompile(`^\d+[.,]\d+$`)
	wordRe     = regexp.MustCompile(`^[\p{L}][\p{L}\s\-'.]+$`)
)

// tabularStrategy scrapes the rendered HTML results table, classifying
// each cell by shape rather than by column position.
type tabularStrategy struct{}

func (tabularStrategy) Name() string { return "tabular" }

func (tabularStrategy) Parse(body []byte) ([]Row, int, error) {
	trs := rowRe.FindAllStringSubmatch(string(body), -1)
	if len(trs) == 0 {
		return nil, 0, fmt.Errorf("tabular: no table rows")
	}

	rows := make([]Row, 0, len(trs))
	dropped := 0
	for _, tr := range trs {
		cells := cellRe.FindAllStringSubmatch(tr[1], -1)
		if len(cells) == 0 {
			continue
		}
		row, ok := classifyRow(cells)
		if !ok {
			dropped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, dropped, nil
}

// classifyRow assembles a Row from a line of cells. A usable line needs at
// least a bib and a name; anything else is dropped and counted.
func classifyRow(cells [][]string) (Row, bool) {
	var row Row
	for _, c := range cells {
		text := decodeText(c[1])
		if text == "" {
			continue
		}

		if m := combinedRe.FindStringSubmatch(text); m != nil {
			row.Bib, _ = strconv.Atoi(m[1])
			row.Name = strings.TrimSpace(m[2])
			continue
		}

		switch {
		case row.Bib == 0 && bibRe.MatchString(text):
			row.Bib, _ = strconv.Atoi(text)
		case row.ClockTime == "" && clockRe.MatchString(text):
			row.ClockTime = text
		case row.DistanceKm == 0 && decimalRe.MatchString(text):
			row.DistanceKm, _ = strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
		case row.Name == "" && len(text) > 2 && wordRe.MatchString(text):
			row.Name = text
		case row.Laps == 0 && row.Bib != 0 && bibRe.MatchString(text):
			// a second small integer after the bib is the lap count
			row.Laps, _ = strconv.Atoi(text)
		}
	}
	if row.Bib == 0 || row.Name == "" {
		return Row{}, false
	}
	return row, true
}

// decodeText strips markup and resolves named and numeric HTML entities.
func decodeText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(raw, " ")))
}
