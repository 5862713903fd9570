package feedtest

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"
)

// snapshotRow is one runner's line in the simulated feed.
type snapshotRow struct {
	Bib      int
	Name     string
	Country  string
	Gender   string
	Distance float64
	Laps     int
	Clock    string
}

// snapshot renders the whole field's state at the given instant.
func snapshot(cfg *Config, field []runner, now time.Time) []snapshotRow {
	elapsed := now.Sub(cfg.Start).Seconds()
	rows := make([]snapshotRow, 0, len(field))
	for _, r := range field {
		st := r.stateAt(cfg, elapsed)
		dist := distanceKm(cfg, st.laps)
		if cfg.Meters {
			dist *= 1000
		}
		clock := ""
		if st.laps > 0 {
			clock = cfg.Start.Add(time.Duration(st.lastCrossSec * float64(time.Second))).Format("15:04:05")
		}
		rows = append(rows, snapshotRow{
			Bib:      r.bib,
			Name:     r.name,
			Country:  r.country,
			Gender:   r.gender,
			Distance: dist,
			Laps:     st.laps,
			Clock:    clock,
		})
	}
	return rows
}

// renderJSON emits the structured payload shape: a JSON array with the
// provider's French field names, wrapped in a results page.
func renderJSON(rows []snapshotRow) ([]byte, error) {
	type jsonRow struct {
		Dossard int     `json:"dossard"`
		Nom     string  `json:"nom"`
		Pays    string  `json:"pays"`
		Sexe    string  `json:"sexe"`
		Dist    float64 `json:"dist"`
		Tours   int     `json:"tours"`
		Temps   string  `json:"temps,omitempty"`
	}
	out := make([]jsonRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, jsonRow{
			Dossard: r.Bib,
			Nom:     r.Name,
			Pays:    r.Country,
			Sexe:    r.Gender,
			Dist:    r.Distance,
			Tours:   r.Laps,
			Temps:   r.Clock,
		})
	}
	return json.Marshal(out)
}

// renderHTML emits the rendered-table payload shape, combined bib-name
// cells and all.
func renderHTML(rows []snapshotRow) []byte {
	var b strings.Builder
	b.WriteString("<html><body><table>\n")
	b.WriteString("<tr><th>Coureur</th><th>Tours</th><th>Dist</th><th>Heure</th></tr>\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "<tr><td>N°%d - %s</td><td>%d</td><td>%s</td><td>%s</td></tr>\n",
			r.Bib, html.EscapeString(r.Name), r.Laps,
			strings.ReplaceAll(fmt.Sprintf("%.1f", r.Distance), ".", ","), r.Clock)
	}
	b.WriteString("</table></body></html>\n")
	return []byte(b.String())
}
