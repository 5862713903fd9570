// Package ranking assigns overall and gender ranks and aggregates team
// scores from a single tick's snapshot of the field.
package ranking

import (
	"sort"

	"github.com/okian/ultralive/internal/domain/model"
)

// teamSize is how many runners score for their country.
const teamSize = 3

// less orders two snapshots for ranking purposes: greater distance first,
// then earlier timing mat crossing (the runner who reached the same
// distance sooner ranks higher), then bib ascending as the deterministic
// tiebreak for identical distance and timestamp.
func less(a, b model.RunnerSnapshot) bool {
	if a.DistanceKm != b.DistanceKm {
		return a.DistanceKm > b.DistanceKm
	}
	if !a.LastPassing.Equal(b.LastPassing) {
		return a.LastPassing.Before(b.LastPassing)
	}
	return a.Bib < b.Bib
}

// Apply sorts the field into rank order and annotates Rank and GenderRank
// in place. The slice is reordered; ranks within each gender partition of
// size k always form exactly the permutation {1..k}.
func Apply(field []model.RunnerSnapshot) {
	sort.SliceStable(field, func(i, j int) bool {
		return less(field[i], field[j])
	})

	counts := map[model.Gender]int{}
	for i := range field {
		field[i].Rank = i + 1
		counts[field[i].Gender]++
		field[i].GenderRank = counts[field[i].Gender]
	}
}

// Teams aggregates the top-3 distances per (country, gender) group and
// ranks the groups by total distance. Groups with a tied total are ordered
// by country code alphabetically; this ordering is informational only.
func Teams(field []model.RunnerSnapshot) []model.TeamScore {
	type groupKey struct {
		country string
		gender  model.Gender
	}
	groups := map[groupKey][]model.RunnerSnapshot{}
	for _, s := range field {
		k := groupKey{country: s.Country, gender: s.Gender}
		groups[k] = append(groups[k], s)
	}

	scores := make([]model.TeamScore, 0, len(groups))
	for k, members := range groups {
		sort.SliceStable(members, func(i, j int) bool {
			return less(members[i], members[j])
		})
		n := len(members)
		if n > teamSize {
			n = teamSize
		}
		score := model.TeamScore{Country: k.country, Gender: k.gender}
		for _, m := range members[:n] {
			score.TotalKm += m.DistanceKm
			score.Bibs = append(score.Bibs, m.Bib)
		}
		scores = append(scores, score)
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].TotalKm != scores[j].TotalKm {
			return scores[i].TotalKm > scores[j].TotalKm
		}
		if scores[i].Country != scores[j].Country {
			return scores[i].Country < scores[j].Country
		}
		return scores[i].Gender < scores[j].Gender
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
	return scores
}

// TeamsForGender filters team standings to one gender partition,
// re-ranking within it.
func TeamsForGender(field []model.RunnerSnapshot, gender model.Gender) []model.TeamScore {
	all := Teams(field)
	out := make([]model.TeamScore, 0, len(all))
	for _, s := range all {
		if s.Gender == gender {
			s.Rank = len(out) + 1
			out = append(out, s)
		}
	}
	return out
}
