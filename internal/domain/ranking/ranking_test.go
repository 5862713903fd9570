package ranking_test

import (
	"testing"
	"time"

	"github.com/okian/ultralive/internal/domain/model"
	"github.com/okian/ultralive/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func mkSnap(bib int, gender model.Gender, country string, km float64, passing time.Time) model.RunnerSnapshot {
	return model.RunnerSnapshot{
		Bib:         bib,
		Gender:      gender,
		Country:     country,
		DistanceKm:  km,
		LastPassing: passing,
	}
}

func TestApply(t *testing.T) {
	Convey("Given a mixed field", t, func() {
		base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
		field := []model.RunnerSnapshot{
			mkSnap(10, model.GenderMen, "FRA", 42.0, base),
			mkSnap(11, model.GenderWomen, "SWE", 45.0, base),
			mkSnap(12, model.GenderMen, "FRA", 48.0, base),
			mkSnap(13, model.GenderWomen, "GER", 39.0, base),
			mkSnap(14, model.GenderMen, "USA", 45.0, base.Add(-time.Minute)),
		}

		Convey("When ranks are applied", func() {
			ranking.Apply(field)

			Convey("Then the field is ordered by distance descending", func() {
				So(field[0].Bib, ShouldEqual, 12)
				So(field[0].Rank, ShouldEqual, 1)
				So(field[len(field)-1].Bib, ShouldEqual, 13)
			})

			Convey("Then equal distance resolves by earlier passing", func() {
				// bibs 11 and 14 both at 45.0; 14 passed a minute earlier
				So(field[1].Bib, ShouldEqual, 14)
				So(field[2].Bib, ShouldEqual, 11)
			})

			Convey("Then overall ranks form the permutation {1..n}", func() {
				seen := map[int]bool{}
				for _, s := range field {
					seen[s.Rank] = true
				}
				for i := 1; i <= len(field); i++ {
					So(seen[i], ShouldBeTrue)
				}
			})

			Convey("Then gender ranks form a permutation within each partition", func() {
				men := map[int]bool{}
				women := map[int]bool{}
				for _, s := range field {
					if s.Gender == model.GenderMen {
						men[s.GenderRank] = true
					} else {
						women[s.GenderRank] = true
					}
				}
				So(len(men), ShouldEqual, 3)
				for i := 1; i <= 3; i++ {
					So(men[i], ShouldBeTrue)
				}
				So(len(women), ShouldEqual, 2)
				for i := 1; i <= 2; i++ {
					So(women[i], ShouldBeTrue)
				}
			})
		})

		Convey("When distance and passing are both identical", func() {
			tied := []model.RunnerSnapshot{
				mkSnap(22, model.GenderMen, "FRA", 50.0, base),
				mkSnap(21, model.GenderMen, "FRA", 50.0, base),
			}
			ranking.Apply(tied)

			Convey("Then the lower bib ranks first", func() {
				So(tied[0].Bib, ShouldEqual, 21)
				So(tied[0].Rank, ShouldEqual, 1)
				So(tied[1].Rank, ShouldEqual, 2)
			})
		})
	})
}

func TestTeams(t *testing.T) {
	Convey("Given runners from several countries", t, func() {
		base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
		field := []model.RunnerSnapshot{
			// Four Swedish men: only the best three score
			mkSnap(1, model.GenderMen, "SWE", 50, base),
			mkSnap(2, model.GenderMen, "SWE", 48, base),
			mkSnap(3, model.GenderMen, "SWE", 46, base),
			mkSnap(4, model.GenderMen, "SWE", 10, base),
			// Two French men
			mkSnap(5, model.GenderMen, "FRA", 60, base),
			mkSnap(6, model.GenderMen, "FRA", 59, base),
			// One Swedish woman
			mkSnap(7, model.GenderWomen, "SWE", 52, base),
		}

		Convey("When aggregating team scores", func() {
			teams := ranking.Teams(field)

			Convey("Then the Swedish men total their top 3 only", func() {
				var swe model.TeamScore
				for _, tm := range teams {
					if tm.Country == "SWE" && tm.Gender == model.GenderMen {
						swe = tm
					}
				}
				So(swe.TotalKm, ShouldAlmostEqual, 144, 1e-9)
				So(swe.Bibs, ShouldResemble, []int{1, 2, 3})
			})

			Convey("Then ranks order teams by total descending", func() {
				So(teams[0].Country, ShouldEqual, "SWE")
				So(teams[0].Gender, ShouldEqual, model.GenderMen)
				So(teams[0].Rank, ShouldEqual, 1)
				So(teams[1].Country, ShouldEqual, "FRA")
			})
		})

		Convey("When filtering to one gender", func() {
			women := ranking.TeamsForGender(field, model.GenderWomen)

			Convey("Then only that partition is ranked", func() {
				So(len(women), ShouldEqual, 1)
				So(women[0].Country, ShouldEqual, "SWE")
				So(women[0].Rank, ShouldEqual, 1)
			})
		})

		Convey("When totals tie", func() {
			tied := []model.RunnerSnapshot{
				mkSnap(1, model.GenderMen, "NOR", 40, base),
				mkSnap(2, model.GenderMen, "DEN", 40, base),
			}
			teams := ranking.Teams(tied)

			Convey("Then country code breaks the tie deterministically", func() {
				So(teams[0].Country, ShouldEqual, "DEN")
				So(teams[1].Country, ShouldEqual, "NOR")
			})
		})
	})
}
