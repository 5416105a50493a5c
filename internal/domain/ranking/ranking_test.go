package ranking_test

import (
	"fmt"
	"testing"

	"github.com/okian/matchboard/internal/domain/model"
	"github.com/okian/matchboard/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func identity(id string, games, wins int, avgScore float64) ranking.IdentityStats {
	return ranking.IdentityStats{
		IdentityID: id,
		Alias:      id,
		Stats: model.PlayerStats{
			TotalGames: games,
			Wins:       wins,
			AvgScore:   avgScore,
		},
	}
}

func TestClampLimit(t *testing.T) {
	Convey("Given page size requests", t, func() {
		Convey("When below the minimum", func() {
			So(ranking.ClampLimit(0), ShouldEqual, ranking.MinLimit)
			So(ranking.ClampLimit(-5), ShouldEqual, ranking.MinLimit)
		})

		Convey("When above the maximum", func() {
			So(ranking.ClampLimit(1000), ShouldEqual, ranking.MaxLimit)
		})

		Convey("When inside the range", func() {
			So(ranking.ClampLimit(10), ShouldEqual, 10)
		})
	})
}

func TestBayesWinRate(t *testing.T) {
	Convey("Given an engine with the default prior", t, func() {
		e := ranking.New()

		Convey("When an identity has zero games", func() {
			Convey("Then the rate sits at the 50% prior with no division error", func() {
				So(e.BayesWinRate(0, 0), ShouldEqual, 50.0)
			})
		})

		Convey("When small perfect records are smoothed", func() {
			Convey("Then 5/5 stays below a raw 100%", func() {
				So(e.BayesWinRate(5, 5), ShouldAlmostEqual, 72.7272, 0.001)
			})
		})

		Convey("When comparing small-sample specialists to steady players", func() {
			Convey("Then a 4/4 record smooths below a 5/5 record", func() {
				So(e.BayesWinRate(4, 4), ShouldEqual, 70.0)
			})
		})
	})

	Convey("Given a custom prior strength", t, func() {
		e := ranking.New(ranking.WithPriorStrength(1))

		Convey("Then smoothing weakens accordingly", func() {
			So(e.BayesWinRate(5, 5), ShouldAlmostEqual, 85.7142, 0.001)
		})
	})
}

func TestRatingMonotonicity(t *testing.T) {
	Convey("Given a fixed number of games", t, func() {
		e := ranking.New()
		const games = 20

		Convey("When wins increase, the rating never drops", func() {
			prev := -1.0
			for wins := 0; wins <= games; wins++ {
				bayes := e.BayesWinRate(wins, games)
				rating := e.Rating(bayes, 7.0, games)
				So(rating, ShouldBeGreaterThan, prev)
				prev = rating
			}
		})
	})
}

func TestStandings(t *testing.T) {
	Convey("Given identity X with 5/5 and identity Y with 4/4", t, func() {
		e := ranking.New()
		ids := []ranking.IdentityStats{
			identity("Y", 4, 4, 9.0),
			identity("X", 5, 5, 8.0),
		}

		Convey("When computing standings", func() {
			st := e.Standings(ids, 10, "")

			Convey("Then X outranks Y on the composite rating", func() {
				So(st.Entries, ShouldHaveLength, 2)
				So(st.Entries[0].IdentityID, ShouldEqual, "X")
				So(st.Entries[0].BayesWinRate, ShouldEqual, 72.73)
				So(st.Entries[0].Rating, ShouldEqual, 97.69)
				So(st.Entries[1].IdentityID, ShouldEqual, "Y")
				So(st.Entries[1].BayesWinRate, ShouldEqual, 70.0)
				So(st.Entries[1].Rating, ShouldEqual, 96.05)
			})

			Convey("Then ranks are 1-based positions", func() {
				So(st.Entries[0].Rank, ShouldEqual, 1)
				So(st.Entries[1].Rank, ShouldEqual, 2)
			})
		})
	})

	Convey("Given identities with identical records", t, func() {
		e := ranking.New()
		ids := []ranking.IdentityStats{
			identity("bravo", 10, 5, 7.0),
			identity("alpha", 10, 5, 7.0),
		}

		Convey("When computing standings twice with different input order", func() {
			first := e.Standings(ids, 10, "")
			second := e.Standings([]ranking.IdentityStats{ids[1], ids[0]}, 10, "")

			Convey("Then the tie breaks on alias ascending, reproducibly", func() {
				So(first.Entries[0].Alias, ShouldEqual, "alpha")
				So(second.Entries[0].Alias, ShouldEqual, "alpha")
				So(second.Entries, ShouldResemble, first.Entries)
			})
		})
	})

	Convey("Given more identities than the page size", t, func() {
		e := ranking.New()
		ids := make([]ranking.IdentityStats, 0, 10)
		for i := 0; i < 10; i++ {
			ids = append(ids, identity(fmt.Sprintf("id-%d", i), 10+i, i, 5.0))
		}

		Convey("When the requester falls outside the page", func() {
			st := e.Standings(ids, 3, "id-0")

			Convey("Then the page is capped but the requester rides along", func() {
				So(st.Entries, ShouldHaveLength, 3)
				So(st.Requester, ShouldNotBeNil)
				So(st.Requester.IdentityID, ShouldEqual, "id-0")
				So(st.Requester.Rank, ShouldBeGreaterThan, 3)
			})
		})

		Convey("When no requester is named", func() {
			st := e.Standings(ids, 3, "")

			Convey("Then no requester entry is attached", func() {
				So(st.Requester, ShouldBeNil)
			})
		})
	})
}
