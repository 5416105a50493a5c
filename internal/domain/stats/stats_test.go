package stats_test

import (
	"testing"
	"time"

	"github.com/okian/matchboard/internal/domain/model"
	"github.com/okian/matchboard/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func match(guild string, at time.Time, roster ...model.RosterEntry) model.CanonicalMatch {
	return model.CanonicalMatch{
		GuildID:    guild,
		Bucket:     at,
		ReportedAt: at,
		Roster:     roster,
	}
}

func TestCollapse(t *testing.T) {
	Convey("Given an identity owning two aliases in the same roster", t, func() {
		owned := map[string]struct{}{"alpha": {}, "zed": {}}

		Convey("When one entry is flagged as self", func() {
			m := match("g1", time.Unix(1000, 0),
				model.RosterEntry{Alias: "zed", Score: 8, IsSelf: true},
				model.RosterEntry{Alias: "alpha", Score: 5},
			)
			entry, ok := stats.Collapse(m, owned)

			Convey("Then the self entry wins regardless of alias order", func() {
				So(ok, ShouldBeTrue)
				So(entry.Alias, ShouldEqual, "zed")
			})
		})

		Convey("When no entry is flagged as self", func() {
			m := match("g1", time.Unix(1000, 0),
				model.RosterEntry{Alias: "zed", Score: 8},
				model.RosterEntry{Alias: "alpha", Score: 5},
			)
			entry, ok := stats.Collapse(m, owned)

			Convey("Then the alphabetically-first owned alias wins", func() {
				So(ok, ShouldBeTrue)
				So(entry.Alias, ShouldEqual, "alpha")
			})
		})

		Convey("When no owned alias appears", func() {
			m := match("g1", time.Unix(1000, 0),
				model.RosterEntry{Alias: "other", Score: 3},
			)
			_, ok := stats.Collapse(m, owned)

			Convey("Then no participation is produced", func() {
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestForAliases(t *testing.T) {
	Convey("Given matches spanning multiple aliases of one identity", t, func() {
		matches := []model.CanonicalMatch{
			match("g1", time.Unix(1000, 0),
				model.RosterEntry{Alias: "alice", Score: 10, IsWinner: true},
				model.RosterEntry{Alias: "bob", Score: 7},
			),
			match("g1", time.Unix(2000, 0),
				model.RosterEntry{Alias: "ali", Score: 6},
				model.RosterEntry{Alias: "bob", Score: 9, IsWinner: true},
			),
		}

		Convey("When aggregating across both aliases", func() {
			s := stats.ForAliases(matches, []string{"alice", "ali"})

			Convey("Then each match counts once", func() {
				So(s.TotalGames, ShouldEqual, 2)
				So(s.Wins, ShouldEqual, 1)
				So(s.AvgScore, ShouldEqual, 8.0)
				So(s.WinRate, ShouldEqual, 50.0)
			})
		})

		Convey("When both aliases appear in the same roster", func() {
			both := []model.CanonicalMatch{
				match("g1", time.Unix(1000, 0),
					model.RosterEntry{Alias: "alice", Score: 10, IsWinner: true},
					model.RosterEntry{Alias: "ali", Score: 4},
				),
			}
			s := stats.ForAliases(both, []string{"alice", "ali"})

			Convey("Then the match still counts exactly once", func() {
				So(s.TotalGames, ShouldEqual, 1)
				So(s.Wins, ShouldEqual, 1)
				So(s.AvgScore, ShouldEqual, 10.0)
			})
		})

		Convey("When the identity played no matches", func() {
			s := stats.ForAliases(matches, []string{"stranger"})

			Convey("Then all values are zero with no division error", func() {
				So(s.TotalGames, ShouldEqual, 0)
				So(s.Wins, ShouldEqual, 0)
				So(s.AvgScore, ShouldEqual, 0.0)
				So(s.WinRate, ShouldEqual, 0.0)
			})
		})

		Convey("When scores do not divide evenly", func() {
			uneven := []model.CanonicalMatch{
				match("g1", time.Unix(1000, 0), model.RosterEntry{Alias: "p", Score: 10, IsWinner: true}),
				match("g1", time.Unix(2000, 0), model.RosterEntry{Alias: "p", Score: 9}),
				match("g1", time.Unix(3000, 0), model.RosterEntry{Alias: "p", Score: 6}),
			}
			s := stats.ForAliases(uneven, []string{"p"})

			Convey("Then averages round to 2 decimals and win rate to 1", func() {
				So(s.AvgScore, ShouldEqual, 8.33)
				So(s.WinRate, ShouldEqual, 33.3)
			})
		})
	})
}

func TestByAlias(t *testing.T) {
	Convey("Given canonical matches with a bot participant", t, func() {
		matches := []model.CanonicalMatch{
			match("g1", time.Unix(1000, 0),
				model.RosterEntry{Alias: "cpu-1", Score: 7, IsBot: true, IsWinner: true},
				model.RosterEntry{Alias: "alice", Score: 5},
			),
		}

		Convey("When looking up the bot alias", func() {
			s, isBot, found := stats.ByAlias(matches, "cpu-1")

			Convey("Then its stats and bot flag come back", func() {
				So(found, ShouldBeTrue)
				So(isBot, ShouldBeTrue)
				So(s.TotalGames, ShouldEqual, 1)
				So(s.Wins, ShouldEqual, 1)
			})
		})

		Convey("When looking up an alias that never played", func() {
			_, _, found := stats.ByAlias(matches, "ghost")

			Convey("Then found is false", func() {
				So(found, ShouldBeFalse)
			})
		})
	})
}

func TestHistory(t *testing.T) {
	Convey("Given an identity with several matches", t, func() {
		matches := []model.CanonicalMatch{
			match("g1", time.Unix(1000, 0), model.RosterEntry{Alias: "p", Score: 5}),
			match("g1", time.Unix(3000, 0), model.RosterEntry{Alias: "p", Score: 9, IsWinner: true}),
			match("g2", time.Unix(2000, 0), model.RosterEntry{Alias: "p", Score: 7}),
		}

		Convey("When listing history", func() {
			entries := stats.History(matches, []string{"p"}, 0)

			Convey("Then results are newest first", func() {
				So(entries, ShouldHaveLength, 3)
				So(entries[0].PlayedAt, ShouldEqual, time.Unix(3000, 0))
				So(entries[0].IsWinner, ShouldBeTrue)
				So(entries[2].PlayedAt, ShouldEqual, time.Unix(1000, 0))
			})
		})

		Convey("When a limit is applied", func() {
			entries := stats.History(matches, []string{"p"}, 2)

			Convey("Then only the most recent entries remain", func() {
				So(entries, ShouldHaveLength, 2)
				So(entries[1].GuildID, ShouldEqual, "g2")
			})
		})
	})
}
