package dedupe_test

import (
	"context"
	"testing"
	"time"

	dedupe "github.com/okian/matchboard/internal/domain/dedupe"
	"github.com/okian/matchboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func roster(entries ...model.RosterEntry) []model.RosterEntry {
	return entries
}

func entry(alias string, score int, winner bool) model.RosterEntry {
	return model.RosterEntry{Alias: alias, Score: score, IsWinner: winner}
}

func TestBucket(t *testing.T) {
	Convey("Given a deduper with the default bucket width", t, func() {
		d := dedupe.New()

		Convey("When timestamps fall within the same rounding window", func() {
			a := time.Unix(1000, 0).UTC()
			b := time.Unix(1004, 0).UTC()

			Convey("Then they round to the same bucket", func() {
				So(d.Bucket(a), ShouldEqual, d.Bucket(b))
				So(d.Bucket(a), ShouldEqual, time.Unix(1000, 0).UTC())
			})
		})

		Convey("When timestamps round to different boundaries", func() {
			a := time.Unix(1004, 0).UTC()
			b := time.Unix(1006, 0).UTC()

			Convey("Then they land in different buckets", func() {
				So(d.Bucket(a), ShouldNotEqual, d.Bucket(b))
				So(d.Bucket(b), ShouldEqual, time.Unix(1010, 0).UTC())
			})
		})

		Convey("When a custom bucket width is configured", func() {
			wide := dedupe.New(dedupe.WithBucketWidth(time.Minute))

			Convey("Then rounding follows the custom width", func() {
				So(wide.Bucket(time.Unix(1020, 0).UTC()), ShouldEqual, time.Unix(1020, 0).UTC())
				So(wide.Bucket(time.Unix(1001, 0).UTC()), ShouldEqual, time.Unix(1020, 0).UTC())
			})
		})
	})
}

func TestFingerprint(t *testing.T) {
	Convey("Given rosters describing the same match", t, func() {
		a := roster(entry("alice", 10, true), entry("bob", 7, false))
		b := roster(entry("bob", 7, false), entry("alice", 10, true))

		Convey("When entry order differs", func() {
			Convey("Then the fingerprint is identical", func() {
				So(dedupe.Fingerprint(a), ShouldEqual, dedupe.Fingerprint(b))
			})
		})

		Convey("When a score differs", func() {
			c := roster(entry("alice", 9, true), entry("bob", 7, false))

			Convey("Then the fingerprint differs", func() {
				So(dedupe.Fingerprint(a), ShouldNotEqual, dedupe.Fingerprint(c))
			})
		})

		Convey("When only the winner flag differs", func() {
			c := roster(entry("alice", 10, false), entry("bob", 7, true))

			Convey("Then the fingerprint is unchanged", func() {
				So(dedupe.Fingerprint(a), ShouldEqual, dedupe.Fingerprint(c))
			})
		})

		Convey("When the bot flag differs", func() {
			c := roster(
				model.RosterEntry{Alias: "alice", Score: 10, IsWinner: true},
				model.RosterEntry{Alias: "bob", Score: 7, IsBot: true},
			)

			Convey("Then the fingerprint differs", func() {
				So(dedupe.Fingerprint(a), ShouldNotEqual, dedupe.Fingerprint(c))
			})
		})
	})
}

func TestSelectCanonical(t *testing.T) {
	Convey("Given a group of duplicate submissions", t, func() {
		base := time.Unix(1000, 0).UTC()
		group := []model.Submission{
			{ID: 1, ReportedAt: base},
			{ID: 2, ReportedAt: base.Add(2 * time.Second)},
			{ID: 3, ReportedAt: base.Add(2 * time.Second)},
		}

		Convey("When selecting the canonical member", func() {
			winner := dedupe.SelectCanonical(group)

			Convey("Then the latest timestamp wins, ties broken by highest id", func() {
				So(winner.ID, ShouldEqual, 3)
			})
		})

		Convey("When the group arrives in a different order", func() {
			shuffled := []model.Submission{group[2], group[0], group[1]}
			winner := dedupe.SelectCanonical(shuffled)

			Convey("Then the same member is selected", func() {
				So(winner.ID, ShouldEqual, 3)
			})
		})
	})
}

func TestCanonicalize(t *testing.T) {
	ctx := context.Background()

	Convey("Given two reports of the same match from different uploaders", t, func() {
		d := dedupe.New()
		shared := roster(entry("alice", 10, true), entry("bob", 7, false))
		subs := []model.Submission{
			{ID: 1, GuildID: "g1", ReportedAt: time.Unix(1000, 0).UTC(), Roster: shared},
			{ID: 2, GuildID: "g1", ReportedAt: time.Unix(1004, 0).UTC(), Roster: shared},
		}

		Convey("When canonicalizing", func() {
			matches := d.Canonicalize(ctx, subs)

			Convey("Then exactly one canonical match remains", func() {
				So(matches, ShouldHaveLength, 1)
				So(matches[0].SubmissionID, ShouldEqual, 2)
				So(matches[0].Sources, ShouldEqual, 2)
			})
		})

		Convey("When the same input is canonicalized twice", func() {
			first := d.Canonicalize(ctx, subs)
			second := d.Canonicalize(ctx, subs)

			Convey("Then the result is identical", func() {
				So(second, ShouldResemble, first)
			})
		})

		Convey("When the input order is reversed", func() {
			reversed := []model.Submission{subs[1], subs[0]}
			matches := d.Canonicalize(ctx, reversed)

			Convey("Then the same canonical is selected", func() {
				So(matches, ShouldHaveLength, 1)
				So(matches[0].SubmissionID, ShouldEqual, 2)
			})
		})
	})

	Convey("Given reports in different guilds or buckets", t, func() {
		d := dedupe.New()
		shared := roster(entry("alice", 10, true), entry("bob", 7, false))
		subs := []model.Submission{
			{ID: 1, GuildID: "g1", ReportedAt: time.Unix(1000, 0).UTC(), Roster: shared},
			{ID: 2, GuildID: "g2", ReportedAt: time.Unix(1000, 0).UTC(), Roster: shared},
			{ID: 3, GuildID: "g1", ReportedAt: time.Unix(1030, 0).UTC(), Roster: shared},
		}

		Convey("When canonicalizing", func() {
			matches := d.Canonicalize(ctx, subs)

			Convey("Then no cross-guild or cross-bucket collapsing happens", func() {
				So(matches, ShouldHaveLength, 3)
			})
		})
	})

	Convey("Given a fingerprint-matched group with conflicting winner hints", t, func() {
		d := dedupe.New()
		subs := []model.Submission{
			{ID: 1, GuildID: "g1", ReportedAt: time.Unix(1000, 0).UTC(),
				Roster: roster(entry("alice", 10, true), entry("bob", 10, false))},
			{ID: 2, GuildID: "g1", ReportedAt: time.Unix(1002, 0).UTC(),
				Roster: roster(entry("alice", 10, false), entry("bob", 10, true))},
		}

		Convey("When canonicalizing", func() {
			matches := d.Canonicalize(ctx, subs)

			Convey("Then each winner variant survives as its own canonical", func() {
				So(matches, ShouldHaveLength, 2)
				So(matches[0].SubmissionID, ShouldNotEqual, matches[1].SubmissionID)
			})

			Convey("Then the split is deterministic across orderings", func() {
				again := d.Canonicalize(ctx, []model.Submission{subs[1], subs[0]})
				So(again, ShouldResemble, matches)
			})
		})
	})
}
