package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/matchboard/internal/adapters/repository"
	"github.com/okian/matchboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func openStore(t *testing.T, opts ...repository.Option) *repository.Store {
	t.Helper()
	store, err := repository.Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMatchStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		store := openStore(t)

		Convey("When appending a submission", func() {
			sub := model.Submission{
				GuildID:    "g1",
				UploaderID: "u1",
				ReportedAt: time.Unix(1000, 0).UTC(),
				Roster: []model.RosterEntry{
					{Alias: "alice", Score: 10, IsWinner: true},
					{Alias: "bob", Score: 6},
				},
			}
			id, err := store.Append(ctx, sub)

			Convey("Then it gets a monotonic id and round-trips intact", func() {
				So(err, ShouldBeNil)
				So(id, ShouldBeGreaterThan, 0)

				subs, err := store.ListAll(ctx)
				So(err, ShouldBeNil)
				So(subs, ShouldHaveLength, 1)
				So(subs[0].ID, ShouldEqual, id)
				So(subs[0].GuildID, ShouldEqual, "g1")
				So(subs[0].UploaderID, ShouldEqual, "u1")
				So(subs[0].ReportedAt, ShouldEqual, sub.ReportedAt)
				So(subs[0].Roster, ShouldResemble, sub.Roster)
			})
		})

		Convey("When appending identical submissions twice", func() {
			sub := model.Submission{
				GuildID:    "g1",
				ReportedAt: time.Unix(1000, 0).UTC(),
				Roster:     []model.RosterEntry{{Alias: "alice", Score: 1}},
			}
			first, err1 := store.Append(ctx, sub)
			second, err2 := store.Append(ctx, sub)

			Convey("Then both rows are kept; dedup is a read concern", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldBeGreaterThan, first)

				n, err := store.SubmissionCount(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})
		})

		Convey("When listing a guild time window", func() {
			for i, ts := range []int64{1000, 1100, 1200} {
				_, err := store.Append(ctx, model.Submission{
					GuildID:    "g1",
					ReportedAt: time.Unix(ts, 0).UTC(),
					Roster:     []model.RosterEntry{{Alias: "p", Score: i}},
				})
				So(err, ShouldBeNil)
			}
			_, err := store.Append(ctx, model.Submission{
				GuildID:    "g2",
				ReportedAt: time.Unix(1100, 0).UTC(),
				Roster:     []model.RosterEntry{{Alias: "p", Score: 9}},
			})
			So(err, ShouldBeNil)

			subs, err := store.ListGuildWindow(ctx, "g1",
				time.Unix(1050, 0).UTC(), time.Unix(1150, 0).UTC())

			Convey("Then only in-window rows of that guild come back", func() {
				So(err, ShouldBeNil)
				So(subs, ShouldHaveLength, 1)
				So(subs[0].ReportedAt, ShouldEqual, time.Unix(1100, 0).UTC())
			})

			Convey("Then guilds are counted distinctly", func() {
				n, err := store.GuildCount(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})
		})
	})
}

func TestIdentityRegistry(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with the keep-existing policy", t, func() {
		store := openStore(t)

		Convey("When creating an identity", func() {
			identity, err := store.CreateIdentity(ctx, "Alice")

			Convey("Then it carries an id and an API key", func() {
				So(err, ShouldBeNil)
				So(identity.ID, ShouldNotBeBlank)
				So(identity.APIKey, ShouldNotBeBlank)
				So(identity.DisplayName, ShouldEqual, "Alice")

				got, err := store.Get(ctx, identity.ID)
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, identity.ID)

				byKey, err := store.ByAPIKey(ctx, identity.APIKey)
				So(err, ShouldBeNil)
				So(byKey.ID, ShouldEqual, identity.ID)
			})
		})

		Convey("When registering and resolving aliases", func() {
			identity, err := store.CreateIdentity(ctx, "Alice")
			So(err, ShouldBeNil)

			linked, err := store.RegisterAlias(ctx, identity.ID, "alice#1")
			So(err, ShouldBeNil)
			So(linked, ShouldBeTrue)

			Convey("Then the alias resolves to the identity", func() {
				got, err := store.Resolve(ctx, "alice#1")
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, identity.ID)
			})

			Convey("Then a second claim on the alias is kept out", func() {
				other, err := store.CreateIdentity(ctx, "Bob")
				So(err, ShouldBeNil)

				linked, err := store.RegisterAlias(ctx, other.ID, "alice#1")
				So(err, ShouldBeNil)
				So(linked, ShouldBeFalse)

				got, err := store.Resolve(ctx, "alice#1")
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, identity.ID)
			})
		})

		Convey("When resolving an unknown alias", func() {
			_, err := store.Resolve(ctx, "nobody")

			Convey("Then the not-found sentinel is returned", func() {
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})

		Convey("When binding a primary alias", func() {
			identity, err := store.CreateIdentity(ctx, "Alice")
			So(err, ShouldBeNil)

			err = store.BindPrimaryAlias(ctx, identity.ID, "ally")

			Convey("Then the alias links and becomes primary", func() {
				So(err, ShouldBeNil)

				got, err := store.Get(ctx, identity.ID)
				So(err, ShouldBeNil)
				So(got.PrimaryAlias, ShouldEqual, "ally")

				aliases, err := store.AliasesOf(ctx, identity.ID)
				So(err, ShouldBeNil)
				So(aliases, ShouldResemble, []string{"ally"})
			})
		})

		Convey("When binding a primary alias another identity already holds", func() {
			owner, err := store.CreateIdentity(ctx, "Alice")
			So(err, ShouldBeNil)
			claimant, err := store.CreateIdentity(ctx, "Bob")
			So(err, ShouldBeNil)

			linked, err := store.RegisterAlias(ctx, owner.ID, "zed")
			So(err, ShouldBeNil)
			So(linked, ShouldBeTrue)
			So(store.BindPrimaryAlias(ctx, claimant.ID, "beta"), ShouldBeNil)

			err = store.BindPrimaryAlias(ctx, claimant.ID, "zed")

			Convey("Then the bind is refused and the previous primary stays", func() {
				So(errors.Is(err, repository.ErrAliasTaken), ShouldBeTrue)

				got, err := store.Get(ctx, claimant.ID)
				So(err, ShouldBeNil)
				So(got.PrimaryAlias, ShouldEqual, "beta")

				resolved, err := store.Resolve(ctx, "zed")
				So(err, ShouldBeNil)
				So(resolved.ID, ShouldEqual, owner.ID)
			})
		})

		Convey("When re-binding an alias the identity already owns", func() {
			identity, err := store.CreateIdentity(ctx, "Alice")
			So(err, ShouldBeNil)

			linked, err := store.RegisterAlias(ctx, identity.ID, "ace")
			So(err, ShouldBeNil)
			So(linked, ShouldBeTrue)

			err = store.BindPrimaryAlias(ctx, identity.ID, "ace")

			Convey("Then the bind succeeds", func() {
				So(err, ShouldBeNil)

				got, err := store.Get(ctx, identity.ID)
				So(err, ShouldBeNil)
				So(got.PrimaryAlias, ShouldEqual, "ace")
			})
		})

		Convey("When binding a primary alias on a missing identity", func() {
			err := store.BindPrimaryAlias(ctx, "no-such-id", "ally")

			Convey("Then the not-found sentinel is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given a store with the reassign policy", t, func() {
		store := openStore(t, repository.WithAliasConflictPolicy(repository.Reassign))

		Convey("When two identities claim the same alias", func() {
			first, err := store.CreateIdentity(ctx, "Alice")
			So(err, ShouldBeNil)
			second, err := store.CreateIdentity(ctx, "Bob")
			So(err, ShouldBeNil)

			linked, err := store.RegisterAlias(ctx, first.ID, "shared")
			So(err, ShouldBeNil)
			So(linked, ShouldBeTrue)

			linked, err = store.RegisterAlias(ctx, second.ID, "shared")

			Convey("Then the later claim wins", func() {
				So(err, ShouldBeNil)
				So(linked, ShouldBeTrue)

				got, err := store.Resolve(ctx, "shared")
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, second.ID)
			})
		})
	})
}
