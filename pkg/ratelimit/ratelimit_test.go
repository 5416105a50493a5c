package ratelimit_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/okian/matchboard/pkg/ratelimit"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLimiter(t *testing.T) {
	Convey("Given a limiter with a small budget and a fake clock", t, func() {
		now := time.Unix(10_000, 0)
		clock := func() time.Time { return now }
		l := ratelimit.New(
			ratelimit.WithLimit(3),
			ratelimit.WithWindow(time.Minute),
			ratelimit.WithClock(clock),
		)

		Convey("When a key stays within its budget", func() {
			Convey("Then all requests pass", func() {
				So(l.Allow("a"), ShouldBeTrue)
				So(l.Allow("a"), ShouldBeTrue)
				So(l.Allow("a"), ShouldBeTrue)
			})
		})

		Convey("When a key exceeds its budget inside one window", func() {
			for i := 0; i < 3; i++ {
				So(l.Allow("a"), ShouldBeTrue)
			}

			Convey("Then further requests are rejected", func() {
				So(l.Allow("a"), ShouldBeFalse)
			})

			Convey("Then other keys are unaffected", func() {
				So(l.Allow("b"), ShouldBeTrue)
			})
		})

		Convey("When a full window passes after exhaustion", func() {
			for i := 0; i < 4; i++ {
				l.Allow("a")
			}
			now = now.Add(2 * time.Minute)

			Convey("Then the budget is fresh again", func() {
				So(l.Allow("a"), ShouldBeTrue)
			})
		})

		Convey("When only part of a window has passed", func() {
			for i := 0; i < 4; i++ {
				l.Allow("a")
			}
			now = now.Add(61 * time.Second)

			Convey("Then the previous window still weighs against the budget", func() {
				So(l.Allow("a"), ShouldBeTrue)
				// current=1 plus previous=3 weighted ~0.98 exceeds limit 3
				So(l.Allow("a"), ShouldBeFalse)
			})
		})
	})
}

func TestLimiterEviction(t *testing.T) {
	Convey("Given a limiter at capacity", t, func() {
		now := time.Unix(10_000, 0)
		clock := func() time.Time { return now }
		l := ratelimit.New(
			ratelimit.WithLimit(100),
			ratelimit.WithWindow(time.Minute),
			ratelimit.WithCapacity(5),
			ratelimit.WithClock(clock),
		)
		for i := 0; i < 5; i++ {
			l.Allow(fmt.Sprintf("key-%d", i))
		}
		So(l.Size(), ShouldEqual, 5)

		Convey("When all tracked keys have gone stale", func() {
			now = now.Add(3 * time.Minute)
			l.Allow("fresh")

			Convey("Then stale keys are dropped in bulk", func() {
				So(l.Size(), ShouldEqual, 1)
			})
		})

		Convey("When no key is stale yet", func() {
			now = now.Add(time.Second)
			l.Allow("newcomer")

			Convey("Then the least recently seen key makes room", func() {
				So(l.Size(), ShouldEqual, 5)
			})
		})

		Convey("When many distinct keys arrive", func() {
			for i := 0; i < 100; i++ {
				now = now.Add(time.Millisecond)
				l.Allow(fmt.Sprintf("burst-%d", i))
			}

			Convey("Then the table never exceeds capacity", func() {
				So(l.Size(), ShouldBeLessThanOrEqualTo, 5)
			})
		})
	})
}
