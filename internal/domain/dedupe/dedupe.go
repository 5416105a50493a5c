// Package dedupe groups independent submissions that describe the same
// real-world match and selects one canonical record per group.
package dedupe

import (
	"context"
	"crypto/md5" //nolint:gosec // fingerprint is a grouping key, not a security boundary
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/matchboard/internal/domain/model"
	"github.com/okian/matchboard/pkg/logger"
	"github.com/okian/matchboard/pkg/metrics"
)

// DefaultBucketWidth tolerates clock skew between independent uploaders.
const DefaultBucketWidth = 10 * time.Second

const fingerprintDelimiter = "|"

// Deduper computes grouping keys and canonical selections over submissions.
type Deduper struct {
	bucketWidth time.Duration
	logger      logger.Logger
}

// New creates a Deduper with configuration options.
func New(opts ...Option) *Deduper {
	d := &Deduper{
		bucketWidth: DefaultBucketWidth,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// BucketWidth returns the configured time bucket width.
func (d *Deduper) BucketWidth() time.Duration {
	return d.bucketWidth
}

// Bucket rounds ts to the nearest bucket boundary.
func (d *Deduper) Bucket(ts time.Time) time.Time {
	return ts.UTC().Round(d.bucketWidth)
}

// Fingerprint digests the roster independent of submission order.
// Entries are sorted ascending by (alias, score) and concatenated as
// alias:score:isBot. Secondary activity payloads never contribute.
func Fingerprint(roster []model.RosterEntry) string {
	entries := make([]model.RosterEntry, len(roster))
	copy(entries, roster)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Alias != entries[j].Alias {
			return entries[i].Alias < entries[j].Alias
		}
		return entries[i].Score < entries[j].Score
	})

	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.Alias + ":" + strconv.Itoa(e.Score) + ":" + strconv.FormatBool(e.IsBot)
	}
	sum := md5.Sum([]byte(strings.Join(parts, fingerprintDelimiter))) //nolint:gosec // see package import note
	return hex.EncodeToString(sum[:])
}

// GroupKey is the deterministic key under which submissions collapse:
// same guild scope, same time bucket, same roster fingerprint.
func (d *Deduper) GroupKey(s model.Submission) string {
	return s.GuildID + "|" + d.Bucket(s.ReportedAt).Format(time.RFC3339) + "|" + Fingerprint(s.Roster)
}

// SelectCanonical picks the winning submission of a group: the latest
// reported timestamp, ties broken by the highest store-assigned id. The
// order is total, so any permutation of arrival yields the same choice.
func SelectCanonical(group []model.Submission) model.Submission {
	best := group[0]
	for _, s := range group[1:] {
		if s.ReportedAt.After(best.ReportedAt) {
			best = s
			continue
		}
		if s.ReportedAt.Equal(best.ReportedAt) && s.ID > best.ID {
			best = s
		}
	}
	return best
}

// Canonicalize groups submissions by grouping key and emits one canonical
// match per group, carrying the winning submission's roster unchanged.
//
// Groups whose members disagree on who won are considered ambiguous: the
// fingerprint matches but the secondary hints conflict. Completeness wins
// over strict dedup, so each winner variant becomes its own canonical
// match rather than silently dropping one. Logged, not fatal.
func (d *Deduper) Canonicalize(ctx context.Context, subs []model.Submission) []model.CanonicalMatch {
	groups := make(map[string][]model.Submission)
	order := make([]string, 0)
	for _, s := range subs {
		key := d.GroupKey(s)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], s)
	}
	sort.Strings(order)

	var out []model.CanonicalMatch
	for _, key := range order {
		group := groups[key]
		variants := splitByWinners(group)
		if len(variants) > 1 {
			metrics.RecordAmbiguousGroup()
			if d.logger != nil {
				d.logger.Warn(ctx, "ambiguous grouping: conflicting winner hints, keeping all variants",
					logger.String("groupKey", key),
					logger.Int("variants", len(variants)),
				)
			}
		}
		for _, variant := range variants {
			winner := SelectCanonical(variant)
			out = append(out, model.CanonicalMatch{
				GuildID:      winner.GuildID,
				Bucket:       d.Bucket(winner.ReportedAt),
				Fingerprint:  Fingerprint(winner.Roster),
				SubmissionID: winner.ID,
				ReportedAt:   winner.ReportedAt,
				Roster:       winner.Roster,
				Sources:      len(variant),
			})
		}
	}
	return out
}

// splitByWinners partitions a fingerprint-matched group by its winner set.
// A single partition is the common case; more than one means uploaders
// disagreed about the outcome. Partition order is deterministic.
func splitByWinners(group []model.Submission) [][]model.Submission {
	byDigest := make(map[string][]model.Submission)
	digests := make([]string, 0, 1)
	for _, s := range group {
		dig := winnerDigest(s.Roster)
		if _, ok := byDigest[dig]; !ok {
			digests = append(digests, dig)
		}
		byDigest[dig] = append(byDigest[dig], s)
	}
	sort.Strings(digests)

	out := make([][]model.Submission, 0, len(digests))
	for _, dig := range digests {
		out = append(out, byDigest[dig])
	}
	return out
}

// winnerDigest summarizes which aliases a submission flags as winners.
func winnerDigest(roster []model.RosterEntry) string {
	winners := make([]string, 0, 1)
	for _, e := range roster {
		if e.IsWinner {
			winners = append(winners, e.Alias)
		}
	}
	sort.Strings(winners)
	return strings.Join(winners, fingerprintDelimiter)
}
