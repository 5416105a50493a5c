// Package ranking computes composite ratings and ordered leaderboards.
package ranking

import (
	"math"
	"sort"

	"github.com/okian/matchboard/internal/domain/model"
	"github.com/okian/matchboard/internal/domain/stats"
)

// Ranking configuration constants.
const (
	// DefaultPriorStrength smooths win rates toward 50% for small samples.
	DefaultPriorStrength = 3.0

	// MinLimit and MaxLimit bound the requested page size.
	MinLimit = 1
	MaxLimit = 50

	scoreWeight    = 2.0
	activityWeight = 5.0
)

// IdentityStats couples an identity with its aggregated summary.
type IdentityStats struct {
	IdentityID string
	Alias      string
	Stats      model.PlayerStats
}

// Standings is the result of a leaderboard query: the requested page plus
// the requester's own entry even when it falls outside the page.
type Standings struct {
	Entries   []model.LeaderboardEntry `json:"entries"`
	Requester *model.LeaderboardEntry  `json:"requester,omitempty"`
}

// Engine turns aggregated stats into a deterministic total order.
type Engine struct {
	prior float64
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithPriorStrength sets the Bayesian prior strength K.
func WithPriorStrength(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.prior = k
		}
	}
}

// New creates an Engine with configuration options.
func New(opts ...Option) *Engine {
	e := &Engine{prior: DefaultPriorStrength}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ClampLimit forces a page size into [MinLimit, MaxLimit].
func ClampLimit(n int) int {
	if n < MinLimit {
		return MinLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// BayesWinRate smooths the raw win rate toward 50% with prior strength K:
// (wins + K) / (games + 2K) * 100.
func (e *Engine) BayesWinRate(wins, games int) float64 {
	return (float64(wins) + e.prior) / (float64(games) + 2*e.prior) * 100
}

// Rating blends the Bayesian win rate, an average-score contribution and a
// logarithmic activity contribution. Holding games fixed, more wins never
// lowers the rating.
func (e *Engine) Rating(bayesWinRate, avgScore float64, games int) float64 {
	return bayesWinRate + avgScore*scoreWeight + math.Log(float64(games)+1)*activityWeight
}

// Standings orders identities descending by rating, then wins, avgScore
// and totalGames, with the canonical alias (then id) as the final
// ascending tiebreak, so the order is total and reproducible. Ranks are
// 1-based sorted positions. The page holds the first limit entries;
// requesterID's entry rides along regardless of page position.
func (e *Engine) Standings(identities []IdentityStats, limit int, requesterID string) Standings {
	limit = ClampLimit(limit)

	entries := make([]model.LeaderboardEntry, 0, len(identities))
	for _, id := range identities {
		bayes := e.BayesWinRate(id.Stats.Wins, id.Stats.TotalGames)
		rating := e.Rating(bayes, id.Stats.AvgScore, id.Stats.TotalGames)
		entries = append(entries, model.LeaderboardEntry{
			IdentityID:   id.IdentityID,
			Alias:        id.Alias,
			TotalGames:   id.Stats.TotalGames,
			Wins:         id.Stats.Wins,
			AvgScore:     id.Stats.AvgScore,
			WinRate:      id.Stats.WinRate,
			BayesWinRate: stats.Round2(bayes),
			Rating:       stats.Round2(rating),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.Rating != b.Rating:
			return a.Rating > b.Rating
		case a.Wins != b.Wins:
			return a.Wins > b.Wins
		case a.AvgScore != b.AvgScore:
			return a.AvgScore > b.AvgScore
		case a.TotalGames != b.TotalGames:
			return a.TotalGames > b.TotalGames
		case a.Alias != b.Alias:
			return a.Alias < b.Alias
		default:
			return a.IdentityID < b.IdentityID
		}
	})

	var requester *model.LeaderboardEntry
	for i := range entries {
		entries[i].Rank = i + 1
		if requesterID != "" && entries[i].IdentityID == requesterID {
			r := entries[i]
			requester = &r
		}
	}

	page := entries
	if len(page) > limit {
		page = page[:limit]
	}
	return Standings{Entries: page, Requester: requester}
}
