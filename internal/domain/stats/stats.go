// Package stats aggregates canonical matches into per-identity summaries.
package stats

import (
	"math"
	"sort"

	"github.com/okian/matchboard/internal/domain/model"
)

// Collapse resolves one canonical match into at most one participation for
// an identity owning the given alias set. When two owned aliases both
// appear in the roster, the entry flagged isSelf wins; with no self flag
// the alphabetically-first alias wins. Deterministic, never random.
func Collapse(m model.CanonicalMatch, owned map[string]struct{}) (model.RosterEntry, bool) {
	var chosen model.RosterEntry
	found := false
	for _, e := range m.Roster {
		if _, ok := owned[e.Alias]; !ok {
			continue
		}
		if !found {
			chosen = e
			found = true
			continue
		}
		switch {
		case e.IsSelf && !chosen.IsSelf:
			chosen = e
		case e.IsSelf == chosen.IsSelf && e.Alias < chosen.Alias:
			chosen = e
		}
	}
	return chosen, found
}

// ForAliases aggregates stats for an identity across all of its aliases.
// Each canonical match contributes at most one participation, so an
// identity playing under two aliases in one match is counted once.
func ForAliases(matches []model.CanonicalMatch, aliases []string) model.PlayerStats {
	owned := make(map[string]struct{}, len(aliases))
	for _, a := range aliases {
		owned[a] = struct{}{}
	}

	var games, wins, scoreSum int
	for _, m := range matches {
		entry, ok := Collapse(m, owned)
		if !ok {
			continue
		}
		games++
		scoreSum += entry.Score
		if entry.IsWinner {
			wins++
		}
	}
	return derive(games, wins, scoreSum)
}

// ByAlias aggregates stats for a literal alias with no identity
// resolution. The second return carries the bot flag through, the third
// reports whether the alias appeared in any match at all.
func ByAlias(matches []model.CanonicalMatch, alias string) (model.PlayerStats, bool, bool) {
	var games, wins, scoreSum int
	isBot := false
	found := false
	for _, m := range matches {
		for _, e := range m.Roster {
			if e.Alias != alias {
				continue
			}
			found = true
			isBot = e.IsBot
			games++
			scoreSum += e.Score
			if e.IsWinner {
				wins++
			}
			break
		}
	}
	return derive(games, wins, scoreSum), isBot, found
}

// History lists an identity's canonical matches newest first, capped at
// limit. Limit <= 0 means no cap.
func History(matches []model.CanonicalMatch, aliases []string, limit int) []model.HistoryEntry {
	owned := make(map[string]struct{}, len(aliases))
	for _, a := range aliases {
		owned[a] = struct{}{}
	}

	entries := make([]model.HistoryEntry, 0)
	for _, m := range matches {
		entry, ok := Collapse(m, owned)
		if !ok {
			continue
		}
		entries = append(entries, model.HistoryEntry{
			GuildID:    m.GuildID,
			PlayedAt:   m.ReportedAt,
			Alias:      entry.Alias,
			Score:      entry.Score,
			IsWinner:   entry.IsWinner,
			RosterSize: len(m.Roster),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].PlayedAt.After(entries[j].PlayedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// derive computes the summary shape shared by both query paths. Zero games
// yields zero values throughout, never a division error.
func derive(games, wins, scoreSum int) model.PlayerStats {
	s := model.PlayerStats{
		TotalGames: games,
		Wins:       wins,
	}
	if games == 0 {
		return s
	}
	s.AvgScore = Round2(float64(scoreSum) / float64(games))
	s.WinRate = Round1(float64(wins) / float64(games) * 100)
	return s
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 rounds to 1 decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
