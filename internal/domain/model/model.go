// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"time"
)

// RosterEntry is one participant line inside a submitted match roster.
type RosterEntry struct {
	Alias    string `json:"alias"`
	Score    int    `json:"score"`
	IsBot    bool   `json:"is_bot"`
	IsWinner bool   `json:"is_winner"`
	IsSelf   bool   `json:"is_self"`
}

// Submission is one uploader's report of a finished match. Submissions are
// append-only; the store never rejects one as a duplicate.
type Submission struct {
	ID         int64           // store-assigned, strictly increasing; 0 until appended
	GuildID    string          // guild scope the match was reported under
	UploaderID string          // identity id of the uploader, empty for anonymous uploads
	ReportedAt time.Time       // uploader's local capture time
	ReceivedAt time.Time       // set at enqueue for latency accounting; not persisted
	Roster     []RosterEntry   // ordered as reported
	Activity   json.RawMessage // opaque secondary per-participant metrics; never part of the fingerprint
}

// CanonicalMatch is the single deduplicated record representing a real
// match, chosen among one or more matching submissions.
type CanonicalMatch struct {
	GuildID      string
	Bucket       time.Time // fixed-width time bucket the group fell into
	Fingerprint  string    // order-independent roster digest
	SubmissionID int64     // the winning submission
	ReportedAt   time.Time // the winning submission's capture time
	Roster       []RosterEntry
	Sources      int // number of submissions that collapsed into this match
}

// Key returns the grouping key the match was materialized under.
func (m CanonicalMatch) Key() string {
	return m.GuildID + "|" + m.Bucket.UTC().Format(time.RFC3339) + "|" + m.Fingerprint
}

// Identity is a canonical account the system reports statistics against.
type Identity struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	PrimaryAlias string    `json:"primary_alias,omitempty"`
	APIKey       string    `json:"api_key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// PlayerStats is the aggregated per-identity (or per-alias) summary.
type PlayerStats struct {
	TotalGames int     `json:"total_games"`
	Wins       int     `json:"wins"`
	AvgScore   float64 `json:"avg_score"`
	WinRate    float64 `json:"win_rate"`
}

// LeaderboardEntry is a derived, never-persisted leaderboard row.
type LeaderboardEntry struct {
	Rank         int     `json:"rank"`
	IdentityID   string  `json:"identity_id"`
	Alias        string  `json:"alias"`
	TotalGames   int     `json:"total_games"`
	Wins         int     `json:"wins"`
	AvgScore     float64 `json:"avg_score"`
	WinRate      float64 `json:"win_rate"`
	BayesWinRate float64 `json:"bayes_win_rate"`
	Rating       float64 `json:"rating"`
}

// IdentitySummary is the identity-resolved stats query response.
type IdentitySummary struct {
	IdentityID string      `json:"identity_id"`
	Alias      string      `json:"alias"`
	Stats      PlayerStats `json:"stats"`
}

// AliasSummary is the anonymous by-raw-alias stats query response.
type AliasSummary struct {
	Alias string      `json:"alias"`
	IsBot bool        `json:"is_bot"`
	Stats PlayerStats `json:"stats"`
}

// HistoryEntry summarizes one canonical match from one identity's side.
type HistoryEntry struct {
	GuildID    string    `json:"guild_id"`
	PlayedAt   time.Time `json:"played_at"`
	Alias      string    `json:"alias"`
	Score      int       `json:"score"`
	IsWinner   bool      `json:"is_winner"`
	RosterSize int       `json:"roster_size"`
}
