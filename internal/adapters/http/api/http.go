// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/matchboard/internal/domain/model"
	"github.com/okian/matchboard/internal/domain/ranking"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Ingestion boundary.
	EnqueueSubmission(ctx context.Context, s model.Submission) bool
	ResolveAPIKey(ctx context.Context, key string) (model.Identity, error)
	TagUploaderRoster(ctx context.Context, uploaderID string, roster []model.RosterEntry) []model.RosterEntry

	// Query boundary. Read-only, side-effect free.
	GetStats(ctx context.Context, identityOrAlias string) (model.IdentitySummary, error)
	GetPlayerByAlias(ctx context.Context, alias string) (model.AliasSummary, error)
	GetHistory(ctx context.Context, identityOrAlias string, limit int) ([]model.HistoryEntry, error)
	GetLeaderboard(ctx context.Context, guildID string, limit int, requesterID string) (ranking.Standings, error)

	// Identity linking boundary.
	RegisterIdentity(ctx context.Context, displayName string) (model.Identity, error)
	BindPrimaryAlias(ctx context.Context, identityID, alias string) error
	RegisterAlias(ctx context.Context, identityID, alias string) (bool, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	overviewHandler    *OverviewHandler
	submissionsHandler *SubmissionsHandler
	leaderboardHandler *LeaderboardHandler
	statsHandler       *PlayerStatsHandler
	playersHandler     *PlayersHandler
	historyHandler     *HistoryHandler
	identitiesHandler  *IdentitiesHandler

	limit RequestLimiter
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, snapshot SnapshotProvider, maxLimit int, limiter RequestLimiter) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		overviewHandler:    NewOverviewHandler(snapshot),
		submissionsHandler: NewSubmissionsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		statsHandler:       NewPlayerStatsHandler(deps),
		playersHandler:     NewPlayersHandler(deps),
		historyHandler:     NewHistoryHandler(deps),
		identitiesHandler:  NewIdentitiesHandler(deps),
		limit:              limiter,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.overviewHandler.HandleOverview, "service_stats"))
	mux.HandleFunc("/submissions", s.limited(s.submissionsHandler.HandlePostSubmission, "submissions"))
	mux.HandleFunc("/leaderboard", s.limited(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/stats/", s.limited(s.statsHandler.HandleGetStats, "stats"))
	mux.HandleFunc("/players/", s.limited(s.playersHandler.HandleGetPlayer, "players"))
	mux.HandleFunc("/history/", s.limited(s.historyHandler.HandleGetHistory, "history"))
	mux.HandleFunc("/identities", MetricsMiddleware(s.identitiesHandler.HandlePostIdentity, "identities"))
	mux.HandleFunc("/identities/", MetricsMiddleware(s.identitiesHandler.HandlePostAlias, "identity_aliases"))
}

func (s *Server) limited(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return MetricsMiddleware(RateLimitMiddleware(s.limit, next), endpoint)
}

// rosterEntryRequest mirrors one roster line of POST /submissions.
type rosterEntryRequest struct {
	Alias    string `json:"alias"`
	Score    int    `json:"score"`
	IsBot    bool   `json:"is_bot"`
	IsWinner bool   `json:"is_winner"`
}

// submissionRequest mirrors the schema for POST /submissions.
type submissionRequest struct {
	GuildID    string               `json:"guild_id"`
	ReportedAt string               `json:"reported_at"`
	Roster     []rosterEntryRequest `json:"roster"`
	Activity   json.RawMessage      `json:"activity,omitempty"`
}

func (r submissionRequest) validate() error {
	switch {
	case strings.TrimSpace(r.GuildID) == "":
		return errors.New("missing guild_id")
	case strings.TrimSpace(r.ReportedAt) == "":
		return errors.New("missing reported_at")
	case len(r.Roster) == 0:
		return errors.New("missing roster")
	}
	if _, err := time.Parse(time.RFC3339, r.ReportedAt); err != nil {
		return errors.New("invalid reported_at; must be RFC3339")
	}
	for _, e := range r.Roster {
		if strings.TrimSpace(e.Alias) == "" {
			return errors.New("roster entry missing alias")
		}
	}
	return nil
}

func (r submissionRequest) toModel() model.Submission {
	reportedAt, _ := time.Parse(time.RFC3339, r.ReportedAt)
	roster := make([]model.RosterEntry, len(r.Roster))
	for i, e := range r.Roster {
		roster[i] = model.RosterEntry{
			Alias:    e.Alias,
			Score:    e.Score,
			IsBot:    e.IsBot,
			IsWinner: e.IsWinner,
		}
	}
	return model.Submission{
		GuildID:    r.GuildID,
		ReportedAt: reportedAt.UTC(),
		Roster:     roster,
		Activity:   r.Activity,
	}
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
