package app

import (
	"context"
	"errors"
	"time"

	"github.com/okian/matchboard/internal/adapters/repository"
	"github.com/okian/matchboard/internal/domain/model"
	"github.com/okian/matchboard/internal/domain/ranking"
	"github.com/okian/matchboard/internal/domain/stats"
	"github.com/okian/matchboard/pkg/metrics"
)

// ErrNotFound is re-exported so API handlers depend on the app package
// only.
var ErrNotFound = repository.ErrNotFound

// GetStats aggregates stats for an identity referenced by canonical id or
// by any owned alias. Zero games yields zero-valued stats, never an error;
// an unknown reference yields ErrNotFound.
func (s *Service) GetStats(ctx context.Context, identityOrAlias string) (model.IdentitySummary, error) {
	id, err := s.lookupIdentity(ctx, identityOrAlias)
	if err != nil {
		return model.IdentitySummary{}, err
	}

	aliases, err := s.store.AliasesOf(ctx, id.ID)
	if err != nil {
		metrics.RecordStorageError()
		return model.IdentitySummary{}, err
	}

	return model.IdentitySummary{
		IdentityID: id.ID,
		Alias:      displayAlias(id),
		Stats:      stats.ForAliases(s.allMatches(), aliases),
	}, nil
}

// GetPlayerByAlias is the anonymous lookup path: literal alias, no
// identity resolution, bot flag passed through.
func (s *Service) GetPlayerByAlias(ctx context.Context, alias string) (model.AliasSummary, error) {
	if err := ctx.Err(); err != nil {
		return model.AliasSummary{}, err
	}
	st, isBot, found := stats.ByAlias(s.allMatches(), alias)
	if !found {
		return model.AliasSummary{}, ErrNotFound
	}
	return model.AliasSummary{Alias: alias, IsBot: isBot, Stats: st}, nil
}

// GetHistory returns an identity's recent canonical matches, newest
// first. Limit is clamped like the leaderboard page size.
func (s *Service) GetHistory(ctx context.Context, identityOrAlias string, limit int) ([]model.HistoryEntry, error) {
	id, err := s.lookupIdentity(ctx, identityOrAlias)
	if err != nil {
		return nil, err
	}
	aliases, err := s.store.AliasesOf(ctx, id.ID)
	if err != nil {
		metrics.RecordStorageError()
		return nil, err
	}
	return stats.History(s.allMatches(), aliases, ranking.ClampLimit(limit)), nil
}

// GetLeaderboard computes the ordered standings for a guild scope. The
// result may come from a short TTL cache; the cache is invalidated
// whenever the guild's canonical index changes, so no invariant depends
// on it.
func (s *Service) GetLeaderboard(ctx context.Context, guildID string, limit int, requesterID string) (ranking.Standings, error) {
	limit = ranking.ClampLimit(limit)
	key := cacheKey(guildID, limit, requesterID)

	if st, ok := s.cachedStandings(key); ok {
		metrics.RecordQueryCacheHit()
		return st, nil
	}
	metrics.RecordQueryCacheMiss()

	start := time.Now()
	matches := s.guildMatches(guildID)

	identityStats, err := s.collectIdentityStats(ctx, matches)
	if err != nil {
		return ranking.Standings{}, err
	}

	standings := s.engine.Standings(identityStats, limit, requesterID)
	metrics.RecordRankingLatency(float64(time.Since(start).Milliseconds()))

	s.storeStandings(key, standings)
	return standings, nil
}

// collectIdentityStats aggregates stats for every identity with at least
// one participation in the given matches, fanning in all owned aliases.
func (s *Service) collectIdentityStats(ctx context.Context, matches []model.CanonicalMatch) ([]ranking.IdentityStats, error) {
	resolved := make(map[string]model.Identity) // alias -> identity
	identities := make(map[string]model.Identity)
	for _, m := range matches {
		for _, e := range m.Roster {
			if _, seen := resolved[e.Alias]; seen {
				continue
			}
			id, err := s.store.Resolve(ctx, e.Alias)
			if errors.Is(err, repository.ErrNotFound) {
				resolved[e.Alias] = model.Identity{}
				continue
			}
			if err != nil {
				metrics.RecordStorageError()
				return nil, err
			}
			resolved[e.Alias] = id
			identities[id.ID] = id
		}
	}

	out := make([]ranking.IdentityStats, 0, len(identities))
	for _, id := range identities {
		aliases, err := s.store.AliasesOf(ctx, id.ID)
		if err != nil {
			metrics.RecordStorageError()
			return nil, err
		}
		st := stats.ForAliases(matches, aliases)
		if st.TotalGames == 0 {
			continue
		}
		out = append(out, ranking.IdentityStats{
			IdentityID: id.ID,
			Alias:      displayAlias(id),
			Stats:      st,
		})
	}
	return out, nil
}

func (s *Service) cachedStandings(key string) (ranking.Standings, bool) {
	if s.cacheTTL == 0 {
		return ranking.Standings{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cache[key]
	if !ok || time.Now().After(c.expires) {
		return ranking.Standings{}, false
	}
	return c.standings, true
}

func (s *Service) storeStandings(key string, st ranking.Standings) {
	if s.cacheTTL == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cachedStandings{standings: st, expires: time.Now().Add(s.cacheTTL)}
}

// lookupIdentity accepts either a canonical id or any bound alias.
func (s *Service) lookupIdentity(ctx context.Context, ref string) (model.Identity, error) {
	id, err := s.store.Get(ctx, ref)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		metrics.RecordStorageError()
		return model.Identity{}, err
	}
	id, err = s.store.Resolve(ctx, ref)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		metrics.RecordStorageError()
	}
	return id, err
}

func displayAlias(id model.Identity) string {
	if id.PrimaryAlias != "" {
		return id.PrimaryAlias
	}
	return id.DisplayName
}

// ---- Identity linking boundary ----

// RegisterIdentity creates a new identity for the external onboarding
// collaborator and returns it, API key included.
func (s *Service) RegisterIdentity(ctx context.Context, displayName string) (model.Identity, error) {
	id, err := s.store.CreateIdentity(ctx, displayName)
	if err != nil {
		metrics.RecordStorageError()
		return model.Identity{}, err
	}
	if n, cErr := s.store.IdentityCount(ctx); cErr == nil {
		metrics.UpdateIdentityCount(n)
	}
	return id, nil
}

// BindPrimaryAlias binds an alias as an identity's canonical display
// alias, consumed by the external linking boundary after it has proven
// control of the account.
func (s *Service) BindPrimaryAlias(ctx context.Context, identityID, alias string) error {
	return s.store.BindPrimaryAlias(ctx, identityID, alias)
}

// RegisterAlias binds an additional alias to an identity under the
// configured conflict policy. The bool reports whether it took effect.
func (s *Service) RegisterAlias(ctx context.Context, identityID, alias string) (bool, error) {
	return s.store.RegisterAlias(ctx, identityID, alias)
}

// ResolveAPIKey authenticates an uploader API key, for the ingestion
// boundary.
func (s *Service) ResolveAPIKey(ctx context.Context, key string) (model.Identity, error) {
	return s.store.ByAPIKey(ctx, key)
}

// TagUploaderRoster flags the uploader's own roster entries isSelf, the
// preferred duplicate-collapse hint downstream.
func (s *Service) TagUploaderRoster(ctx context.Context, uploaderID string, roster []model.RosterEntry) []model.RosterEntry {
	if uploaderID == "" {
		return roster
	}
	aliases, err := s.store.AliasesOf(ctx, uploaderID)
	if err != nil || len(aliases) == 0 {
		return roster
	}
	owned := make(map[string]struct{}, len(aliases))
	for _, a := range aliases {
		owned[a] = struct{}{}
	}
	out := make([]model.RosterEntry, len(roster))
	copy(out, roster)
	for i := range out {
		if _, ok := owned[out[i].Alias]; ok {
			out[i].IsSelf = true
		}
	}
	return out
}

// ---- Operational snapshot ----

// GetStatsSnapshot returns service counters for monitoring.
func (s *Service) GetStatsSnapshot() map[string]interface{} {
	ctx := context.Background()

	s.mu.RLock()
	started := s.started
	canonical := s.canonicalCountLocked()
	s.mu.RUnlock()

	snapshot := map[string]interface{}{
		"started":          started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"canonicalMatches": canonical,
	}
	if !started {
		return snapshot
	}

	snapshot["queueLength"] = s.queue.Len(ctx)
	if n, err := s.store.SubmissionCount(ctx); err == nil {
		snapshot["submissions"] = n
	}
	if n, err := s.store.IdentityCount(ctx); err == nil {
		snapshot["identities"] = n
		metrics.UpdateIdentityCount(n)
	}
	if n, err := s.store.GuildCount(ctx); err == nil {
		snapshot["guilds"] = n
	}
	metrics.UpdateQueueSize(s.queue.Len(ctx))
	return snapshot
}
