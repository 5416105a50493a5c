// Package app provides the core business service that implements the
// dependencies required by the HTTP API.
package app

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/matchboard/internal/adapters/mq/queue"
	workerpool "github.com/okian/matchboard/internal/adapters/mq/worker"
	"github.com/okian/matchboard/internal/adapters/repository"
	"github.com/okian/matchboard/internal/domain/dedupe"
	"github.com/okian/matchboard/internal/domain/model"
	"github.com/okian/matchboard/internal/domain/ranking"
	"github.com/okian/matchboard/pkg/logger"
	"github.com/okian/matchboard/pkg/metrics"
)

// Service implements ingestion and query operations for the match
// reconciliation pipeline. The canonical index it holds is a pure,
// re-derivable transform of the match store: it is rebuilt from scratch on
// start and refreshed per affected group on every ingest.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   *repository.Store
	deduper *dedupe.Deduper
	engine  *ranking.Engine
	queue   queue.Queue
	pool    *workerpool.Pool

	// Materialized canonical matches: guild -> grouping key -> group.
	// A grouping key usually maps to exactly one match; ambiguous groups
	// keep one variant per conflicting winner set.
	index map[string]map[string]canonicalGroup

	// Configuration
	dbPath      string
	workerCount int
	queueSize   int
	bucketWidth time.Duration
	prior       float64
	policy      repository.AliasConflictPolicy
	cacheTTL    time.Duration

	// Leaderboard cache, invalidated per guild on ingest.
	cache map[string]cachedStandings

	// State
	started bool

	// Logging
	logger logger.Logger
}

type cachedStandings struct {
	standings ranking.Standings
	expires   time.Time
}

// canonicalGroup is one materialized grouping-key entry. maxID is the
// highest store-assigned submission id the producing read observed;
// because ids are strictly increasing, a refresh carrying a lower maxID
// was derived from an older read and must not overwrite this entry.
type canonicalGroup struct {
	variants []model.CanonicalMatch
	maxID    int64
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDBPath sets the SQLite database location.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithWorkerCount sets the number of ingest worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the submission queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithBucketWidth sets the dedup time bucket width.
func WithBucketWidth(width time.Duration) Option {
	return func(s *Service) {
		if width > 0 {
			s.bucketWidth = width
		}
	}
}

// WithPriorStrength sets the Bayesian prior strength K for ranking.
func WithPriorStrength(k float64) Option {
	return func(s *Service) {
		if k > 0 {
			s.prior = k
		}
	}
}

// WithAliasConflictPolicy sets the registry's alias conflict policy.
func WithAliasConflictPolicy(p repository.AliasConflictPolicy) Option {
	return func(s *Service) {
		if p.Valid() {
			s.policy = p
		}
	}
}

// WithQueryCacheTTL bounds leaderboard recomputation cost. Zero disables
// the cache; correctness never depends on it.
func WithQueryCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath:      "matchboard.db",
		workerCount: runtime.NumCPU() * 2,
		queueSize:   100000,
		bucketWidth: dedupe.DefaultBucketWidth,
		prior:       ranking.DefaultPriorStrength,
		policy:      repository.KeepExisting,
		cacheTTL:    2 * time.Second,
		index:       make(map[string]map[string]canonicalGroup),
		cache:       make(map[string]cachedStandings),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes storage, rebuilds the canonical index and starts the
// ingest pipeline.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting matchboard service...")

	store, err := repository.Open(s.dbPath, repository.WithAliasConflictPolicy(s.policy))
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	s.store = store

	s.deduper = dedupe.New(
		dedupe.WithBucketWidth(s.bucketWidth),
		dedupe.WithLogger(s.logger.Named("dedupe")),
	)
	s.engine = ranking.New(ranking.WithPriorStrength(s.prior))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	if err := s.rebuildIndexLocked(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("rebuild canonical index: %w", err)
	}

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.store, s)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "matchboard service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("dbPath", s.dbPath),
		logger.String("aliasConflictPolicy", string(s.policy)),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping matchboard service...")

	if s.pool != nil {
		_ = s.pool.Shutdown(ctx, s.queue)
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "matchboard service stopped")
}

// rebuildIndexLocked re-derives every canonical match from the store.
// Must be called with s.mu held.
func (s *Service) rebuildIndexLocked(ctx context.Context) error {
	subs, err := s.store.ListAll(ctx)
	if err != nil {
		return err
	}

	maxIDs := make(map[string]int64)
	for _, sub := range subs {
		k := s.deduper.GroupKey(sub)
		if sub.ID > maxIDs[k] {
			maxIDs[k] = sub.ID
		}
	}

	s.index = make(map[string]map[string]canonicalGroup)
	for _, m := range s.deduper.Canonicalize(ctx, subs) {
		guild := s.index[m.GuildID]
		if guild == nil {
			guild = make(map[string]canonicalGroup)
			s.index[m.GuildID] = guild
		}
		entry := guild[m.Key()]
		entry.variants = append(entry.variants, m)
		entry.maxID = maxIDs[m.Key()]
		guild[m.Key()] = entry
	}
	metrics.UpdateCanonicalMatchCount(s.canonicalCountLocked())
	return nil
}

func (s *Service) canonicalCountLocked() int {
	n := 0
	for _, guild := range s.index {
		for _, entry := range guild {
			n += len(entry.variants)
		}
	}
	return n
}

// RefreshGroup re-runs canonical selection over the full group the
// appended submission belongs to. If the new submission wins the
// tie-break, the canonical choice is replaced; downstream stats are
// recomputed from the index on the next query, never patched in place.
func (s *Service) RefreshGroup(ctx context.Context, sub model.Submission) error {
	key := s.deduper.GroupKey(sub)
	bucket := s.deduper.Bucket(sub.ReportedAt)
	width := s.deduper.BucketWidth()

	// The window covers every submission that can share this bucket.
	window, err := s.store.ListGuildWindow(ctx, sub.GuildID, bucket.Add(-width), bucket.Add(width))
	if err != nil {
		metrics.RecordStorageError()
		return err
	}

	group := window[:0:0]
	for _, w := range window {
		if s.deduper.GroupKey(w) == key {
			group = append(group, w)
		}
	}
	if len(group) == 0 {
		// The freshly appended row must be visible; treat as storage skew.
		group = []model.Submission{sub}
	}

	groupMax := sub.ID
	for _, g := range group {
		if g.ID > groupMax {
			groupMax = g.ID
		}
	}

	variants := s.deduper.Canonicalize(ctx, group)
	s.installGroup(sub.GuildID, key, variants, groupMax)
	return nil
}

// installGroup writes one recomputed group into the canonical index.
// Concurrent refreshes of the same grouping key race on the store read;
// the maxID guard keeps the result derived from the freshest read and
// discards the stale one, so the index converges regardless of which
// worker locks first. Returns false when the write was discarded.
func (s *Service) installGroup(guildID, key string, variants []model.CanonicalMatch, maxID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	guild := s.index[guildID]
	if guild == nil {
		guild = make(map[string]canonicalGroup)
		s.index[guildID] = guild
	}

	prev, ok := guild[key]
	if ok && prev.maxID > maxID {
		return false
	}
	if replaced(prev.variants, variants) {
		metrics.RecordCanonicalReplacement()
	}
	guild[key] = canonicalGroup{variants: variants, maxID: maxID}

	s.invalidateGuildLocked(guildID)
	metrics.UpdateCanonicalMatchCount(s.canonicalCountLocked())
	return true
}

// replaced reports whether an existing canonical choice changed.
func replaced(prev, next []model.CanonicalMatch) bool {
	if len(prev) == 0 {
		return false
	}
	if len(prev) != len(next) {
		return true
	}
	for i := range prev {
		if prev[i].SubmissionID != next[i].SubmissionID {
			return true
		}
	}
	return false
}

// EnqueueSubmission submits a record for asynchronous ingestion.
// Returns false on backpressure.
func (s *Service) EnqueueSubmission(ctx context.Context, sub model.Submission) bool {
	sub.ReceivedAt = time.Now()
	ok := s.queue.Enqueue(ctx, sub)
	if ok {
		metrics.RecordSubmissionReceived()
	}
	return ok
}

// guildMatches returns the materialized matches for one guild scope.
func (s *Service) guildMatches(guildID string) []model.CanonicalMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.CanonicalMatch
	for _, entry := range s.index[guildID] {
		out = append(out, entry.variants...)
	}
	return out
}

// allMatches returns every materialized canonical match.
func (s *Service) allMatches() []model.CanonicalMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.CanonicalMatch
	for _, guild := range s.index {
		for _, entry := range guild {
			out = append(out, entry.variants...)
		}
	}
	return out
}

func (s *Service) invalidateGuildLocked(guildID string) {
	for key := range s.cache {
		if cacheGuild(key) == guildID {
			delete(s.cache, key)
		}
	}
}

func cacheKey(guildID string, limit int, requesterID string) string {
	return guildID + "\x00" + fmt.Sprint(limit) + "\x00" + requesterID
}

func cacheGuild(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '\x00' {
			return key[:i]
		}
	}
	return key
}
