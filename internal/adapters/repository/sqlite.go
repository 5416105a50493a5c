package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // database/sql driver

	"github.com/okian/matchboard/internal/adapters/repository/migrations"
	"github.com/okian/matchboard/internal/domain/model"
)

// Store persists submissions and identities in SQLite. It implements both
// MatchStore and IdentityRegistry; the two share one database file so a
// deployment is a single artifact.
type Store struct {
	sqlDB  *sql.DB
	policy AliasConflictPolicy
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithAliasConflictPolicy sets how alias registration conflicts resolve.
func WithAliasConflictPolicy(p AliasConflictPolicy) Option {
	return func(s *Store) {
		if p.Valid() {
			s.policy = p
		}
	}
}

// Open opens (or creates) the SQLite store at path and applies embedded
// migrations. Use ":memory:" for an ephemeral store in tests.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{
		sqlDB:  sqlDB,
		policy: KeepExisting,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Policy returns the configured alias conflict policy.
func (s *Store) Policy() AliasConflictPolicy {
	return s.policy
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// ---- MatchStore ----

// Append persists a submission. Pure write: duplicates are welcome here,
// the deduplicator sorts them out downstream.
func (s *Store) Append(ctx context.Context, sub model.Submission) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, ErrClosed
	}
	roster, err := json.Marshal(sub.Roster)
	if err != nil {
		return 0, fmt.Errorf("encode roster: %w", err)
	}
	var activity any
	if len(sub.Activity) > 0 {
		activity = string(sub.Activity)
	}

	res, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO submissions (guild_id, uploader_id, reported_at, roster, activity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sub.GuildID,
		nullable(sub.UploaderID),
		toMillis(sub.ReportedAt),
		string(roster),
		activity,
		toMillis(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("append submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read submission id: %w", err)
	}
	return id, nil
}

// ListGuildWindow returns a guild's submissions reported in [from, to].
func (s *Store) ListGuildWindow(ctx context.Context, guildID string, from, to time.Time) ([]model.Submission, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, guild_id, uploader_id, reported_at, roster, activity
		 FROM submissions
		 WHERE guild_id = ? AND reported_at >= ? AND reported_at <= ?
		 ORDER BY id`,
		guildID, toMillis(from), toMillis(to),
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// ListAll returns every submission ordered by id.
func (s *Store) ListAll(ctx context.Context) ([]model.Submission, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, guild_id, uploader_id, reported_at, roster, activity
		 FROM submissions
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// SubmissionCount returns the number of stored submissions.
func (s *Store) SubmissionCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

// GuildCount returns the number of distinct guild scopes seen.
func (s *Store) GuildCount(ctx context.Context) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(DISTINCT guild_id) FROM submissions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count guilds: %w", err)
	}
	return n, nil
}

func scanSubmissions(rows *sql.Rows) ([]model.Submission, error) {
	var out []model.Submission
	for rows.Next() {
		var (
			sub        model.Submission
			uploaderID sql.NullString
			reportedAt int64
			roster     string
			activity   sql.NullString
		)
		if err := rows.Scan(&sub.ID, &sub.GuildID, &uploaderID, &reportedAt, &roster, &activity); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.UploaderID = uploaderID.String
		sub.ReportedAt = fromMillis(reportedAt)
		if err := json.Unmarshal([]byte(roster), &sub.Roster); err != nil {
			return nil, fmt.Errorf("decode roster: %w", err)
		}
		if activity.Valid {
			sub.Activity = json.RawMessage(activity.String)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

// ---- IdentityRegistry ----

// CreateIdentity registers a new identity with a fresh id and API key.
func (s *Store) CreateIdentity(ctx context.Context, displayName string) (model.Identity, error) {
	id := model.Identity{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		APIKey:      uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO identities (id, display_name, api_key, created_at) VALUES (?, ?, ?, ?)`,
		id.ID, id.DisplayName, id.APIKey, toMillis(id.CreatedAt),
	)
	if err != nil {
		return model.Identity{}, fmt.Errorf("create identity: %w", err)
	}
	return id, nil
}

// Resolve returns the identity owning alias. An alias resolves to at most
// one identity at any instant (aliases.alias is the primary key).
func (s *Store) Resolve(ctx context.Context, alias string) (model.Identity, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT i.id, i.display_name, i.primary_alias, i.api_key, i.created_at
		 FROM aliases a JOIN identities i ON i.id = a.identity_id
		 WHERE a.alias = ?`,
		alias,
	)
	return scanIdentity(row)
}

// RegisterAlias binds alias to identityID through a single atomic
// conditional upsert; no application-level locking is involved. Under
// keep-existing a conflicting alias stays where it was (returns false),
// under reassign the alias moves to the new identity.
func (s *Store) RegisterAlias(ctx context.Context, identityID, alias string) (bool, error) {
	if alias == "" {
		return false, fmt.Errorf("alias must not be empty")
	}
	var query string
	switch s.policy {
	case KeepExisting:
		query = `INSERT INTO aliases (alias, identity_id, created_at) VALUES (?, ?, ?)
		         ON CONFLICT(alias) DO NOTHING`
	case Reassign:
		query = `INSERT INTO aliases (alias, identity_id, created_at) VALUES (?, ?, ?)
		         ON CONFLICT(alias) DO UPDATE SET identity_id = excluded.identity_id`
	default:
		return false, ErrInvalidPolicy
	}

	res, err := s.sqlDB.ExecContext(ctx, query, alias, identityID, toMillis(time.Now()))
	if err != nil {
		return false, fmt.Errorf("register alias: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("register alias: %w", err)
	}
	return affected > 0, nil
}

// BindPrimaryAlias registers alias and marks it as the identity's
// canonical display alias. The primary alias must resolve to the identity
// after the upsert; under keep-existing an alias already held by another
// identity yields ErrAliasTaken and leaves the previous primary in place.
func (s *Store) BindPrimaryAlias(ctx context.Context, identityID, alias string) error {
	if _, err := s.RegisterAlias(ctx, identityID, alias); err != nil {
		return err
	}

	var owner string
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT identity_id FROM aliases WHERE alias = ?`,
		alias,
	).Scan(&owner)
	if err != nil {
		return fmt.Errorf("resolve alias owner: %w", err)
	}
	if owner != identityID {
		return fmt.Errorf("bind primary alias %q: %w", alias, ErrAliasTaken)
	}
	res, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE identities SET primary_alias = ? WHERE id = ?`,
		alias, identityID,
	)
	if err != nil {
		return fmt.Errorf("bind primary alias: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bind primary alias: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AliasesOf returns all aliases bound to the identity, sorted.
func (s *Store) AliasesOf(ctx context.Context, identityID string) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT alias FROM aliases WHERE identity_id = ? ORDER BY alias`,
		identityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var aliases []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aliases: %w", err)
	}
	return aliases, nil
}

// Get returns the identity by id.
func (s *Store) Get(ctx context.Context, identityID string) (model.Identity, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, display_name, primary_alias, api_key, created_at FROM identities WHERE id = ?`,
		identityID,
	)
	return scanIdentity(row)
}

// ByAPIKey returns the identity owning the API key.
func (s *Store) ByAPIKey(ctx context.Context, key string) (model.Identity, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, display_name, primary_alias, api_key, created_at FROM identities WHERE api_key = ?`,
		key,
	)
	return scanIdentity(row)
}

// IdentityCount returns the number of registered identities.
func (s *Store) IdentityCount(ctx context.Context) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return n, nil
}

func scanIdentity(row *sql.Row) (model.Identity, error) {
	var (
		id           model.Identity
		primaryAlias sql.NullString
		createdAt    int64
	)
	err := row.Scan(&id.ID, &id.DisplayName, &primaryAlias, &id.APIKey, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Identity{}, ErrNotFound
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("scan identity: %w", err)
	}
	id.PrimaryAlias = primaryAlias.String
	id.CreatedAt = fromMillis(createdAt)
	return id, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
