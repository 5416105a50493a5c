// Package repository provides durable storage for submissions and
// identities, backed by SQLite.
package repository

import (
	"context"
	"time"

	"github.com/okian/matchboard/internal/domain/model"
)

// AliasConflictPolicy decides what happens when an alias being registered
// is already bound to a different identity. The policy is a deployment
// decision applied uniformly; identities are never merged implicitly.
type AliasConflictPolicy string

const (
	// KeepExisting leaves the prior binding in place (first writer keeps).
	KeepExisting AliasConflictPolicy = "keep-existing"
	// Reassign moves the alias to the new identity (last writer wins).
	Reassign AliasConflictPolicy = "reassign"
)

// Valid reports whether the policy is one of the supported values.
func (p AliasConflictPolicy) Valid() bool {
	return p == KeepExisting || p == Reassign
}

// MatchStore is the append-only record of raw submissions. Appends never
// reject a structurally valid submission for being a duplicate; all dedup
// judgment belongs downstream.
type MatchStore interface {
	// Append persists a submission and returns its store-assigned id.
	// Ids are strictly increasing and provide the canonical tiebreak.
	Append(ctx context.Context, s model.Submission) (int64, error)

	// ListGuildWindow returns submissions for a guild whose reported
	// time falls in [from, to], ordered by id.
	ListGuildWindow(ctx context.Context, guildID string, from, to time.Time) ([]model.Submission, error)

	// ListAll returns every submission ordered by id, used to rebuild
	// the canonical index on startup.
	ListAll(ctx context.Context) ([]model.Submission, error)

	// SubmissionCount returns the number of stored submissions.
	SubmissionCount(ctx context.Context) (int64, error)

	// GuildCount returns the number of distinct guild scopes seen.
	GuildCount(ctx context.Context) (int, error)
}

// IdentityRegistry maps aliases to canonical identities. Aliases are only
// ever added or rebound, never deleted; every mutation is a single atomic
// conditional write at the storage layer.
type IdentityRegistry interface {
	// CreateIdentity registers a new identity with a fresh id and API key.
	CreateIdentity(ctx context.Context, displayName string) (model.Identity, error)

	// Resolve returns the identity owning alias, or ErrNotFound.
	Resolve(ctx context.Context, alias string) (model.Identity, error)

	// RegisterAlias binds alias to the identity. The configured conflict
	// policy decides the outcome when the alias is already bound
	// elsewhere; the bool reports whether the binding took effect.
	RegisterAlias(ctx context.Context, identityID, alias string) (bool, error)

	// BindPrimaryAlias registers alias and marks it as the identity's
	// canonical display alias. Consumed by the external linking boundary.
	BindPrimaryAlias(ctx context.Context, identityID, alias string) error

	// AliasesOf returns all aliases bound to the identity.
	AliasesOf(ctx context.Context, identityID string) ([]string, error)

	// Get returns the identity by id, or ErrNotFound.
	Get(ctx context.Context, identityID string) (model.Identity, error)

	// ByAPIKey returns the identity owning the API key, or ErrNotFound.
	ByAPIKey(ctx context.Context, key string) (model.Identity, error)

	// IdentityCount returns the number of registered identities.
	IdentityCount(ctx context.Context) (int, error)
}
