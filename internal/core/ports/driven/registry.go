package driven

import (
	"context"

	"github.com/custodia-labs/repovec/internal/core/domain"
)

// RepositoryRegistry is the durable map from repository identifier to its
// most recent ingest metadata. Identifiers are the canonical URL or the
// derived short name.
type RepositoryRegistry interface {
	// Upsert stores or replaces the entry keyed by its URL.
	Upsert(ctx context.Context, entry domain.RepositoryEntry) error

	// Get resolves an identifier (URL or short name) to its entry.
	Get(ctx context.Context, identifier string) (*domain.RepositoryEntry, error)

	// List returns all entries sorted by name.
	List(ctx context.Context) ([]domain.RepositoryEntry, error)

	// Remove deletes the entry and returns it. domain.ErrNotFound when
	// the identifier is unknown.
	Remove(ctx context.Context, identifier string) (*domain.RepositoryEntry, error)
}
