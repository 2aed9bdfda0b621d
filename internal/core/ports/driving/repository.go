package driving

import (
	"context"

	"github.com/custodia-labs/repovec/internal/core/domain"
)

// RemoveResult reports what a repository removal deleted.
type RemoveResult struct {
	Removed          *domain.RepositoryEntry
	DocumentsDeleted int64
}

// RepositoryService manages registry entries and their stored rows.
type RepositoryService interface {
	// List returns all registered repositories.
	List(ctx context.Context) ([]domain.RepositoryEntry, error)

	// Remove deletes the registry entry; with cascade it also deletes
	// every row tagged with the repository URL.
	Remove(ctx context.Context, identifier string, cascade bool) (*RemoveResult, error)

	// Stats summarizes the store and registry.
	Stats(ctx context.Context) (domain.StoreStats, error)

	// Verify checks the store's table and schema.
	Verify(ctx context.Context) (domain.VerifyReport, error)
}
