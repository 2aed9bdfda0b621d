package services

import (
	"context"

	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/core/ports/driven"
	"github.com/custodia-labs/repovec/internal/core/ports/driving"
	"github.com/custodia-labs/repovec/internal/logger"
)

// Ensure RepositoryService implements the interface.
var _ driving.RepositoryService = (*RepositoryService)(nil)

// RepositoryService manages registry entries and their stored rows.
// Lock discipline: the registry is always touched before the store.
type RepositoryService struct {
	registry driven.RepositoryRegistry
	store    driven.VectorStore
}

// NewRepositoryService creates the service.
func NewRepositoryService(registry driven.RepositoryRegistry, store driven.VectorStore) *RepositoryService {
	return &RepositoryService{registry: registry, store: store}
}

// List returns all registered repositories.
func (s *RepositoryService) List(ctx context.Context) ([]domain.RepositoryEntry, error) {
	return s.registry.List(ctx)
}

// Remove deletes the registry entry and, with cascade, every document
// row tagged with its URL. Without cascade the rows stay in the store
// and DocumentsDeleted is zero.
func (s *RepositoryService) Remove(ctx context.Context, identifier string, cascade bool) (*driving.RemoveResult, error) {
	entry, err := s.registry.Remove(ctx, identifier)
	if err != nil {
		return nil, err
	}

	result := &driving.RemoveResult{Removed: entry}
	if cascade {
		deleted, err := s.store.Delete(ctx, driven.DeletePredicate{RepositoryURL: entry.URL})
		if err != nil {
			return result, err
		}
		result.DocumentsDeleted = deleted
		logger.Info("remove: %s deleted with %d documents", entry.Name, deleted)
	} else {
		logger.Info("remove: %s unregistered, documents retained", entry.Name)
	}
	return result, nil
}

// Stats merges store and registry counts.
func (s *RepositoryService) Stats(ctx context.Context) (domain.StoreStats, error) {
	entries, err := s.registry.List(ctx)
	if err != nil {
		return domain.StoreStats{}, err
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return stats, err
	}
	stats.Repositories = len(entries)
	return stats, nil
}

// Verify checks the store's table and schema.
func (s *RepositoryService) Verify(ctx context.Context) (domain.VerifyReport, error) {
	return s.store.Verify(ctx)
}
