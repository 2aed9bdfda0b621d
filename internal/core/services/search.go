package services

import (
	"context"

	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/core/ports/driven"
	"github.com/custodia-labs/repovec/internal/core/ports/driving"
	"github.com/custodia-labs/repovec/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// DefaultSearchLimit applies when the caller passes no limit.
const DefaultSearchLimit = 10

// SearchService embeds queries and runs nearest-neighbour lookups.
type SearchService struct {
	store    driven.VectorStore
	embedder driven.EmbeddingService
	fallback driven.EmbeddingService // optional
}

// NewSearchService creates a search service. fallback may be nil.
func NewSearchService(store driven.VectorStore, embedder, fallback driven.EmbeddingService) *SearchService {
	return &SearchService{store: store, embedder: embedder, fallback: fallback}
}

// Search embeds the query and returns the top limit matches. When the
// primary embedder is unreachable and a fallback exists, the query
// degrades to fallback vectors rather than failing.
func (s *SearchService) Search(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		if s.fallback == nil {
			return nil, err
		}
		logger.Warn("search: embedding provider unavailable, using local fallback: %v", err)
		vec, err = s.fallback.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
	}

	return s.store.Search(ctx, vec, limit, filter)
}
