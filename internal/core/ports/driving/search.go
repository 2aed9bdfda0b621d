package driving

import (
	"context"

	"github.com/custodia-labs/repovec/internal/core/domain"
)

// SearchService answers nearest-neighbour queries over ingested documents.
type SearchService interface {
	// Search embeds the query string and returns the top limit matches.
	Search(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error)
}
