package driven

import (
	"context"

	"github.com/custodia-labs/repovec/internal/core/domain"
)

// DeletePredicate selects rows to remove: equality on repository URL,
// membership on id, or the conjunction when both are set. An empty
// predicate matches nothing.
type DeletePredicate struct {
	RepositoryURL string
	IDs           []string
}

// Matches reports whether doc satisfies the predicate.
func (p DeletePredicate) Matches(doc domain.Document) bool {
	if p.RepositoryURL == "" && len(p.IDs) == 0 {
		return false
	}
	if p.RepositoryURL != "" && doc.RepositoryURL != p.RepositoryURL {
		return false
	}
	if len(p.IDs) > 0 {
		found := false
		for _, id := range p.IDs {
			if doc.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// VectorStore persists document rows with their embeddings and serves
// nearest-neighbour queries. Implementations must be safe for concurrent
// reads with serialized writes.
type VectorStore interface {
	// Insert upserts docs in batches. Duplicate ids within one call
	// collapse (last wins). A row whose (id, repository_url) already
	// exists is left untouched. A row with the same (repository_url,
	// relative_path) but a different id is replaced.
	Insert(ctx context.Context, docs []domain.Document) error

	// Delete removes rows matching the predicate and returns how many
	// were removed. Atomic with respect to concurrent queries.
	Delete(ctx context.Context, pred DeletePredicate) (int64, error)

	// Search returns the top k rows by cosine similarity against query,
	// optionally filtered. Ties break by ascending id.
	Search(ctx context.Context, query []float32, k int, filter domain.SearchFilter) ([]domain.SearchResult, error)

	// Count returns the number of rows matching the filter.
	Count(ctx context.Context, filter domain.SearchFilter) (int64, error)

	// Fingerprints returns relative_path → fingerprint for every row of
	// a repository; the orchestrator's skip fast-path.
	Fingerprints(ctx context.Context, repositoryURL string) (map[string]domain.Fingerprint, error)

	// Stats returns the observability summary.
	Stats(ctx context.Context) (domain.StoreStats, error)

	// Verify checks table presence and schema consistency.
	Verify(ctx context.Context) (domain.VerifyReport, error)

	// All streams every row, used by the exporter. Embeddings included.
	All(ctx context.Context) ([]domain.Document, error)

	// Reset deletes every row; the table and its declared schema remain.
	Reset(ctx context.Context) error

	// Dimensions returns the table's declared embedding dimension.
	Dimensions() int

	// Close releases resources.
	Close() error
}
