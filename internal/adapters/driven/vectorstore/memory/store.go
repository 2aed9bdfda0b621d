// Package memory provides an in-memory implementation of the vector
// store port, used by tests and ad-hoc runs without persistence.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/core/ports/driven"
	"github.com/custodia-labs/repovec/internal/vectormath"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// rowKey is the table's uniqueness key.
type rowKey struct {
	id   string
	repo string
}

// Store keeps document rows in a map guarded by a RWMutex.
type Store struct {
	mu         sync.RWMutex
	rows       map[rowKey]domain.Document
	dimensions int
	tableName  string
}

// New creates an empty store with the declared embedding dimension.
func New(tableName string, dimensions int) *Store {
	return &Store{
		rows:       make(map[rowKey]domain.Document),
		dimensions: dimensions,
		tableName:  tableName,
	}
}

// Insert upserts docs. Duplicate ids within one call collapse (last
// wins); an existing (id, repository_url) row is left untouched; a row
// with the same (repository_url, relative_path) but a different id is
// replaced.
func (s *Store) Insert(_ context.Context, docs []domain.Document) error {
	// Collapse duplicates within the batch, keeping the last occurrence.
	latest := make(map[rowKey]domain.Document, len(docs))
	order := make([]rowKey, 0, len(docs))
	for _, doc := range docs {
		key := rowKey{doc.ID, doc.RepositoryURL}
		if _, seen := latest[key]; !seen {
			order = append(order, key)
		}
		latest[key] = doc
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range order {
		doc := latest[key]
		if len(doc.Embedding) != s.dimensions {
			return domain.E(domain.ErrSchemaMismatch, "insert", nil).WithPath(doc.RelativePath)
		}
		if _, exists := s.rows[key]; exists {
			continue // replay safe
		}
		// Replace-by-path: a changed file produces a new id for the same
		// (repository, relative path); drop the stale row first.
		for k, existing := range s.rows {
			if existing.RepositoryURL == doc.RepositoryURL &&
				existing.RelativePath == doc.RelativePath && k.id != doc.ID {
				delete(s.rows, k)
			}
		}
		s.rows[key] = doc
	}
	return nil
}

// Delete removes rows matching the predicate.
func (s *Store) Delete(_ context.Context, pred driven.DeletePredicate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for key, doc := range s.rows {
		if pred.Matches(doc) {
			delete(s.rows, key)
			removed++
		}
	}
	return removed, nil
}

// Search returns the top k rows by cosine similarity, ties broken by
// ascending id.
func (s *Store) Search(_ context.Context, query []float32, k int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.SearchResult, 0, len(s.rows))
	for _, doc := range s.rows {
		if !filter.Matches(doc) {
			continue
		}
		results = append(results, domain.SearchResult{
			Document: doc,
			Score:    vectormath.Cosine(query, doc.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of rows matching the filter.
func (s *Store) Count(_ context.Context, filter domain.SearchFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, doc := range s.rows {
		if filter.Matches(doc) {
			n++
		}
	}
	return n, nil
}

// Fingerprints returns relative_path → fingerprint for one repository.
func (s *Store) Fingerprints(_ context.Context, repositoryURL string) (map[string]domain.Fingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Fingerprint)
	for _, doc := range s.rows {
		if doc.RepositoryURL == repositoryURL {
			out[doc.RelativePath] = domain.Fingerprint{
				ID:      doc.ID,
				Size:    doc.FileSize,
				ModTime: doc.LastModified,
			}
		}
	}
	return out, nil
}

// Stats summarizes the store.
func (s *Store) Stats(_ context.Context) (domain.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	repos := make(map[string]bool)
	for _, doc := range s.rows {
		if doc.RepositoryURL != "" {
			repos[doc.RepositoryURL] = true
		}
	}
	return domain.StoreStats{
		Documents:    int64(len(s.rows)),
		Repositories: len(repos),
		TableName:    s.tableName,
		EmbeddingDim: s.dimensions,
	}, nil
}

// Verify reports the store as healthy; there is no backing schema.
func (s *Store) Verify(_ context.Context) (domain.VerifyReport, error) {
	return domain.VerifyReport{
		OK:           true,
		TablePresent: true,
		SchemaOK:     true,
		EmbeddingDim: s.dimensions,
	}, nil
}

// All returns every row sorted by relative path.
func (s *Store) All(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, 0, len(s.rows))
	for _, doc := range s.rows {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RelativePath < out[j].RelativePath
	})
	return out, nil
}

// Reset drops all rows.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[rowKey]domain.Document)
	return nil
}

// Dimensions returns the declared embedding dimension.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Close releases resources.
func (s *Store) Close() error {
	return nil
}
