package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/core/ports/driven"
	"github.com/custodia-labs/repovec/internal/logger"
)

// Exporter dumps the store and registry as JSON files.
type Exporter struct {
	store    driven.VectorStore
	registry driven.RepositoryRegistry
}

// NewExporter creates an exporter.
func NewExporter(store driven.VectorStore, registry driven.RepositoryRegistry) *Exporter {
	return &Exporter{store: store, registry: registry}
}

// exportedDocument is the JSON row shape. Embeddings are omitted; the
// export is for inspection and downstream tooling, not for restore.
type exportedDocument struct {
	ID            string `json:"id"`
	RepositoryURL string `json:"repository_url,omitempty"`
	RelativePath  string `json:"relative_path"`
	Content       string `json:"content"`
	ContentHash   string `json:"content_hash"`
	FileSize      int64  `json:"file_size"`
	LastModified  int64  `json:"last_modified"`
	ParsedAt      int64  `json:"parsed_at"`
	Normalized    bool   `json:"normalized"`
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	Language      string `json:"language,omitempty"`
}

// Export writes documents.json and repositories.json into dir. Each file
// lands via temp-file + rename: full success or no change.
func (e *Exporter) Export(ctx context.Context, dir string, pretty bool) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return domain.E(domain.ErrFileUnreadable, "export", err)
	}

	docs, err := e.store.All(ctx)
	if err != nil {
		return err
	}
	rows := make([]exportedDocument, len(docs))
	for i, doc := range docs {
		rows[i] = exportedDocument{
			ID:            doc.ID,
			RepositoryURL: doc.RepositoryURL,
			RelativePath:  doc.RelativePath,
			Content:       doc.Content,
			ContentHash:   doc.ContentHash,
			FileSize:      doc.FileSize,
			LastModified:  doc.LastModified,
			ParsedAt:      doc.ParsedAt,
			Normalized:    doc.Normalized,
			Title:         doc.Title,
			Description:   doc.Description,
			Language:      doc.Language,
		}
	}
	if err := writeJSON(filepath.Join(dir, "documents.json"), rows, pretty); err != nil {
		return err
	}

	entries, err := e.registry.List(ctx)
	if err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "repositories.json"), entries, pretty); err != nil {
		return err
	}

	logger.Info("export: %d documents, %d repositories → %s", len(rows), len(entries), dir)
	return nil
}

// writeJSON marshals v and writes it atomically.
func writeJSON(path string, v any, pretty bool) error {
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return domain.E(domain.ErrInternal, "export", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.json")
	if err != nil {
		return domain.E(domain.ErrFileUnreadable, "export", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return domain.E(domain.ErrFileUnreadable, "export", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return domain.E(domain.ErrFileUnreadable, "export", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return domain.E(domain.ErrFileUnreadable, "export", err)
	}
	return nil
}
