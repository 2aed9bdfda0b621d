package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/repovec/internal/adapters/driven/embedding/local"
	registryfile "github.com/custodia-labs/repovec/internal/adapters/driven/registry/file"
	"github.com/custodia-labs/repovec/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/repovec/internal/core/domain"
)

func TestExporter_WritesDocumentsAndRegistry(t *testing.T) {
	ctx := context.Background()
	store := memory.New("documents", 2)
	reg, err := registryfile.New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Insert(ctx, []domain.Document{{
		ID:            "abc",
		RepositoryURL: "https://example.com/r",
		RelativePath:  "a.md",
		Content:       "body",
		ContentHash:   "abc",
		Embedding:     []float32{1, 0},
	}}))
	require.NoError(t, reg.Upsert(ctx, domain.RepositoryEntry{
		URL: "https://example.com/r", Name: "r", Reference: "main",
	}))

	dir := filepath.Join(t.TempDir(), "out")
	exporter := NewExporter(store, reg)
	require.NoError(t, exporter.Export(ctx, dir, true))

	docData, err := os.ReadFile(filepath.Join(dir, "documents.json"))
	require.NoError(t, err)
	var docs []map[string]any
	require.NoError(t, json.Unmarshal(docData, &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "abc", docs[0]["id"])
	assert.NotContains(t, docs[0], "embedding", "embeddings stay out of exports")

	repoData, err := os.ReadFile(filepath.Join(dir, "repositories.json"))
	require.NoError(t, err)
	var repos []map[string]any
	require.NoError(t, json.Unmarshal(repoData, &repos))
	require.Len(t, repos, 1)
	assert.Equal(t, "r", repos[0]["name"])
}

func TestSearchService_FallsBackWhenPrimaryFails(t *testing.T) {
	ctx := context.Background()
	store := memory.New("documents", 64)

	// Seed via the fallback embedder so vectors are comparable.
	fallback := local.New(64)
	vec, err := fallback.Embed(ctx, "alpha beta")
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, []domain.Document{{
		ID: "a", RelativePath: "a.txt", Content: "alpha beta",
		ContentHash: "a", Embedding: vec,
	}}))

	svc := NewSearchService(store, failingEmbedder{fallback}, fallback)
	results, err := svc.Search(ctx, "beta", 5, domain.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Document.ID)
}
