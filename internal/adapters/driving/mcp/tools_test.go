package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/core/ports/driving"
)

func fullPorts() (*Ports, *mockIngestService, *mockSearchService, *mockRepositoryService) {
	ingest := &mockIngestService{report: &domain.IngestReport{
		Commit:        "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		FilesInserted: 2,
		FilesSkipped:  1,
	}}
	search := &mockSearchService{}
	repos := &mockRepositoryService{}
	return &Ports{Ingest: ingest, Search: search, Repository: repos}, ingest, search, repos
}

func TestNewServer_ValidatesPorts(t *testing.T) {
	_, err := NewServer(&Ports{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingIngestService)

	ports, _, _, _ := fullPorts()
	server, err := NewServer(ports)
	require.NoError(t, err)
	assert.NotNil(t, server)
}

func TestServer_handleIngest(t *testing.T) {
	ctx := context.Background()
	ports, ingest, _, _ := fullPorts()
	server, err := NewServer(ports)
	require.NoError(t, err)

	input := IngestInput{
		RepoURL:   "https://example.com/repo",
		Reference: "develop",
		Subdirs:   []string{"docs"},
		Force:     true,
	}
	_, output, err := server.handleIngest(ctx, nil, input)
	require.NoError(t, err)

	assert.Equal(t, 2, output.FilesInserted)
	assert.Equal(t, 1, output.FilesSkipped)
	assert.NotNil(t, output.Errors, "errors array is never null")
	assert.Equal(t, "https://example.com/repo", ingest.lastSpec.URL)
	assert.Equal(t, "develop", ingest.lastSpec.Reference)
	assert.Equal(t, []string{"docs"}, ingest.lastSpec.Subdirs)
	assert.True(t, ingest.lastSpec.Force)
}

func TestServer_handleIngest_ReleasesSlot(t *testing.T) {
	ctx := context.Background()
	ports, _, _, _ := fullPorts()
	server, err := NewServer(ports)
	require.NoError(t, err)

	for range 3 {
		_, _, err := server.handleIngest(ctx, nil, IngestInput{RepoURL: "https://example.com/r"})
		require.NoError(t, err)
	}
}

func TestServer_handleUpdate(t *testing.T) {
	ctx := context.Background()
	ports, ingest, _, _ := fullPorts()
	server, err := NewServer(ports)
	require.NoError(t, err)

	_, output, err := server.handleUpdate(ctx, nil, UpdateInput{
		RepoIdentifier: "test-repo",
		NewReference:   "v2",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, output.FilesInserted)
	assert.Equal(t, []string{"test-repo", "v2"}, ingest.updateArgs)
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()
	ports, _, search, _ := fullPorts()
	search.results = []domain.SearchResult{
		{
			Document: domain.Document{
				ID:           "doc-1",
				RelativePath: "docs/guide.md",
				Content:      "guide body",
			},
			Score: 0.95,
		},
	}
	server, err := NewServer(ports)
	require.NoError(t, err)

	_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "guide", Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, 1, output.Count)
	require.Len(t, output.Results, 1)
	assert.Equal(t, "doc-1", output.Results[0].ID)
	assert.Equal(t, "docs/guide.md", output.Results[0].RelativePath)
	assert.Equal(t, 0.95, output.Results[0].Score)
	assert.Equal(t, "guide body", output.Results[0].Snippet)
	assert.Equal(t, "guide", search.lastQuery)
	assert.Equal(t, 5, search.lastLimit)
}

func TestServer_handleRemove(t *testing.T) {
	ctx := context.Background()
	ports, _, _, repos := fullPorts()
	repos.remove = &driving.RemoveResult{
		Removed:          &domain.RepositoryEntry{URL: "https://example.com/r", Name: "r"},
		DocumentsDeleted: 7,
	}
	server, err := NewServer(ports)
	require.NoError(t, err)

	_, output, err := server.handleRemove(ctx, nil, RemoveInput{RepoIdentifier: "r", Cascade: true})
	require.NoError(t, err)
	assert.True(t, output.Removed)
	assert.Equal(t, int64(7), output.DocumentsDeleted)
}

func TestServer_handleList(t *testing.T) {
	ctx := context.Background()
	ports, _, _, repos := fullPorts()
	repos.entries = []domain.RepositoryEntry{
		{URL: "https://example.com/a", Name: "a", Reference: "main", FileCount: 4},
	}
	server, err := NewServer(ports)
	require.NoError(t, err)

	_, output, err := server.handleList(ctx, nil, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, 1, output.Count)
	assert.Equal(t, "a", output.Repositories[0].Name)
	assert.Equal(t, 4, output.Repositories[0].FileCount)
}

func TestServer_handleStatsAndVerify(t *testing.T) {
	ctx := context.Background()
	ports, _, _, repos := fullPorts()
	repos.stats = domain.StoreStats{Documents: 10, Repositories: 2, TableName: "documents", EmbeddingDim: 384}
	repos.verify = domain.VerifyReport{OK: true, TablePresent: true, SchemaOK: true, EmbeddingDim: 384}
	server, err := NewServer(ports)
	require.NoError(t, err)

	_, stats, err := server.handleStats(ctx, nil, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.Documents)
	assert.Equal(t, 2, stats.Repositories)

	_, verify, err := server.handleVerify(ctx, nil, struct{}{})
	require.NoError(t, err)
	assert.True(t, verify.OK)
}
