package mcp

import (
	"context"

	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/core/ports/driving"
)

type mockIngestService struct {
	report     *domain.IngestReport
	err        error
	lastSpec   domain.IngestSpec
	updateArgs []string
}

func (m *mockIngestService) Ingest(_ context.Context, spec domain.IngestSpec, progress domain.ProgressFunc) (*domain.IngestReport, error) {
	m.lastSpec = spec
	if progress != nil {
		progress(domain.Progress{State: domain.StateScanning})
	}
	return m.report, m.err
}

func (m *mockIngestService) Update(_ context.Context, identifier, newReference string, _ domain.ProgressFunc) (*domain.IngestReport, error) {
	m.updateArgs = []string{identifier, newReference}
	return m.report, m.err
}

type mockSearchService struct {
	results   []domain.SearchResult
	err       error
	lastQuery string
	lastLimit int
}

func (m *mockSearchService) Search(_ context.Context, query string, limit int, _ domain.SearchFilter) ([]domain.SearchResult, error) {
	m.lastQuery = query
	m.lastLimit = limit
	return m.results, m.err
}

type mockRepositoryService struct {
	entries []domain.RepositoryEntry
	remove  *driving.RemoveResult
	stats   domain.StoreStats
	verify  domain.VerifyReport
	err     error
}

func (m *mockRepositoryService) List(_ context.Context) ([]domain.RepositoryEntry, error) {
	return m.entries, m.err
}

func (m *mockRepositoryService) Remove(_ context.Context, _ string, _ bool) (*driving.RemoveResult, error) {
	return m.remove, m.err
}

func (m *mockRepositoryService) Stats(_ context.Context) (domain.StoreStats, error) {
	return m.stats, m.err
}

func (m *mockRepositoryService) Verify(_ context.Context) (domain.VerifyReport, error) {
	return m.verify, m.err
}
