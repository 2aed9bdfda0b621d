package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/logger"
)

// IngestInput is the input schema for ingest_repository.
type IngestInput struct {
	RepoURL   string   `json:"repo_url" jsonschema:"repository URL to ingest (e.g. https://github.com/user/repo)"`
	Reference string   `json:"reference,omitempty" jsonschema:"branch, tag, or commit to check out (default: configured branch)"`
	Subdirs   []string `json:"subdirs,omitempty" jsonschema:"root-relative directories to restrict the scan to"`
	Force     bool     `json:"force,omitempty" jsonschema:"reprocess all files even if already ingested"`
}

// IngestOutput is the output schema for ingest_repository and
// update_repository.
type IngestOutput struct {
	Commit        string             `json:"commit"`
	FilesInserted int                `json:"files_inserted"`
	FilesSkipped  int                `json:"files_skipped"`
	Errors        []domain.FileError `json:"errors"`
}

// ListOutput is the output schema for list_repositories.
type ListOutput struct {
	Repositories []RepositoryOutput `json:"repositories"`
	Count        int                `json:"count"`
}

// RepositoryOutput is one registry entry.
type RepositoryOutput struct {
	Name           string   `json:"name"`
	URL            string   `json:"url"`
	Reference      string   `json:"reference"`
	ResolvedCommit string   `json:"resolved_commit"`
	Subdirs        []string `json:"subdirs,omitempty"`
	FileCount      int      `json:"file_count"`
	IngestedAt     int64    `json:"ingested_at"`
}

// RemoveInput is the input schema for remove_repository.
type RemoveInput struct {
	RepoIdentifier string `json:"repo_identifier" jsonschema:"repository URL or short name to remove"`
	Cascade        bool   `json:"cascade,omitempty" jsonschema:"also delete every stored document of this repository"`
}

// RemoveOutput is the output schema for remove_repository.
type RemoveOutput struct {
	Removed          bool  `json:"removed"`
	DocumentsDeleted int64 `json:"documents_deleted"`
}

// UpdateInput is the input schema for update_repository.
type UpdateInput struct {
	RepoIdentifier string `json:"repo_identifier" jsonschema:"repository URL or short name to update"`
	NewReference   string `json:"new_reference,omitempty" jsonschema:"reference to move to (default: previous reference)"`
}

// SearchInput is the input schema for search_documents.
type SearchInput struct {
	Query  string       `json:"query" jsonschema:"the search query"`
	Limit  int          `json:"limit,omitempty" jsonschema:"maximum number of results (default 10)"`
	Filter SearchFilter `json:"filter,omitempty" jsonschema:"optional equality filter"`
}

// SearchFilter narrows results.
type SearchFilter struct {
	RepositoryURL string `json:"repository_url,omitempty" jsonschema:"only rows from this repository"`
	Language      string `json:"language,omitempty" jsonschema:"only rows with this language hint"`
}

// SearchOutput is the output schema for search_documents.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput is one search hit.
type SearchResultOutput struct {
	ID           string  `json:"id"`
	RelativePath string  `json:"relative_path"`
	Score        float64 `json:"score"`
	Snippet      string  `json:"snippet"`
}

// StatsOutput is the output schema for get_stats.
type StatsOutput struct {
	Documents    int64  `json:"documents"`
	Repositories int    `json:"repositories"`
	TableName    string `json:"table_name"`
	EmbeddingDim int    `json:"embedding_dim"`
}

// ConfigOutput is the output schema for get_config.
type ConfigOutput struct {
	TOML string `json:"toml"`
}

// snippetMax bounds search snippets in bytes.
const snippetMax = 200

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_repository",
		Description: "Ingest a Git repository into the vector store. Supports reference selection and subdirectory filtering.",
	}, s.handleIngest)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_repositories",
		Description: "List all ingested repositories with their metadata",
	}, s.handleList)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "remove_repository",
		Description: "Remove a repository; with cascade, delete its stored documents too",
	}, s.handleRemove)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_repository",
		Description: "Re-ingest a known repository, optionally at a new reference",
	}, s.handleUpdate)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Search ingested documents by semantic similarity",
	}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_stats",
		Description: "Get statistics about the vector store and registry",
	}, s.handleStats)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_config",
		Description: "Get the effective configuration with secrets redacted",
	}, s.handleConfig)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "verify_database",
		Description: "Verify vector store presence and schema",
	}, s.handleVerify)
}

// progressReporter streams ingest progress to the client while a
// long-running tool executes.
func progressReporter(ctx context.Context, req *mcp.CallToolRequest) domain.ProgressFunc {
	var token any
	if req != nil && req.Params != nil {
		token = req.Params.GetProgressToken()
	}
	var session *mcp.ServerSession
	if req != nil {
		session = req.Session
	}
	return func(p domain.Progress) {
		logger.Debug("progress: %s %s %d/%d", p.RunID, p.State, p.Processed, p.Total)
		if token == nil || session == nil {
			return
		}
		_ = session.NotifyProgress(ctx, &mcp.ProgressNotificationParams{
			ProgressToken: token,
			Progress:      float64(p.Processed),
			Total:         float64(p.Total),
			Message:       string(p.State) + ": " + p.Message,
		})
	}
}

// handleIngest handles ingest_repository.
func (s *Server) handleIngest(ctx context.Context, req *mcp.CallToolRequest, input IngestInput) (*mcp.CallToolResult, IngestOutput, error) {
	if err := s.acquireIngest(ctx); err != nil {
		return nil, IngestOutput{}, err
	}
	defer s.releaseIngest()

	report, err := s.ports.Ingest.Ingest(ctx, domain.IngestSpec{
		URL:       input.RepoURL,
		Reference: input.Reference,
		Subdirs:   input.Subdirs,
		Force:     input.Force,
	}, progressReporter(ctx, req))
	if err != nil {
		return nil, IngestOutput{}, err
	}
	return nil, ingestOutput(report), nil
}

// handleUpdate handles update_repository.
func (s *Server) handleUpdate(ctx context.Context, req *mcp.CallToolRequest, input UpdateInput) (*mcp.CallToolResult, IngestOutput, error) {
	if err := s.acquireIngest(ctx); err != nil {
		return nil, IngestOutput{}, err
	}
	defer s.releaseIngest()

	report, err := s.ports.Ingest.Update(ctx, input.RepoIdentifier, input.NewReference, progressReporter(ctx, req))
	if err != nil {
		return nil, IngestOutput{}, err
	}
	return nil, ingestOutput(report), nil
}

func ingestOutput(report *domain.IngestReport) IngestOutput {
	errs := report.Errors
	if errs == nil {
		errs = []domain.FileError{}
	}
	return IngestOutput{
		Commit:        report.Commit,
		FilesInserted: report.FilesInserted,
		FilesSkipped:  report.FilesSkipped,
		Errors:        errs,
	}
}

// handleList handles list_repositories.
func (s *Server) handleList(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, ListOutput, error) {
	entries, err := s.ports.Repository.List(ctx)
	if err != nil {
		return nil, ListOutput{}, err
	}
	out := ListOutput{Repositories: make([]RepositoryOutput, len(entries)), Count: len(entries)}
	for i, entry := range entries {
		out.Repositories[i] = RepositoryOutput{
			Name:           entry.Name,
			URL:            entry.URL,
			Reference:      entry.Reference,
			ResolvedCommit: entry.ResolvedCommit,
			Subdirs:        entry.Subdirs,
			FileCount:      entry.FileCount,
			IngestedAt:     entry.IngestedAt,
		}
	}
	return nil, out, nil
}

// handleRemove handles remove_repository.
func (s *Server) handleRemove(ctx context.Context, _ *mcp.CallToolRequest, input RemoveInput) (*mcp.CallToolResult, RemoveOutput, error) {
	result, err := s.ports.Repository.Remove(ctx, input.RepoIdentifier, input.Cascade)
	if err != nil {
		return nil, RemoveOutput{}, err
	}
	return nil, RemoveOutput{
		Removed:          result.Removed != nil,
		DocumentsDeleted: result.DocumentsDeleted,
	}, nil
}

// handleSearch handles search_documents.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	results, err := s.ports.Search.Search(ctx, input.Query, input.Limit, domain.SearchFilter{
		RepositoryURL: input.Filter.RepositoryURL,
		Language:      input.Filter.Language,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	out := SearchOutput{Results: make([]SearchResultOutput, len(results)), Count: len(results)}
	for i, result := range results {
		out.Results[i] = SearchResultOutput{
			ID:           result.Document.ID,
			RelativePath: result.Document.RelativePath,
			Score:        result.Score,
			Snippet:      result.Snippet(snippetMax),
		}
	}
	return nil, out, nil
}

// handleStats handles get_stats.
func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.ports.Repository.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	return nil, StatsOutput{
		Documents:    stats.Documents,
		Repositories: stats.Repositories,
		TableName:    stats.TableName,
		EmbeddingDim: stats.EmbeddingDim,
	}, nil
}

// handleConfig handles get_config.
func (s *Server) handleConfig(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, ConfigOutput, error) {
	if s.ports.Config == nil {
		return nil, ConfigOutput{}, ErrMissingConfigStore
	}
	rendered, err := s.ports.Config.Get().RedactedTOML()
	if err != nil {
		return nil, ConfigOutput{}, err
	}
	return nil, ConfigOutput{TOML: rendered}, nil
}

// handleVerify handles verify_database.
func (s *Server) handleVerify(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, domain.VerifyReport, error) {
	report, err := s.ports.Repository.Verify(ctx)
	if err != nil {
		return nil, domain.VerifyReport{}, err
	}
	return nil, report, nil
}
