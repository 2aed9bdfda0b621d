// Package mcp provides the Model Context Protocol server adapter for
// repovec. It exposes repository ingestion and semantic search to AI
// assistants over stdio (or HTTP).
package mcp

import "errors"

// Missing-port errors. Ports.Validate returns the first three;
// get_config returns ErrMissingConfigStore when no config store is set.
var (
	ErrMissingIngestService     = errors.New("mcp: ingest service is required")
	ErrMissingSearchService     = errors.New("mcp: search service is required")
	ErrMissingRepositoryService = errors.New("mcp: repository service is required")
	ErrMissingConfigStore       = errors.New("mcp: config store is not configured")
)
