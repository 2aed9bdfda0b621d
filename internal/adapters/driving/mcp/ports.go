package mcp

import (
	configfile "github.com/custodia-labs/repovec/internal/adapters/driven/config/file"
	"github.com/custodia-labs/repovec/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces the MCP server dispatches
// to. One injection point keeps wiring in a single place.
type Ports struct {
	// Ingest drives repository ingestion and updates.
	Ingest driving.IngestService

	// Search answers semantic queries.
	Search driving.SearchService

	// Repository manages registry entries, stats, and verification.
	Repository driving.RepositoryService

	// Config exposes the effective configuration for get_config.
	Config *configfile.Store
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Ingest == nil {
		return ErrMissingIngestService
	}
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Repository == nil {
		return ErrMissingRepositoryService
	}
	return nil
}
