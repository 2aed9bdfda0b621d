package driving

import (
	"context"

	"github.com/custodia-labs/repovec/internal/core/domain"
)

// IngestService drives the ingestion pipeline.
type IngestService interface {
	// Ingest runs the full pipeline for spec and reports the outcome.
	// progress may be nil.
	Ingest(ctx context.Context, spec domain.IngestSpec, progress domain.ProgressFunc) (*domain.IngestReport, error)

	// Update re-ingests a known repository, optionally at a new
	// reference, with force semantics.
	Update(ctx context.Context, identifier, newReference string, progress domain.ProgressFunc) (*domain.IngestReport, error)
}
