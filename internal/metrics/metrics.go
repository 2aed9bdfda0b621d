// Package metrics holds the Prometheus instruments for the ingestion
// pipeline. Registration happens once on first use; the collectors are
// in-process only, there is no HTTP exposition endpoint.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// FilesScanned counts candidate files the scanner emitted.
	FilesScanned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "repovec_files_scanned_total",
		Help: "Candidate files emitted by the scanner",
	})

	// FilesSkipped counts files skipped before processing, by reason.
	FilesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "repovec_files_skipped_total",
		Help: "Files skipped before processing",
	}, []string{"reason"})

	// DocumentsInserted counts rows handed to the vector store.
	DocumentsInserted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "repovec_documents_inserted_total",
		Help: "Document rows inserted into the vector store",
	})

	// EmbedRetries counts embedding request retries.
	EmbedRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "repovec_embed_retries_total",
		Help: "Embedding provider request retries",
	})

	// FileErrors counts per-file failures recorded in ingest reports.
	FileErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "repovec_file_errors_total",
		Help: "Per-file failures recorded in ingest reports",
	})

	// StageDuration observes per-stage wall time in seconds.
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "repovec_stage_seconds",
		Help:    "Wall time per pipeline stage",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"stage"})
)

// Register installs the collectors in the default registry. Safe to call
// from every entry point.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			FilesScanned,
			FilesSkipped,
			DocumentsInserted,
			EmbedRetries,
			FileErrors,
			StageDuration,
		)
	})
}
