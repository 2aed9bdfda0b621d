package driven

// PipelineOptions is the snapshot of configuration the orchestrator
// consumes for one run. A provider returns a fresh snapshot per call so
// hot reloads take effect between runs, never mid-run.
type PipelineOptions struct {
	// ReposDir is where work trees are materialized, one per repository.
	ReposDir string

	// DefaultBranch is used when a spec carries no reference.
	DefaultBranch string

	// Workers bounds the document builder pool.
	Workers int

	// SkipPatterns are exclude globs for the scanner.
	SkipPatterns []string

	// IncludeExts is the textual suffix allowlist. Empty means default.
	IncludeExts []string

	// MaxFileBytes caps file size before read.
	MaxFileBytes int64

	// StoreBatchSize bounds one vector-store insert.
	StoreBatchSize int

	// EmbedBatchSize bounds one embedding request.
	EmbedBatchSize int

	// ForceReprocess globally disables the fingerprint fast-path.
	ForceReprocess bool

	// DegradeToLocal switches to the fallback embedder when the remote
	// exhausts its retry budget.
	DegradeToLocal bool
}

// ConfigProvider hands out pipeline option snapshots.
type ConfigProvider interface {
	PipelineOptions() PipelineOptions
}
