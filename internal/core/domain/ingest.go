package domain

// IngestSpec describes one ingestion request.
type IngestSpec struct {
	// URL is the remote repository to ingest.
	URL string

	// Reference is the branch, tag, or commit to check out. Empty means
	// the configured default branch.
	Reference string

	// Subdirs restricts the scan to these root-relative directories.
	Subdirs []string

	// Force bypasses the fingerprint fast-path and reprocesses every file.
	Force bool

	// SkipSync reuses the existing work tree without touching the remote.
	SkipSync bool

	// Limit caps the number of files processed in this run. Zero means
	// no limit.
	Limit int
}

// IngestState tracks where an ingest run is in its lifecycle.
type IngestState string

const (
	StateQueued    IngestState = "queued"
	StateSyncing   IngestState = "syncing"
	StateScanning  IngestState = "scanning"
	StateEmbedding IngestState = "embedding"
	StateWriting   IngestState = "writing"
	StateDone      IngestState = "done"
	StateFailed    IngestState = "failed"
)

// FileError records a per-file failure that did not abort the run.
type FileError struct {
	RelativePath string `json:"relative_path"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}

// IngestReport summarizes one ingest run.
type IngestReport struct {
	URL            string      `json:"url"`
	Reference      string      `json:"reference"`
	Commit         string      `json:"commit"`
	FilesInserted  int         `json:"files_inserted"`
	FilesSkipped   int         `json:"files_skipped"`
	Skips          []Skip      `json:"-"`
	Errors         []FileError `json:"errors"`
	DurationMillis int64       `json:"duration_ms"`
}

// Progress is emitted during long-running ingests on state changes and,
// after each written batch, once 100 documents or two seconds have passed
// since the previous event. No event is emitted while a batch is in flight.
type Progress struct {
	RunID     string
	State     IngestState
	Processed int
	Total     int
	Message   string
}

// ProgressFunc receives progress events. Implementations must be cheap;
// they are invoked from the pipeline's hot path.
type ProgressFunc func(Progress)
