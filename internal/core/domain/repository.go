package domain

import (
	"strings"
	"time"
)

// RepositoryEntry is the durable metadata for one ingested repository.
type RepositoryEntry struct {
	// URL is the canonical repository URL and the primary identifier.
	URL string `json:"url"`

	// Name is the short name derived from the last URL path segment.
	Name string `json:"name"`

	// Reference is the symbolic name the user requested (branch, tag, commit).
	Reference string `json:"reference"`

	// ResolvedCommit is the 40-hex commit actually checked out.
	ResolvedCommit string `json:"resolved_commit"`

	// Subdirs bounds the scan to these root-relative directories when set.
	Subdirs []string `json:"subdirs,omitempty"`

	// FileCount is the number of rows inserted by the most recent ingest.
	FileCount int `json:"file_count"`

	// IngestedAt is seconds since epoch of the most recent ingest.
	IngestedAt int64 `json:"ingested_at"`
}

// RepoName derives the short repository name from a URL: the last path
// segment with any trailing slash and ".git" suffix trimmed.
func RepoName(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if idx := strings.LastIndexAny(trimmed, "/:"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return strings.TrimSuffix(trimmed, ".git")
}

// Touch updates the ingest timestamp to now.
func (e *RepositoryEntry) Touch() {
	e.IngestedAt = EpochSeconds(time.Now())
}
