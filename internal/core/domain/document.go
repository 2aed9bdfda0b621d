package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Document is a row in the vector table. Identity is content-addressed:
// ID equals the SHA-256 of the normalized content.
type Document struct {
	// ID is the lowercase hex SHA-256 of Content.
	ID string

	// FilePath is the absolute path on the ingest host (diagnostic only).
	FilePath string

	// RelativePath is the path relative to the repository root.
	// Stable across clones.
	RelativePath string

	// RepositoryURL is the canonical URL of the owning repository.
	// Empty for ad-hoc inserts.
	RepositoryURL string

	// Content is the normalized text body.
	Content string

	// ContentHash duplicates ID for columnar filtering.
	ContentHash string

	// FileSize is the byte length of the original file.
	FileSize int64

	// LastModified is the file mtime, seconds since epoch.
	LastModified int64

	// ParsedAt is the ingestion timestamp, seconds since epoch.
	ParsedAt int64

	// Normalized is true iff markdown normalization was applied.
	Normalized bool

	// Embedding is the vector representation. Its length must equal the
	// table's declared embedding dimension.
	Embedding []float32

	// Optional hints extracted at build time.
	Title       string
	Description string
	Language    string
}

// NewDocument builds a document from normalized content and stamps the
// content hash. ParsedAt uses a saturating epoch subtraction so a skewed
// clock yields zero rather than a negative timestamp.
func NewDocument(filePath, relativePath, content string, fileSize, lastModified int64) Document {
	hash := HashContent(content)
	return Document{
		ID:           hash,
		FilePath:     filePath,
		RelativePath: relativePath,
		Content:      content,
		ContentHash:  hash,
		FileSize:     fileSize,
		LastModified: lastModified,
		ParsedAt:     EpochSeconds(time.Now()),
	}
}

// HashContent returns the lowercase hex SHA-256 of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// EpochSeconds converts t to seconds since the Unix epoch, saturating at
// zero for times before the epoch.
func EpochSeconds(t time.Time) int64 {
	secs := t.Unix()
	if secs < 0 {
		return 0
	}
	return secs
}

// WorkItem is an ephemeral scan result handed to the document builder.
type WorkItem struct {
	AbsolutePath string
	RelativePath string
	Size         int64
	ModTime      int64
}

// Fingerprint is the cheap skip predicate for incremental ingests.
type Fingerprint struct {
	ID      string
	Size    int64
	ModTime int64
}

// Matches reports whether the work item carries the same size and mtime
// as the stored row.
func (f Fingerprint) Matches(item WorkItem) bool {
	return f.Size == item.Size && f.ModTime == item.ModTime
}

// SkipReason classifies files the pipeline declined to process.
type SkipReason string

const (
	SkipTooLarge SkipReason = "too_large"
	SkipExcluded SkipReason = "excluded"
	SkipNonText  SkipReason = "non_text"
	SkipUpToDate SkipReason = "up_to_date"
)

// Skip records a declined file together with the reason.
type Skip struct {
	RelativePath string
	Reason       SkipReason
}
