package domain

// SearchFilter narrows a vector search or count to rows matching every
// set field. The zero value matches all rows.
type SearchFilter struct {
	RepositoryURL string
	Language      string
}

// Empty reports whether the filter constrains anything.
func (f SearchFilter) Empty() bool {
	return f.RepositoryURL == "" && f.Language == ""
}

// Matches reports whether doc satisfies the filter.
func (f SearchFilter) Matches(doc Document) bool {
	if f.RepositoryURL != "" && doc.RepositoryURL != f.RepositoryURL {
		return false
	}
	if f.Language != "" && doc.Language != f.Language {
		return false
	}
	return true
}

// SearchResult is one row of a nearest-neighbour query.
type SearchResult struct {
	Document Document

	// Score is the cosine similarity in [-1, 1]; higher is closer.
	Score float64
}

// Snippet returns the leading content of the matched document, truncated
// to max bytes on a rune boundary.
func (r SearchResult) Snippet(max int) string {
	return TruncateRunes(r.Document.Content, max)
}

// TruncateRunes cuts s to at most max bytes without splitting a rune.
func TruncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}

// StoreStats is the observability summary of the vector table.
type StoreStats struct {
	Documents    int64
	Repositories int
	TableName    string
	EmbeddingDim int
}

// VerifyReport is the result of a database verification pass.
type VerifyReport struct {
	OK           bool `json:"ok"`
	TablePresent bool `json:"table_present"`
	SchemaOK     bool `json:"schema_ok"`
	EmbeddingDim int  `json:"embedding_dim"`
}
