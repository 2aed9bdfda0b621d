package services

import (
	"os"
	"unicode/utf8"

	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/normalisers/markdown"
)

// descriptionMax bounds the extracted description in bytes.
const descriptionMax = 512

// DocumentBuilder turns work items into document rows: read, decode,
// normalize, extract hints, hash.
type DocumentBuilder struct{}

// NewDocumentBuilder creates a builder.
func NewDocumentBuilder() *DocumentBuilder {
	return &DocumentBuilder{}
}

// Build reads the work item and produces a document, a skip, or an
// error. Exactly one of the three is non-zero. Errors are per-file; the
// caller records them and continues.
func (b *DocumentBuilder) Build(item domain.WorkItem, repositoryURL string) (*domain.Document, *domain.Skip, error) {
	raw, err := os.ReadFile(item.AbsolutePath)
	if err != nil {
		return nil, nil, domain.E(domain.ErrFileUnreadable, "build", err).WithPath(item.RelativePath)
	}
	if !utf8.Valid(raw) {
		return nil, &domain.Skip{RelativePath: item.RelativePath, Reason: domain.SkipNonText}, nil
	}

	content := string(raw)
	normalized := false
	if markdown.IsMarkdown(item.RelativePath) {
		content = markdown.Normalize(content)
		normalized = true
	}

	doc := domain.NewDocument(item.AbsolutePath, item.RelativePath, content, item.Size, item.ModTime)
	doc.RepositoryURL = repositoryURL
	doc.Normalized = normalized
	doc.Title = markdown.ExtractTitle(content, item.RelativePath)
	doc.Description = markdown.ExtractDescription(content, descriptionMax)
	doc.Language = markdown.DetectLanguage(item.RelativePath)
	return &doc, nil, nil
}
