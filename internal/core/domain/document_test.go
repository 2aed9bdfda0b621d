package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument(t *testing.T) {
	doc := NewDocument("/abs/readme.md", "readme.md", "# Title\n", 8, 1234567890)

	expected := sha256.Sum256([]byte("# Title\n"))
	assert.Equal(t, hex.EncodeToString(expected[:]), doc.ID)
	assert.Equal(t, doc.ID, doc.ContentHash)
	assert.Equal(t, "readme.md", doc.RelativePath)
	assert.Equal(t, int64(8), doc.FileSize)
	assert.Equal(t, int64(1234567890), doc.LastModified)
	assert.Positive(t, doc.ParsedAt)
	assert.False(t, doc.Normalized)
}

func TestHashContent_Consistency(t *testing.T) {
	first := HashContent("same content")
	second := HashContent("same content")
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.NotEqual(t, first, HashContent("other content"))
}

func TestEpochSeconds_SaturatesBeforeEpoch(t *testing.T) {
	before := time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(0), EpochSeconds(before))

	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, after.Unix(), EpochSeconds(after))
}

func TestFingerprint_Matches(t *testing.T) {
	fp := Fingerprint{ID: "abc", Size: 10, ModTime: 100}

	assert.True(t, fp.Matches(WorkItem{Size: 10, ModTime: 100}))
	assert.False(t, fp.Matches(WorkItem{Size: 11, ModTime: 100}))
	assert.False(t, fp.Matches(WorkItem{Size: 10, ModTime: 101}))
}

func TestRepoName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/user/repo", "repo"},
		{"https://github.com/user/repo.git", "repo"},
		{"https://github.com/org/my-project/", "my-project"},
		{"git@github.com:user/repo.git", "repo"},
		{"repo", "repo"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RepoName(tt.url), "url %s", tt.url)
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", TruncateRunes("short", 10))
	assert.Equal(t, "ab", TruncateRunes("abcdef", 2))

	// Never splits a multi-byte rune.
	s := "héllo" // é is two bytes
	cut := TruncateRunes(s, 2)
	assert.Equal(t, "h", cut)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://github.com/user/repo",
		RedactURL("https://token123@github.com/user/repo"))
	assert.Equal(t, "https://github.com/user/repo",
		RedactURL("https://github.com/user/repo"))
}

func TestError_KindAndContext(t *testing.T) {
	err := E(ErrSyncConflict, "fast-forward", nil).WithRepo("https://x@example.com/r")

	require.ErrorIs(t, err, ErrSyncConflict)
	assert.Equal(t, "sync_conflict", err.Code())
	assert.NotContains(t, err.Error(), "x@", "credentials must not leak into messages")
	assert.Contains(t, err.Error(), "example.com/r")
}

func TestCodeFor_Unknown(t *testing.T) {
	assert.Equal(t, "internal", CodeFor(assert.AnError))
}
