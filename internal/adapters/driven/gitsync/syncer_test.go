package gitsync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/repovec/internal/core/domain"
)

func TestValidateURL(t *testing.T) {
	valid := []string{
		"https://github.com/user/repo",
		"https://token@github.com/user/repo.git",
		"git@github.com:user/repo.git",
		"ssh://git@host/repo",
		"file:///srv/git/repo",
	}
	for _, url := range valid {
		assert.NoError(t, validateURL(url), "url %s", url)
	}

	invalid := []string{
		"",
		"https://host/repo;rm -rf /",
		"https://host/repo`id`",
		"--upload-pack=evil",
		"ftp://host/repo",
		"https://",
	}
	for _, url := range invalid {
		err := validateURL(url)
		require.Error(t, err, "url %s", url)
		assert.ErrorIs(t, err, domain.ErrConfigInvalid, "url %s", url)
	}
}

func TestConfine_RejectsEscapes(t *testing.T) {
	root := t.TempDir()
	syncer, err := New(root)
	require.NoError(t, err)

	_, err = syncer.confine(filepath.Join(root, "repos", "ok"))
	assert.NoError(t, err)

	_, err = syncer.confine("/somewhere/else")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPathEscape)

	_, err = syncer.confine(filepath.Join(root, "..", "sibling"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPathEscape)
}

func TestMaterialize_RejectsPathEscapeBeforeRunningGit(t *testing.T) {
	syncer, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = syncer.Materialize(context.Background(),
		"https://example.com/repo", "main", "/outside/tree")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPathEscape)
}

func TestIsCommitish(t *testing.T) {
	assert.True(t, isCommitish("abc1234"))
	assert.True(t, isCommitish("0123456789abcdef0123456789abcdef01234567"))
	assert.False(t, isCommitish("main"))
	assert.False(t, isCommitish("v1.2.3"))
	assert.False(t, isCommitish("abc"))
	assert.False(t, isCommitish("feature/abcdef1"))
}

func TestRedactLine(t *testing.T) {
	in := "fatal: unable to access 'https://token123@github.com/user/repo/': 403"
	out := redactLine(in)
	assert.NotContains(t, out, "token123")
	assert.Contains(t, out, "github.com/user/repo")
}

func TestClassify(t *testing.T) {
	err := classify("fetch", "https://example.com/r", "remote: Authentication failed")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = classify("merge", "https://example.com/r", "fatal: Not possible to fast-forward, aborting.")
	assert.ErrorIs(t, err, domain.ErrSyncConflict)
}
