package gitrepo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/repovec/internal/core/domain"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanner_FiltersAndOrders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "# readme")
	writeFile(t, root, "src/a.txt", "text")
	writeFile(t, root, "big.bin", string(make([]byte, 64)))
	writeFile(t, root, "node_modules/x.md", "# skip me")
	writeFile(t, root, ".git/config", "[core]")
	writeFile(t, root, "image.png", "binary")

	scanner := NewScanner(ScanOptions{
		ExcludeGlobs: []string{"node_modules/*"},
		MaxBytes:     32,
	})
	items, skips, err := scanner.Scan(root)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "README.md", items[0].RelativePath)
	assert.Equal(t, "src/a.txt", items[1].RelativePath)

	reasons := map[string]domain.SkipReason{}
	for _, skip := range skips {
		reasons[skip.RelativePath] = skip.Reason
	}
	assert.Equal(t, domain.SkipTooLarge, reasons["big.bin"])
	assert.Equal(t, domain.SkipExcluded, reasons["node_modules/x.md"])
	// Non-textual files under the cap and .git contents are silently ignored.
	assert.NotContains(t, reasons, "image.png")
	assert.NotContains(t, reasons, ".git/config")
}

func TestScanner_Deterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.md", "b")
	writeFile(t, root, "a.md", "a")
	writeFile(t, root, "sub/c.md", "c")

	scanner := NewScanner(ScanOptions{})
	first, _, err := scanner.Scan(root)
	require.NoError(t, err)
	second, _, err := scanner.Scan(root)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "a.md", first[0].RelativePath)
	assert.Equal(t, "b.md", first[1].RelativePath)
	assert.Equal(t, "sub/c.md", first[2].RelativePath)
}

func TestScanner_SubdirsBoundTheWalk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/guide.md", "# guide")
	writeFile(t, root, "src/code.md", "# code")
	writeFile(t, root, "other/skip.md", "# skip")

	scanner := NewScanner(ScanOptions{Subdirs: []string{"docs", "src"}})
	items, _, err := scanner.Scan(root)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "docs/guide.md", items[0].RelativePath)
	assert.Equal(t, "src/code.md", items[1].RelativePath)
}

func TestScanner_MissingSubdirIsNotAnError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/guide.md", "# guide")

	scanner := NewScanner(ScanOptions{Subdirs: []string{"docs", "absent"}})
	items, _, err := scanner.Scan(root)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestScanner_DoesNotFollowSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, outside, "secret.md", "# secret")
	writeFile(t, root, "normal.md", "# ok")
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.md"), filepath.Join(root, "link.md")))

	scanner := NewScanner(ScanOptions{})
	items, _, err := scanner.Scan(root)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "normal.md", items[0].RelativePath)
}

func TestScanner_ExtensionAllowlist(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")
	writeFile(t, root, "b.rst", "b")

	scanner := NewScanner(ScanOptions{IncludeExts: []string{".rst"}})
	items, _, err := scanner.Scan(root)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "b.rst", items[0].RelativePath)
}
