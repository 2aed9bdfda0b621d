// Package gitrepo enumerates candidate files in a materialized work tree,
// applying include/exclude filters and size caps before the pipeline ever
// reads a byte.
package gitrepo

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/logger"
)

// DefaultExtensions is the textual suffix allowlist applied when the
// configuration does not override it.
var DefaultExtensions = []string{".md", ".txt", ".markdown"}

// ScanOptions bound a scan.
type ScanOptions struct {
	// IncludeExts is the extension allowlist. Empty means DefaultExtensions.
	IncludeExts []string

	// ExcludeGlobs are matched against the repo-relative path.
	ExcludeGlobs []string

	// MaxBytes caps file size; larger files are reported as too_large.
	MaxBytes int64

	// Subdirs restricts the walk to these root-relative directories.
	Subdirs []string
}

// Scanner walks a repository root and yields a deterministic work list.
type Scanner struct {
	opts ScanOptions
}

// NewScanner creates a scanner with the given options.
func NewScanner(opts ScanOptions) *Scanner {
	if len(opts.IncludeExts) == 0 {
		opts.IncludeExts = DefaultExtensions
	}
	return &Scanner{opts: opts}
}

// Scan enumerates regular files under root, or under the union of the
// configured subdirs. Symlinks are not followed. The returned work list
// is sorted lexicographically by relative path so that scanning the same
// tree twice yields the same ordering.
func (s *Scanner) Scan(root string) ([]domain.WorkItem, []domain.Skip, error) {
	roots := []string{root}
	if len(s.opts.Subdirs) > 0 {
		roots = roots[:0]
		for _, sub := range s.opts.Subdirs {
			roots = append(roots, filepath.Join(root, sub))
		}
	}

	var items []domain.WorkItem
	var skips []domain.Skip

	for _, walkRoot := range roots {
		err := filepath.WalkDir(walkRoot, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) && p == walkRoot {
					// A configured subdir may be absent at this reference.
					return filepath.SkipAll
				}
				return err
			}
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				// Symlinks and other specials are never followed.
				return nil
			}

			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			if s.excluded(rel) {
				logger.Debug("scan: excluded %s", rel)
				skips = append(skips, domain.Skip{RelativePath: rel, Reason: domain.SkipExcluded})
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}
			// Size cap applies before the allowlist so oversized payloads
			// show up in the report rather than vanishing.
			if s.opts.MaxBytes > 0 && info.Size() > s.opts.MaxBytes {
				logger.Debug("scan: too large (%d bytes) %s", info.Size(), rel)
				skips = append(skips, domain.Skip{RelativePath: rel, Reason: domain.SkipTooLarge})
				return nil
			}
			if !s.textual(rel) {
				return nil
			}

			items = append(items, domain.WorkItem{
				AbsolutePath: p,
				RelativePath: rel,
				Size:         info.Size(),
				ModTime:      domain.EpochSeconds(info.ModTime()),
			})
			return nil
		})
		if err != nil {
			return nil, nil, domain.E(domain.ErrFileUnreadable, "scan", err)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].RelativePath < items[j].RelativePath
	})
	sort.Slice(skips, func(i, j int) bool {
		return skips[i].RelativePath < skips[j].RelativePath
	})

	logger.Info("scan: %d candidate files, %d skipped", len(items), len(skips))
	return items, skips, nil
}

// excluded reports whether rel matches any exclude glob. A pattern
// matches the full relative path, its base name, or, for directory
// patterns like "node_modules/*", any suffix of the path rooted at a
// matching segment.
func (s *Scanner) excluded(rel string) bool {
	base := path.Base(rel)
	for _, pattern := range s.opts.ExcludeGlobs {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
		if dir, found := strings.CutSuffix(pattern, "/*"); found {
			if rel == dir || strings.HasPrefix(rel, dir+"/") || strings.Contains(rel, "/"+dir+"/") {
				return true
			}
		}
	}
	return false
}

// textual reports whether the path suffix is on the allowlist.
func (s *Scanner) textual(rel string) bool {
	ext := strings.ToLower(path.Ext(rel))
	for _, allowed := range s.opts.IncludeExts {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
