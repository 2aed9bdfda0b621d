// Package gitsync materializes remote repositories in local work trees by
// shelling out to the git binary. URLs are validated before they reach a
// command line, and credentials embedded in a URL never appear in logs.
package gitsync

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/core/ports/driven"
	"github.com/custodia-labs/repovec/internal/logger"
)

// Ensure Syncer implements the port.
var _ driven.RepoSyncer = (*Syncer)(nil)

var (
	// dangerousChars could enable command injection through a URL.
	dangerousChars = regexp.MustCompile("[;&|$`\\n\\r\\\\]")

	// commitPattern matches a full 40-hex commit id.
	commitPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)
)

// Syncer clones or fast-forwards repositories under a data root.
type Syncer struct {
	// dataRoot bounds every local path this syncer will touch.
	dataRoot string
}

// New creates a syncer confined to dataRoot.
func New(dataRoot string) (*Syncer, error) {
	abs, err := filepath.Abs(dataRoot)
	if err != nil {
		return nil, domain.E(domain.ErrConfigInvalid, "gitsync", err)
	}
	return &Syncer{dataRoot: abs}, nil
}

// Materialize clones url into localPath, or fetches and fast-forwards an
// existing work tree, then checks out reference. It returns the resolved
// 40-hex commit id.
func (s *Syncer) Materialize(ctx context.Context, rawURL, reference, localPath string) (string, error) {
	if err := validateURL(rawURL); err != nil {
		return "", err
	}
	abs, err := s.confine(localPath)
	if err != nil {
		return "", err
	}

	display := domain.RedactURL(rawURL)

	if isWorkTree(abs) {
		logger.Info("gitsync: fetching %s", display)
		if err := s.fetch(ctx, abs, rawURL, display); err != nil {
			return "", err
		}
	} else {
		logger.Info("gitsync: cloning %s", display)
		if err := s.clone(ctx, abs, rawURL, display); err != nil {
			return "", err
		}
	}

	if reference == "" {
		reference = "HEAD"
	} else if err := s.checkout(ctx, abs, reference, display); err != nil {
		return "", err
	}

	if reference != "HEAD" && !isCommitish(reference) {
		// A branch checkout may lag the remote; fast-forward it.
		if err := s.fastForward(ctx, abs, reference, display); err != nil {
			return "", err
		}
	}

	commit, err := s.revParse(ctx, abs)
	if err != nil {
		return "", err
	}
	logger.Info("gitsync: %s at %s", display, commit[:8])
	return commit, nil
}

// confine resolves localPath and rejects anything outside the data root.
func (s *Syncer) confine(localPath string) (string, error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", domain.E(domain.ErrPathEscape, "gitsync", err)
	}
	if abs != s.dataRoot && !strings.HasPrefix(abs, s.dataRoot+string(os.PathSeparator)) {
		return "", domain.E(domain.ErrPathEscape, "gitsync",
			fmt.Errorf("local path %s is outside the data root", abs))
	}
	return abs, nil
}

func (s *Syncer) clone(ctx context.Context, dir, rawURL, display string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o700); err != nil {
		return domain.E(domain.ErrFileUnreadable, "clone", err).WithRepo(display)
	}
	if _, err := s.git(ctx, "", display, "clone", "--quiet", rawURL, dir); err != nil {
		return err
	}
	return nil
}

func (s *Syncer) fetch(ctx context.Context, dir, rawURL, display string) error {
	// Re-point origin in case the URL gained or lost credentials.
	if _, err := s.git(ctx, dir, display, "remote", "set-url", "origin", rawURL); err != nil {
		return err
	}
	if _, err := s.git(ctx, dir, display, "fetch", "--quiet", "--tags", "origin"); err != nil {
		return err
	}
	return nil
}

// checkout moves the work tree to reference: a branch, tag, or commit.
func (s *Syncer) checkout(ctx context.Context, dir, reference, display string) error {
	if dangerousChars.MatchString(reference) || strings.HasPrefix(reference, "-") {
		return domain.E(domain.ErrConfigInvalid, "checkout",
			fmt.Errorf("invalid reference %q", reference)).WithRepo(display)
	}
	if _, err := s.git(ctx, dir, display, "checkout", "--quiet", reference); err != nil {
		return err
	}
	return nil
}

// fastForward merges origin/<branch> into the local branch, refusing any
// merge that is not a fast-forward.
func (s *Syncer) fastForward(ctx context.Context, dir, branch, display string) error {
	out, err := s.git(ctx, dir, display, "rev-parse", "--verify", "--quiet", "origin/"+branch)
	if err != nil || strings.TrimSpace(out) == "" {
		// Tag or detached reference; nothing to fast-forward.
		return nil
	}
	if _, err := s.git(ctx, dir, display, "merge", "--ff-only", "--quiet", "origin/"+branch); err != nil {
		return domain.E(domain.ErrSyncConflict, "fast-forward",
			fmt.Errorf("branch %s diverged from origin", branch)).WithRepo(display)
	}
	return nil
}

func (s *Syncer) revParse(ctx context.Context, dir string) (string, error) {
	out, err := s.git(ctx, dir, "", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	commit := strings.TrimSpace(out)
	if !commitPattern.MatchString(commit) {
		return "", domain.E(domain.ErrInternal, "rev-parse",
			fmt.Errorf("unexpected rev-parse output %q", commit))
	}
	return commit, nil
}

// git runs one git command and classifies failures. Stderr is scanned for
// authentication and conflict markers; the raw URL never reaches a log.
func (s *Syncer) git(ctx context.Context, dir, display string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", domain.E(domain.ErrCancelled, "git "+args[0], ctx.Err()).WithRepo(display)
		}
		return "", classify(args[0], display, stderr.String())
	}
	return stdout.String(), nil
}

// classify maps git stderr output to a domain error kind.
func classify(op, display, stderr string) error {
	msg := strings.ToLower(stderr)
	redacted := redactLine(stderr)
	switch {
	case strings.Contains(msg, "authentication failed"),
		strings.Contains(msg, "could not read username"),
		strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "403"):
		return domain.E(domain.ErrUnauthorized, op, fmt.Errorf("%s", redacted)).WithRepo(display)
	case strings.Contains(msg, "not possible to fast-forward"),
		strings.Contains(msg, "diverg"),
		strings.Contains(msg, "would be overwritten"):
		return domain.E(domain.ErrSyncConflict, op, fmt.Errorf("%s", redacted)).WithRepo(display)
	default:
		return domain.E(domain.ErrSyncConflict, op, fmt.Errorf("git %s failed: %s", op, redacted)).WithRepo(display)
	}
}

// redactLine strips credential userinfo from any URL appearing in text.
var urlCredentials = regexp.MustCompile(`(https?://)[^/@\s]+@`)

func redactLine(text string) string {
	return strings.TrimSpace(urlCredentials.ReplaceAllString(text, "$1"))
}

// validateURL rejects URLs that could smuggle shell metacharacters or
// flags into the git command line.
func validateURL(rawURL string) error {
	if rawURL == "" {
		return domain.E(domain.ErrConfigInvalid, "gitsync", fmt.Errorf("repository URL is empty"))
	}
	if dangerousChars.MatchString(rawURL) || strings.HasPrefix(rawURL, "-") {
		return domain.E(domain.ErrConfigInvalid, "gitsync",
			fmt.Errorf("repository URL contains invalid characters"))
	}
	switch {
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return domain.E(domain.ErrConfigInvalid, "gitsync", err)
		}
		if parsed.Host == "" {
			return domain.E(domain.ErrConfigInvalid, "gitsync", fmt.Errorf("repository URL missing host"))
		}
		return nil
	case strings.HasPrefix(rawURL, "ssh://"), strings.HasPrefix(rawURL, "git@"),
		strings.HasPrefix(rawURL, "file://"):
		return nil
	default:
		return domain.E(domain.ErrConfigInvalid, "gitsync",
			fmt.Errorf("unsupported repository URL scheme"))
	}
}

// isWorkTree reports whether dir already contains a git work tree.
func isWorkTree(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info.IsDir()
}

// isCommitish reports whether reference looks like a commit id rather
// than a branch or tag name.
func isCommitish(reference string) bool {
	if len(reference) < 7 || len(reference) > 40 {
		return false
	}
	for _, c := range reference {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
