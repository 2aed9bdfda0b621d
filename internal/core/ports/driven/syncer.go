package driven

import "context"

// RepoSyncer materializes a remote repository at a reference in a local
// work tree.
type RepoSyncer interface {
	// Materialize clones url into localPath, or fast-forwards an
	// existing work tree, then checks out reference (branch, tag, or
	// commit id). It returns the resolved 40-hex commit.
	//
	// Divergence that cannot be fast-forwarded fails with
	// domain.ErrSyncConflict. A localPath outside the data root fails
	// with domain.ErrPathEscape.
	Materialize(ctx context.Context, url, reference, localPath string) (string, error)
}
