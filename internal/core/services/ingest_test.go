package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/repovec/internal/adapters/driven/embedding/local"
	registryfile "github.com/custodia-labs/repovec/internal/adapters/driven/registry/file"
	"github.com/custodia-labs/repovec/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/repovec/internal/connectors/gitrepo"
	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/core/ports/driven"
)

const testRepoURL = "https://example.com/test-repo"
const testCommit = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

// stubSyncer pretends the work tree is already materialized.
type stubSyncer struct {
	commit string
	err    error
	calls  int
}

func (s *stubSyncer) Materialize(_ context.Context, _, _, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.commit, nil
}

// staticOptions is a fixed ConfigProvider.
type staticOptions struct {
	opts driven.PipelineOptions
}

func (s staticOptions) PipelineOptions() driven.PipelineOptions {
	return s.opts
}

// failingEmbedder always reports the provider as unreachable.
type failingEmbedder struct {
	driven.EmbeddingService
}

func (f failingEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, domain.E(domain.ErrEmbeddingUnavailable, "embed", errors.New("connection refused"))
}

func (f failingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, domain.E(domain.ErrEmbeddingUnavailable, "embed", errors.New("connection refused"))
}

// harness wires an orchestrator over a fixture tree in a temp dir.
type harness struct {
	orch     *IngestOrchestrator
	store    *memory.Store
	registry *registryfile.Registry
	syncer   *stubSyncer
	reposDir string
	treeDir  string
}

func newHarness(t *testing.T, opts driven.PipelineOptions) *harness {
	t.Helper()
	reposDir := t.TempDir()
	opts.ReposDir = reposDir
	if opts.DefaultBranch == "" {
		opts.DefaultBranch = "main"
	}
	if opts.Workers == 0 {
		opts.Workers = 2
	}
	if opts.EmbedBatchSize == 0 {
		opts.EmbedBatchSize = 16
	}
	if opts.StoreBatchSize == 0 {
		opts.StoreBatchSize = 100
	}

	store := memory.New("documents", 64)
	reg, err := registryfile.New(t.TempDir())
	require.NoError(t, err)
	embedder := local.New(64)
	syncer := &stubSyncer{commit: testCommit}

	orch := NewIngestOrchestrator(syncer, store, reg, embedder, embedder,
		staticOptions{opts}, func(o driven.PipelineOptions, subdirs []string) WorkScanner {
			return gitrepo.NewScanner(gitrepo.ScanOptions{
				IncludeExts:  o.IncludeExts,
				ExcludeGlobs: o.SkipPatterns,
				MaxBytes:     o.MaxFileBytes,
				Subdirs:      subdirs,
			})
		})

	return &harness{
		orch:     orch,
		store:    store,
		registry: reg,
		syncer:   syncer,
		reposDir: reposDir,
		treeDir:  filepath.Join(reposDir, domain.RepoName(testRepoURL)),
	}
}

func (h *harness) write(t *testing.T, rel string, content []byte) {
	t.Helper()
	path := filepath.Join(h.treeDir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

// scenarioTree lays down the S1 fixture: two ingestible files, one
// oversized binary, one excluded markdown file.
func scenarioTree(t *testing.T, h *harness) {
	h.write(t, "README.md", []byte("# Test Repo\n\nA readme.\n"))
	h.write(t, "src/a.txt", []byte("text"))
	h.write(t, "big.bin", make([]byte, 2048))
	h.write(t, "node_modules/x.md", []byte("# dep readme\n"))
}

func scenarioOptions() driven.PipelineOptions {
	return driven.PipelineOptions{
		SkipPatterns: []string{"node_modules/*"},
		MaxFileBytes: 1024,
	}
}

func TestIngest_FreshRepository(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	scenarioTree(t, h)
	ctx := context.Background()

	report, err := h.orch.Ingest(ctx, domain.IngestSpec{URL: testRepoURL}, nil)
	require.NoError(t, err)

	assert.Equal(t, testCommit, report.Commit)
	assert.Equal(t, 2, report.FilesInserted)
	assert.Equal(t, 2, report.FilesSkipped)
	assert.Empty(t, report.Errors)

	reasons := map[string]domain.SkipReason{}
	for _, skip := range report.Skips {
		reasons[skip.RelativePath] = skip.Reason
	}
	assert.Equal(t, domain.SkipTooLarge, reasons["big.bin"])
	assert.Equal(t, domain.SkipExcluded, reasons["node_modules/x.md"])

	n, err := h.store.Count(ctx, domain.SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Every row carries the repository provenance.
	all, err := h.store.All(ctx)
	require.NoError(t, err)
	for _, doc := range all {
		assert.Equal(t, testRepoURL, doc.RepositoryURL)
		assert.Equal(t, domain.HashContent(doc.Content), doc.ID)
		assert.Len(t, doc.Embedding, 64)
	}

	entry, err := h.registry.Get(ctx, testRepoURL)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.FileCount)
	assert.Equal(t, testCommit, entry.ResolvedCommit)
	assert.Positive(t, entry.IngestedAt)
}

func TestIngest_ReplayIsIdempotent(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	scenarioTree(t, h)
	ctx := context.Background()

	first, err := h.orch.Ingest(ctx, domain.IngestSpec{URL: testRepoURL}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, first.FilesInserted)

	firstEntry, err := h.registry.Get(ctx, testRepoURL)
	require.NoError(t, err)

	second, err := h.orch.Ingest(ctx, domain.IngestSpec{URL: testRepoURL}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, second.FilesInserted, "unchanged files skip via fingerprint")
	assert.Empty(t, second.Errors)

	n, err := h.store.Count(ctx, domain.SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "no duplicate rows")

	secondEntry, err := h.registry.Get(ctx, testRepoURL)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, secondEntry.IngestedAt, firstEntry.IngestedAt)
}

func TestIngest_ForceReplacesChangedFile(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	scenarioTree(t, h)
	ctx := context.Background()

	_, err := h.orch.Ingest(ctx, domain.IngestSpec{URL: testRepoURL}, nil)
	require.NoError(t, err)

	var oldID string
	all, err := h.store.All(ctx)
	require.NoError(t, err)
	for _, doc := range all {
		if doc.RelativePath == "README.md" {
			oldID = doc.ID
		}
	}
	require.NotEmpty(t, oldID)

	h.write(t, "README.md", []byte("# Title\n\nBody\n"))
	report, err := h.orch.Ingest(ctx, domain.IngestSpec{URL: testRepoURL, Force: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.FilesInserted)

	n, err := h.store.Count(ctx, domain.SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "stale row replaced, not duplicated")

	all, err = h.store.All(ctx)
	require.NoError(t, err)
	for _, doc := range all {
		if doc.RelativePath == "README.md" {
			assert.NotEqual(t, oldID, doc.ID, "changed content gets a new id")
		}
	}
}

func TestIngest_CascadeRemove(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	scenarioTree(t, h)
	ctx := context.Background()

	_, err := h.orch.Ingest(ctx, domain.IngestSpec{URL: testRepoURL}, nil)
	require.NoError(t, err)

	repoSvc := NewRepositoryService(h.registry, h.store)
	result, err := repoSvc.Remove(ctx, testRepoURL, true)
	require.NoError(t, err)
	assert.NotNil(t, result.Removed)
	assert.Equal(t, int64(2), result.DocumentsDeleted)

	entries, err := h.registry.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	n, err := h.store.Count(ctx, domain.SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestIngest_SearchRecall(t *testing.T) {
	h := newHarness(t, driven.PipelineOptions{MaxFileBytes: 1024})
	h.write(t, "one.txt", []byte("alpha beta"))
	h.write(t, "two.txt", []byte("beta gamma"))
	h.write(t, "three.txt", []byte("delta epsilon"))
	ctx := context.Background()

	_, err := h.orch.Ingest(ctx, domain.IngestSpec{URL: testRepoURL}, nil)
	require.NoError(t, err)

	embedder := local.New(64)
	search := NewSearchService(h.store, embedder, nil)
	results, err := search.Search(ctx, "beta", 2, domain.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	got := map[string]bool{}
	for _, r := range results {
		got[r.Document.RelativePath] = true
	}
	assert.True(t, got["one.txt"], "alpha beta shares the query token")
	assert.True(t, got["two.txt"], "beta gamma shares the query token")
}

func TestIngest_SyncFailureAborts(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	h.syncer.err = domain.E(domain.ErrSyncConflict, "fast-forward", errors.New("diverged"))

	_, err := h.orch.Ingest(context.Background(), domain.IngestSpec{URL: testRepoURL}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSyncConflict)

	entries, err := h.registry.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries, "failed ingests leave no registry entry")
}

func TestIngest_DimensionMismatchAborts(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	scenarioTree(t, h)

	// An embedder whose dimension disagrees with the table.
	wrong := local.New(32)
	h.orch.embedder = wrong

	_, err := h.orch.Ingest(context.Background(), domain.IngestSpec{URL: testRepoURL}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)
}

func TestIngest_DegradesToLocalFallback(t *testing.T) {
	opts := scenarioOptions()
	opts.DegradeToLocal = true
	h := newHarness(t, opts)
	scenarioTree(t, h)

	h.orch.embedder = failingEmbedder{local.New(64)}

	report, err := h.orch.Ingest(context.Background(), domain.IngestSpec{URL: testRepoURL}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.FilesInserted)
	assert.Empty(t, report.Errors)
}

func TestIngest_EmbeddingFailureWithoutDegrade(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	scenarioTree(t, h)

	h.orch.embedder = failingEmbedder{local.New(64)}

	report, err := h.orch.Ingest(context.Background(), domain.IngestSpec{URL: testRepoURL}, nil)
	require.NoError(t, err, "per-batch embedding failures do not abort the run")
	assert.Equal(t, 0, report.FilesInserted)
	assert.Len(t, report.Errors, 2, "both files land in the error report")
	for _, fe := range report.Errors {
		assert.Equal(t, "embedding_unavailable", fe.Code)
	}
}

func TestIngest_NonUTF8GoesToSkips(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	h.write(t, "ok.md", []byte("# fine\n"))
	h.write(t, "junk.md", []byte{0xff, 0xfe, 0x80})

	report, err := h.orch.Ingest(context.Background(), domain.IngestSpec{URL: testRepoURL}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesInserted)

	reasons := map[string]domain.SkipReason{}
	for _, skip := range report.Skips {
		reasons[skip.RelativePath] = skip.Reason
	}
	assert.Equal(t, domain.SkipNonText, reasons["junk.md"])
}

func TestIngest_LimitCapsRun(t *testing.T) {
	h := newHarness(t, driven.PipelineOptions{MaxFileBytes: 1024})
	h.write(t, "a.md", []byte("# a\n"))
	h.write(t, "b.md", []byte("# b\n"))
	h.write(t, "c.md", []byte("# c\n"))

	report, err := h.orch.Ingest(context.Background(), domain.IngestSpec{URL: testRepoURL, Limit: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.FilesInserted)
}

func TestIngest_ProgressEventsCoverLifecycle(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	scenarioTree(t, h)

	var states []domain.IngestState
	progress := func(p domain.Progress) {
		states = append(states, p.State)
	}

	_, err := h.orch.Ingest(context.Background(), domain.IngestSpec{URL: testRepoURL}, progress)
	require.NoError(t, err)

	assert.Contains(t, states, domain.StateSyncing)
	assert.Contains(t, states, domain.StateScanning)
	assert.Contains(t, states, domain.StateEmbedding)
	assert.Equal(t, domain.StateDone, states[len(states)-1])
}

func TestUpdate_ReingestsWithForce(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	scenarioTree(t, h)
	ctx := context.Background()

	_, err := h.orch.Ingest(ctx, domain.IngestSpec{URL: testRepoURL}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, h.syncer.calls)

	report, err := h.orch.Update(ctx, "test-repo", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.FilesInserted, "update forces reprocessing")
	assert.Equal(t, 2, h.syncer.calls)
}

func TestUpdate_UnknownRepository(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	_, err := h.orch.Update(context.Background(), "ghost", "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
