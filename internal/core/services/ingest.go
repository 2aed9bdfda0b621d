package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/core/ports/driven"
	"github.com/custodia-labs/repovec/internal/core/ports/driving"
	"github.com/custodia-labs/repovec/internal/logger"
	"github.com/custodia-labs/repovec/internal/metrics"
)

// Ensure IngestOrchestrator implements the interface.
var _ driving.IngestService = (*IngestOrchestrator)(nil)

// Progress cadence: whichever of these trips first emits an event.
const (
	progressEvery    = 100
	progressInterval = 2 * time.Second
)

// IngestOrchestrator drives sync → scan → build → embed → insert as a
// pipeline of bounded channels. Per-file failures land in the report;
// infrastructure failures abort the run.
type IngestOrchestrator struct {
	syncer   driven.RepoSyncer
	store    driven.VectorStore
	registry driven.RepositoryRegistry
	embedder driven.EmbeddingService
	fallback driven.EmbeddingService // optional degrade target
	config   driven.ConfigProvider
	builder  *DocumentBuilder
	scanners ScannerFactory
}

// ScannerFactory builds a scanner for one run. Injected so tests can
// observe the options a run computed.
type ScannerFactory func(opts driven.PipelineOptions, subdirs []string) WorkScanner

// WorkScanner is what the orchestrator needs from the file scanner.
type WorkScanner interface {
	Scan(root string) ([]domain.WorkItem, []domain.Skip, error)
}

// NewIngestOrchestrator wires the pipeline. fallback may be nil; it is
// only consulted when options enable degrade-to-local.
func NewIngestOrchestrator(
	syncer driven.RepoSyncer,
	store driven.VectorStore,
	registry driven.RepositoryRegistry,
	embedder driven.EmbeddingService,
	fallback driven.EmbeddingService,
	config driven.ConfigProvider,
	scanners ScannerFactory,
) *IngestOrchestrator {
	return &IngestOrchestrator{
		syncer:   syncer,
		store:    store,
		registry: registry,
		embedder: embedder,
		fallback: fallback,
		config:   config,
		builder:  NewDocumentBuilder(),
		scanners: scanners,
	}
}

// Ingest runs the full pipeline for spec.
func (o *IngestOrchestrator) Ingest(ctx context.Context, spec domain.IngestSpec, progress domain.ProgressFunc) (*domain.IngestReport, error) {
	metrics.Register()
	start := time.Now()
	runID := uuid.New().String()
	emit := newProgressEmitter(runID, progress)

	opts := o.config.PipelineOptions()
	if spec.Reference == "" {
		spec.Reference = opts.DefaultBranch
	}
	report := &domain.IngestReport{URL: spec.URL, Reference: spec.Reference}

	if o.embedder.Dimensions() != o.store.Dimensions() {
		return nil, domain.E(domain.ErrSchemaMismatch, "ingest",
			fmt.Errorf("embedder produces %d dimensions, table declares %d",
				o.embedder.Dimensions(), o.store.Dimensions())).WithRepo(spec.URL)
	}

	// Sync.
	emit.state(domain.StateSyncing, "materializing work tree")
	localPath := filepath.Join(opts.ReposDir, domain.RepoName(spec.URL))
	var commit string
	if spec.SkipSync {
		logger.Info("ingest: skipping sync for %s", domain.RedactURL(spec.URL))
		commit = "HEAD"
	} else {
		syncStart := time.Now()
		var err error
		commit, err = o.syncer.Materialize(ctx, spec.URL, spec.Reference, localPath)
		if err != nil {
			emit.state(domain.StateFailed, "sync failed")
			return nil, err
		}
		metrics.StageDuration.WithLabelValues("sync").Observe(time.Since(syncStart).Seconds())
	}
	report.Commit = commit

	// Scan.
	emit.state(domain.StateScanning, "enumerating files")
	scanStart := time.Now()
	scanner := o.scanners(opts, spec.Subdirs)
	items, skips, err := scanner.Scan(localPath)
	if err != nil {
		emit.state(domain.StateFailed, "scan failed")
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("scan").Observe(time.Since(scanStart).Seconds())
	metrics.FilesScanned.Add(float64(len(items)))
	report.Skips = append(report.Skips, skips...)

	// Fingerprint fast-path: unchanged files are skipped unread.
	force := spec.Force || opts.ForceReprocess
	if !force {
		prints, err := o.store.Fingerprints(ctx, spec.URL)
		if err != nil {
			return nil, err
		}
		kept := items[:0]
		for _, item := range items {
			if fp, ok := prints[item.RelativePath]; ok && fp.Matches(item) {
				report.Skips = append(report.Skips, domain.Skip{
					RelativePath: item.RelativePath,
					Reason:       domain.SkipUpToDate,
				})
				continue
			}
			kept = append(kept, item)
		}
		items = kept
	}

	if spec.Limit > 0 && len(items) > spec.Limit {
		logger.Info("ingest: limiting run to %d of %d files", spec.Limit, len(items))
		items = items[:spec.Limit]
	}

	for _, skip := range report.Skips {
		metrics.FilesSkipped.WithLabelValues(string(skip.Reason)).Inc()
	}

	// Build → embed → insert.
	emit.total(len(items))
	inserted, buildSkips, fileErrors, runErr := o.process(ctx, spec.URL, items, opts, emit)
	report.Skips = append(report.Skips, buildSkips...)
	report.FilesInserted = inserted
	report.Errors = fileErrors
	report.FilesSkipped = len(report.Skips)
	report.DurationMillis = time.Since(start).Milliseconds()
	metrics.FileErrors.Add(float64(len(fileErrors)))

	if runErr != nil {
		emit.state(domain.StateFailed, "ingest failed")
		return report, runErr
	}

	// Registry records the outcome.
	entry := domain.RepositoryEntry{
		URL:            spec.URL,
		Name:           domain.RepoName(spec.URL),
		Reference:      spec.Reference,
		ResolvedCommit: commit,
		Subdirs:        spec.Subdirs,
		FileCount:      inserted,
	}
	entry.Touch()
	if err := o.registry.Upsert(ctx, entry); err != nil {
		return report, err
	}

	emit.state(domain.StateDone,
		fmt.Sprintf("%d inserted, %d skipped, %d errors", inserted, report.FilesSkipped, len(fileErrors)))
	logger.Info("ingest: %s done, %d inserted, %d skipped, %d errors in %dms",
		domain.RedactURL(spec.URL), inserted, report.FilesSkipped, len(fileErrors), report.DurationMillis)
	return report, nil
}

// process fans items over the builder pool, batches documents through the
// embedder, and inserts. Returns documents inserted, builder-level skips,
// per-file errors, and the first infrastructure error.
func (o *IngestOrchestrator) process(
	ctx context.Context,
	repoURL string,
	items []domain.WorkItem,
	opts driven.PipelineOptions,
	emit *progressEmitter,
) (int, []domain.Skip, []domain.FileError, error) {
	if len(items) == 0 {
		return 0, nil, nil, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	embedBatch := opts.EmbedBatchSize
	if embedBatch <= 0 {
		embedBatch = 16
	}

	// Bounded channels: a slow embedder backpressures the builders, and
	// through them the scanner's feed.
	itemCh := make(chan domain.WorkItem)
	docCh := make(chan domain.Document, 4*embedBatch)

	var mu sync.Mutex
	var fileErrors []domain.FileError
	var buildSkips []domain.Skip

	recordError := func(path string, err error) {
		mu.Lock()
		defer mu.Unlock()
		fileErrors = append(fileErrors, domain.FileError{
			RelativePath: path,
			Code:         domain.CodeFor(err),
			Message:      err.Error(),
		})
	}
	recordSkip := func(skip domain.Skip) {
		mu.Lock()
		defer mu.Unlock()
		buildSkips = append(buildSkips, skip)
		metrics.FilesSkipped.WithLabelValues(string(skip.Reason)).Inc()
	}

	// Builder pool (CPU-bound: read, decode, normalize, hash).
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				doc, skip, err := o.builder.Build(item, repoURL)
				switch {
				case err != nil:
					recordError(item.RelativePath, err)
				case skip != nil:
					recordSkip(*skip)
				default:
					select {
					case docCh <- *doc:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	// Feeder.
	go func() {
		defer close(itemCh)
		for _, item := range items {
			select {
			case itemCh <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(docCh)
	}()

	// Consumer: batch, embed, insert.
	emit.state(domain.StateEmbedding, "embedding documents")
	inserted := 0
	embedder := o.embedder
	degraded := false

	batch := make([]domain.Document, 0, embedBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Content
		}

		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err != nil && !degraded && opts.DegradeToLocal && o.fallback != nil &&
			errors.Is(err, domain.ErrEmbeddingUnavailable) {
			logger.Warn("ingest: embedding provider unavailable, degrading to local fallback")
			embedder = o.fallback
			degraded = true
			vecs, err = embedder.EmbedBatch(ctx, texts)
		}
		if err != nil {
			if errors.Is(err, domain.ErrCancelled) {
				return err
			}
			// The batch is lost; its files go to the report and the run
			// continues while the store stays reachable.
			for i := range batch {
				recordError(batch[i].RelativePath, err)
			}
			batch = batch[:0]
			return nil
		}
		for i := range batch {
			batch[i].Embedding = vecs[i]
		}

		emit.state(domain.StateWriting, "writing batch")
		// A batch already handed to the store completes even when the
		// run is being cancelled, so rows are never half-written.
		if err := o.store.Insert(context.WithoutCancel(ctx), batch); err != nil {
			return err
		}
		inserted += len(batch)
		metrics.DocumentsInserted.Add(float64(len(batch)))
		emit.progress(inserted)
		batch = batch[:0]
		emit.state(domain.StateEmbedding, "embedding documents")
		return nil
	}

	var runErr error
	for doc := range docCh {
		// Content travels in the batch; the loop variable is dropped once
		// appended, keeping memory per work item.
		batch = append(batch, doc)
		if len(batch) >= embedBatch {
			if err := flush(); err != nil {
				runErr = err
				break
			}
		}
		if ctx.Err() != nil {
			runErr = domain.E(domain.ErrCancelled, "ingest", ctx.Err())
			break
		}
	}
	if runErr == nil {
		if err := flush(); err != nil {
			runErr = err
		}
	}
	if runErr == nil && ctx.Err() != nil {
		runErr = domain.E(domain.ErrCancelled, "ingest", ctx.Err())
	}

	// Drain so the builder pool can exit if we bailed early.
	if runErr != nil {
		go func() {
			for range docCh { //nolint:revive
			}
		}()
	}
	wg.Wait()

	sort.Slice(fileErrors, func(i, j int) bool {
		return fileErrors[i].RelativePath < fileErrors[j].RelativePath
	})
	sort.Slice(buildSkips, func(i, j int) bool {
		return buildSkips[i].RelativePath < buildSkips[j].RelativePath
	})
	return inserted, buildSkips, fileErrors, runErr
}

// Update re-ingests a registered repository with force semantics.
func (o *IngestOrchestrator) Update(ctx context.Context, identifier, newReference string, progress domain.ProgressFunc) (*domain.IngestReport, error) {
	entry, err := o.registry.Get(ctx, identifier)
	if err != nil {
		return nil, err
	}
	reference := newReference
	if reference == "" {
		reference = entry.Reference
	}
	return o.Ingest(ctx, domain.IngestSpec{
		URL:       entry.URL,
		Reference: reference,
		Subdirs:   entry.Subdirs,
		Force:     true,
	}, progress)
}

// progressEmitter throttles progress callbacks to the configured cadence.
type progressEmitter struct {
	mu        sync.Mutex
	fn        domain.ProgressFunc
	runID     string
	current   domain.IngestState
	totalN    int
	lastCount int
	lastAt    time.Time
}

func newProgressEmitter(runID string, fn domain.ProgressFunc) *progressEmitter {
	return &progressEmitter{fn: fn, runID: runID, lastAt: time.Now()}
}

// state always emits: transitions are rare and callers want them all.
func (e *progressEmitter) state(state domain.IngestState, message string) {
	e.mu.Lock()
	e.current = state
	processed := e.lastCount
	total := e.totalN
	e.mu.Unlock()
	if e.fn != nil {
		e.fn(domain.Progress{RunID: e.runID, State: state, Processed: processed, Total: total, Message: message})
	}
}

func (e *progressEmitter) total(n int) {
	e.mu.Lock()
	e.totalN = n
	e.mu.Unlock()
}

// progress emits when 100 documents or two seconds have passed since the
// previous event, whichever comes first.
func (e *progressEmitter) progress(processed int) {
	e.mu.Lock()
	due := processed-e.lastCount >= progressEvery || time.Since(e.lastAt) >= progressInterval
	if due {
		e.lastCount = processed
		e.lastAt = time.Now()
	}
	state := e.current
	total := e.totalN
	e.mu.Unlock()
	if due && e.fn != nil {
		e.fn(domain.Progress{
			RunID:     e.runID,
			State:     state,
			Processed: processed,
			Total:     total,
			Message:   fmt.Sprintf("%d/%d documents", processed, total),
		})
	}
}
