// Package cli implements the repovec command-line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/repovec/internal/adapters/driven/config/file"
	"github.com/custodia-labs/repovec/internal/adapters/driven/embedding/local"
	"github.com/custodia-labs/repovec/internal/adapters/driven/embedding/remote"
	"github.com/custodia-labs/repovec/internal/adapters/driven/gitsync"
	registryfile "github.com/custodia-labs/repovec/internal/adapters/driven/registry/file"
	"github.com/custodia-labs/repovec/internal/adapters/driven/vectorstore/sqlite"
	"github.com/custodia-labs/repovec/internal/connectors/gitrepo"
	"github.com/custodia-labs/repovec/internal/core/ports/driven"
	"github.com/custodia-labs/repovec/internal/core/services"
	"github.com/custodia-labs/repovec/internal/logger"
	"github.com/custodia-labs/repovec/internal/metrics"
)

// Wired services, built once in setup and shared by the commands.
var (
	configStore       *configfile.Store
	vectorStore       driven.VectorStore
	registry          driven.RepositoryRegistry
	embedder          driven.EmbeddingService
	fallbackEmbedder  driven.EmbeddingService
	ingestService     *services.IngestOrchestrator
	searchService     *services.SearchService
	repositoryService *services.RepositoryService
	exporter          *services.Exporter
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "repovec",
	Short: "Ingest Git repositories into a local vector store for RAG",
	Long: `repovec syncs Git repositories, normalizes their documents, attaches
embeddings, and stores the rows in a local vector table. The result is
served to AI assistants over MCP and to humans over this CLI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(flagVerbose)
		return setup()
	},
}

// Execute runs the CLI and exits with the mapped code on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		exitWith(err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file (default: $HOME/.repovec/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging to stderr")
}

// setup loads configuration and wires every adapter and service.
func setup() error {
	metrics.Register()

	path := flagConfig
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".repovec", "config.toml")
		}
	}
	cfg, err := configfile.Load(path)
	if err != nil {
		return err
	}
	configStore = configfile.NewStore(cfg, path)

	store, err := sqlite.Open(sqlite.Config{
		Dir:        cfg.Database.URI,
		TableName:  cfg.Database.TableName,
		Dimensions: cfg.Database.EmbeddingDim,
		BatchSize:  cfg.Database.BatchSize,
	})
	if err != nil {
		return err
	}
	vectorStore = store

	registry, err = registryfile.New(cfg.DataRoot)
	if err != nil {
		return err
	}

	syncer, err := gitsync.New(cfg.DataRoot)
	if err != nil {
		return err
	}

	fallbackEmbedder = local.New(cfg.Database.EmbeddingDim)
	if cfg.Embedding.Provider == "remote" {
		embedder, err = remote.NewEmbeddingService(remote.Config{
			BaseURL:    cfg.Embedding.APIURL,
			APIKey:     cfg.APIKey(),
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Database.EmbeddingDim,
			BatchSize:  cfg.Embedding.BatchSize,
		})
		if err != nil {
			return err
		}
	} else {
		embedder = fallbackEmbedder
	}

	ingestService = services.NewIngestOrchestrator(
		syncer, vectorStore, registry, embedder, fallbackEmbedder,
		pipelineOptions{}, newScanner,
	)
	searchService = services.NewSearchService(vectorStore, embedder, fallbackEmbedder)
	repositoryService = services.NewRepositoryService(registry, vectorStore)
	exporter = services.NewExporter(vectorStore, registry)
	return nil
}

// pipelineOptions adapts the config store to the orchestrator's
// ConfigProvider port, taking a fresh snapshot per run.
type pipelineOptions struct{}

func (pipelineOptions) PipelineOptions() driven.PipelineOptions {
	cfg := configStore.Get()
	return driven.PipelineOptions{
		ReposDir:       reposDir(cfg),
		DefaultBranch:  cfg.Repository.Branch,
		Workers:        cfg.Pipeline.ParallelWorkers,
		SkipPatterns:   cfg.Pipeline.SkipPatterns,
		IncludeExts:    cfg.Pipeline.IncludeExts,
		MaxFileBytes:   cfg.MaxFileBytes(),
		StoreBatchSize: cfg.Database.BatchSize,
		EmbedBatchSize: cfg.Embedding.BatchSize,
		ForceReprocess: cfg.Pipeline.ForceReprocess,
		DegradeToLocal: cfg.Embedding.DegradeToLocal,
	}
}

func reposDir(cfg configfile.Config) string {
	if cfg.Repository.LocalPath != "" {
		return cfg.Repository.LocalPath
	}
	return filepath.Join(cfg.DataRoot, "repos")
}

// newScanner builds the file scanner for one run.
func newScanner(opts driven.PipelineOptions, subdirs []string) services.WorkScanner {
	return gitrepo.NewScanner(gitrepo.ScanOptions{
		IncludeExts:  opts.IncludeExts,
		ExcludeGlobs: opts.SkipPatterns,
		MaxBytes:     opts.MaxFileBytes,
		Subdirs:      subdirs,
	})
}

// defaultSourceURL resolves the repository argument for commands that
// fall back to the configured source.
func defaultSourceURL(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg := configStore.Get()
	if cfg.Repository.SourceURL == "" {
		return "", fmt.Errorf("no repository URL given and repository.source_url is not configured")
	}
	return cfg.Repository.SourceURL, nil
}
