// Package file loads repovec configuration from a TOML file with
// environment overrides. The loaded config sits behind a read-write lock
// and is hot-reloaded when the file changes on disk.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/logger"
)

// EnvPrefix is the prefix for environment overrides:
// REPOVEC_<SECTION>_<KEY>, e.g. REPOVEC_DATABASE_BATCH_SIZE.
const EnvPrefix = "REPOVEC"

// Config is the effective configuration. Fields mirror the TOML sections.
type Config struct {
	DataRoot string `toml:"data_root"`

	Repository RepositoryConfig `toml:"repository"`
	Database   DatabaseConfig   `toml:"database"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
}

// RepositoryConfig describes the default source repository.
type RepositoryConfig struct {
	SourceURL   string `toml:"source_url"`
	LocalPath   string `toml:"local_path"`
	Branch      string `toml:"branch"`
	SyncOnStart bool   `toml:"sync_on_start"`
}

// DatabaseConfig describes the vector table.
type DatabaseConfig struct {
	URI          string `toml:"uri"`
	TableName    string `toml:"table_name"`
	BatchSize    int    `toml:"batch_size"`
	EmbeddingDim int    `toml:"embedding_dim"`
}

// PipelineConfig bounds the ingestion pipeline.
type PipelineConfig struct {
	ParallelWorkers int      `toml:"parallel_workers"`
	SkipPatterns    []string `toml:"skip_patterns"`
	ForceReprocess  bool     `toml:"force_reprocess"`
	MaxFileSizeMB   int      `toml:"max_file_size_mb"`
	IncludeExts     []string `toml:"include_extensions"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider       string `toml:"provider"` // "remote" or "local"
	APIURL         string `toml:"api_url"`
	APIKeyEnv      string `toml:"api_key_env"`
	Model          string `toml:"model"`
	BatchSize      int    `toml:"batch_size"`
	DegradeToLocal bool   `toml:"degrade_to_local"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataRoot := filepath.Join(home, ".repovec")
	return Config{
		DataRoot: dataRoot,
		Repository: RepositoryConfig{
			LocalPath:   filepath.Join(dataRoot, "repos"),
			Branch:      "main",
			SyncOnStart: true,
		},
		Database: DatabaseConfig{
			URI:          filepath.Join(dataRoot, "vectors"),
			TableName:    "documents",
			BatchSize:    100,
			EmbeddingDim: 384,
		},
		Pipeline: PipelineConfig{
			ParallelWorkers: runtime.NumCPU(),
			SkipPatterns:    []string{".git/*", "node_modules/*"},
			MaxFileSizeMB:   10,
		},
		Embedding: EmbeddingConfig{
			Provider:       "local",
			Model:          "text-embedding-3-small",
			BatchSize:      16,
			DegradeToLocal: true,
		},
	}
}

// Load reads path (when it exists), applies environment overrides, and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			logger.Debug("config: %s not found, using defaults", path)
		case err != nil:
			return cfg, domain.E(domain.ErrConfigInvalid, "config", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, domain.E(domain.ErrConfigInvalid, "config", err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays REPOVEC_* environment variables.
func applyEnv(cfg *Config) {
	envString(&cfg.DataRoot, "DATA_ROOT")

	envString(&cfg.Repository.SourceURL, "REPOSITORY_SOURCE_URL")
	envString(&cfg.Repository.LocalPath, "REPOSITORY_LOCAL_PATH")
	envString(&cfg.Repository.Branch, "REPOSITORY_BRANCH")
	envBool(&cfg.Repository.SyncOnStart, "REPOSITORY_SYNC_ON_START")

	envString(&cfg.Database.URI, "DATABASE_URI")
	envString(&cfg.Database.TableName, "DATABASE_TABLE_NAME")
	envInt(&cfg.Database.BatchSize, "DATABASE_BATCH_SIZE")
	envInt(&cfg.Database.EmbeddingDim, "DATABASE_EMBEDDING_DIM")

	envInt(&cfg.Pipeline.ParallelWorkers, "PIPELINE_PARALLEL_WORKERS")
	envBool(&cfg.Pipeline.ForceReprocess, "PIPELINE_FORCE_REPROCESS")
	envInt(&cfg.Pipeline.MaxFileSizeMB, "PIPELINE_MAX_FILE_SIZE_MB")

	envString(&cfg.Embedding.Provider, "EMBEDDING_PROVIDER")
	envString(&cfg.Embedding.APIURL, "EMBEDDING_API_URL")
	envString(&cfg.Embedding.APIKeyEnv, "EMBEDDING_API_KEY_ENV")
	envString(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	envInt(&cfg.Embedding.BatchSize, "EMBEDDING_BATCH_SIZE")
	envBool(&cfg.Embedding.DegradeToLocal, "EMBEDDING_DEGRADE_TO_LOCAL")
}

func envString(target *string, key string) {
	if v, ok := os.LookupEnv(EnvPrefix + "_" + key); ok {
		*target = v
	}
}

func envInt(target *int, key string) {
	if v, ok := os.LookupEnv(EnvPrefix + "_" + key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func envBool(target *bool, key string) {
	if v, ok := os.LookupEnv(EnvPrefix + "_" + key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Pipeline.ParallelWorkers <= 0 {
		return domain.E(domain.ErrConfigInvalid, "config",
			fmt.Errorf("pipeline.parallel_workers must be greater than 0"))
	}
	if c.Database.BatchSize <= 0 {
		return domain.E(domain.ErrConfigInvalid, "config",
			fmt.Errorf("database.batch_size must be greater than 0"))
	}
	if c.Database.EmbeddingDim <= 0 {
		return domain.E(domain.ErrConfigInvalid, "config",
			fmt.Errorf("database.embedding_dim must be greater than 0"))
	}
	if c.Pipeline.MaxFileSizeMB <= 0 {
		return domain.E(domain.ErrConfigInvalid, "config",
			fmt.Errorf("pipeline.max_file_size_mb must be greater than 0"))
	}
	switch c.Embedding.Provider {
	case "local":
	case "remote":
		if c.Embedding.APIURL == "" {
			return domain.E(domain.ErrConfigInvalid, "config",
				fmt.Errorf("embedding.api_url is required for the remote provider"))
		}
	default:
		return domain.E(domain.ErrConfigInvalid, "config",
			fmt.Errorf("embedding.provider must be \"remote\" or \"local\""))
	}
	return nil
}

// APIKey resolves the embedding API key from the configured environment
// variable. Empty when unset.
func (c Config) APIKey() string {
	if c.Embedding.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Embedding.APIKeyEnv)
}

// MaxFileBytes converts the size cap to bytes.
func (c Config) MaxFileBytes() int64 {
	return int64(c.Pipeline.MaxFileSizeMB) * 1024 * 1024
}

// Redacted returns a copy safe for display: secrets are masked, and only
// the name of the key-holding variable is shown.
func (c Config) Redacted() Config {
	out := c
	out.Repository.SourceURL = domain.RedactURL(c.Repository.SourceURL)
	return out
}

// Store wraps the active Config behind a read-write lock so requests see
// a consistent snapshot while reloads swap the value underneath.
type Store struct {
	mu   sync.RWMutex
	cfg  Config
	path string
}

// NewStore creates a store holding cfg, loaded from path.
func NewStore(cfg Config, path string) *Store {
	return &Store{cfg: cfg, path: path}
}

// Get returns a snapshot of the active configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set replaces the active configuration.
func (s *Store) Set(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Path returns the configuration file path, if any.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the file and swaps the configuration when it validates.
// The embedding dimension is pinned: once a table exists its dimension
// cannot change, so a reload that tries is rejected.
func (s *Store) Reload() error {
	next, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if next.Database.EmbeddingDim != s.cfg.Database.EmbeddingDim {
		return domain.E(domain.ErrConfigInvalid, "reload",
			fmt.Errorf("database.embedding_dim cannot change at runtime"))
	}
	s.cfg = next
	return nil
}

// RedactedTOML renders the redacted configuration for display.
func (c Config) RedactedTOML() (string, error) {
	data, err := toml.Marshal(c.Redacted())
	if err != nil {
		return "", domain.E(domain.ErrInternal, "config", err)
	}
	return string(data), nil
}

// SectionKey formats the canonical dotted name of a config key, used in
// error messages.
func SectionKey(section, key string) string {
	return strings.ToLower(section) + "." + strings.ToLower(key)
}
