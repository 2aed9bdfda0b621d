// Package sqlite implements the vector store port on a local SQLite
// database. Embeddings are stored as little-endian float32 blobs; the
// declared embedding dimension is persisted in table metadata and must
// match on every reopen. Reads run concurrently under WAL; writes are
// serialized by a single writer mutex.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/repovec/internal/adapters/driven/vectorstore/sqlite/migrations"
	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/core/ports/driven"
	"github.com/custodia-labs/repovec/internal/vectormath"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

const (
	metaDimensions = "embedding_dim"
	metaTableName  = "table_name"

	// DefaultBatchSize bounds one insert transaction.
	DefaultBatchSize = 100
)

// Config holds sqlite store configuration.
type Config struct {
	// Dir is the database directory (the table "uri").
	Dir string

	// TableName labels the logical table in stats output.
	TableName string

	// Dimensions is the embedding dimension declared at creation.
	Dimensions int

	// BatchSize bounds rows per insert transaction.
	BatchSize int
}

// Store is a SQLite-backed vector store.
type Store struct {
	db         *sql.DB
	writeMu    sync.Mutex
	path       string
	tableName  string
	dimensions int
	batchSize  int
}

// Open creates or opens the store at cfg.Dir. An existing store whose
// declared dimension or table name disagrees with cfg fails with
// domain.ErrSchemaMismatch.
func Open(cfg Config) (*Store, error) {
	if cfg.Dimensions <= 0 {
		return nil, domain.E(domain.ErrConfigInvalid, "store",
			fmt.Errorf("embedding dimension must be positive"))
	}
	if cfg.TableName == "" {
		cfg.TableName = "documents"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, domain.E(domain.ErrStoreUnavailable, "store", err)
	}
	dbPath := filepath.Join(cfg.Dir, "vectors.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, domain.E(domain.ErrStoreUnavailable, "store", err)
	}

	s := &Store{
		db:         db,
		path:       dbPath,
		tableName:  cfg.TableName,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, domain.E(domain.ErrStoreUnavailable, "store", err)
	}
	if err := s.checkMeta(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate runs all pending *.up.sql migrations in version order.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// checkMeta verifies (or on first open records) the declared dimension
// and table name.
func (s *Store) checkMeta() error {
	stored, err := s.getMeta(metaDimensions)
	if err != nil {
		return domain.E(domain.ErrStoreUnavailable, "store", err)
	}
	if stored == "" {
		if err := s.setMeta(metaDimensions, strconv.Itoa(s.dimensions)); err != nil {
			return domain.E(domain.ErrStoreUnavailable, "store", err)
		}
		if err := s.setMeta(metaTableName, s.tableName); err != nil {
			return domain.E(domain.ErrStoreUnavailable, "store", err)
		}
		return nil
	}

	dim, err := strconv.Atoi(stored)
	if err != nil || dim != s.dimensions {
		return domain.E(domain.ErrSchemaMismatch, "store",
			fmt.Errorf("table declares embedding dimension %s, configuration wants %d", stored, s.dimensions))
	}
	name, err := s.getMeta(metaTableName)
	if err != nil {
		return domain.E(domain.ErrStoreUnavailable, "store", err)
	}
	if name != "" && name != s.tableName {
		return domain.E(domain.ErrSchemaMismatch, "store",
			fmt.Errorf("table is named %q, configuration wants %q", name, s.tableName))
	}
	return nil
}

func (s *Store) getMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM table_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *Store) setMeta(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO table_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Insert upserts docs in transactions of at most batchSize rows.
// Within-call duplicate ids collapse (last wins). An existing
// (id, repository_url) row is untouched; a row sharing
// (repository_url, relative_path) with a different id is replaced.
func (s *Store) Insert(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	for _, doc := range docs {
		if len(doc.Embedding) != s.dimensions {
			return domain.E(domain.ErrSchemaMismatch, "insert",
				fmt.Errorf("embedding has %d dimensions, table declares %d",
					len(doc.Embedding), s.dimensions)).WithPath(doc.RelativePath)
		}
	}

	// Collapse duplicates within the call, keeping the last occurrence.
	latest := make(map[string]int, len(docs))
	deduped := docs[:0:0]
	for _, doc := range docs {
		key := doc.ID + "\x00" + doc.RepositoryURL
		if idx, seen := latest[key]; seen {
			deduped[idx] = doc
			continue
		}
		latest[key] = len(deduped)
		deduped = append(deduped, doc)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for start := 0; start < len(deduped); start += s.batchSize {
		end := min(start+s.batchSize, len(deduped))
		if err := s.insertBatch(ctx, deduped[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertBatch(ctx context.Context, docs []domain.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.E(domain.ErrStoreUnavailable, "insert", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, doc := range docs {
		// Replace-by-path: a changed file carries a new id for the same
		// (repository, relative path); the stale row goes first.
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM documents
			WHERE repository_url = ? AND relative_path = ? AND id != ?
		`, doc.RepositoryURL, doc.RelativePath, doc.ID); err != nil {
			return domain.E(domain.ErrStoreUnavailable, "insert", err).WithPath(doc.RelativePath)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (
				id, repository_url, file_path, relative_path, content,
				content_hash, file_size, last_modified, parsed_at,
				normalized, embedding, title, description, language
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id, repository_url) DO NOTHING
		`, doc.ID, doc.RepositoryURL, doc.FilePath, doc.RelativePath, doc.Content,
			doc.ContentHash, doc.FileSize, doc.LastModified, doc.ParsedAt,
			boolToInt(doc.Normalized), encodeEmbedding(doc.Embedding),
			nullString(doc.Title), nullString(doc.Description), nullString(doc.Language),
		); err != nil {
			return domain.E(domain.ErrStoreUnavailable, "insert", err).WithPath(doc.RelativePath)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.E(domain.ErrStoreUnavailable, "insert", err)
	}
	return nil
}

// Delete removes rows matching the predicate and returns the count.
func (s *Store) Delete(ctx context.Context, pred driven.DeletePredicate) (int64, error) {
	if pred.RepositoryURL == "" && len(pred.IDs) == 0 {
		return 0, nil
	}

	var clauses []string
	var args []any
	if pred.RepositoryURL != "" {
		clauses = append(clauses, "repository_url = ?")
		args = append(args, pred.RepositoryURL)
	}
	if len(pred.IDs) > 0 {
		placeholders := strings.Repeat("?,", len(pred.IDs))
		clauses = append(clauses, "id IN ("+placeholders[:len(placeholders)-1]+")")
		for _, id := range pred.IDs {
			args = append(args, id)
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE "+strings.Join(clauses, " AND "), args...)
	if err != nil {
		return 0, domain.E(domain.ErrStoreUnavailable, "delete", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, domain.E(domain.ErrStoreUnavailable, "delete", err)
	}
	return removed, nil
}

// Search scans candidate rows (narrowed by the filter in SQL), computes
// cosine similarity in process, and returns the top k with ties broken
// by ascending id.
func (s *Store) Search(ctx context.Context, query []float32, k int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	where, args := filterClause(filter)
	rows, err := s.db.QueryContext(ctx, selectColumns+where, args...)
	if err != nil {
		return nil, domain.E(domain.ErrStoreUnavailable, "search", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, domain.E(domain.ErrStoreUnavailable, "search", err)
		}
		results = append(results, domain.SearchResult{
			Document: doc,
			Score:    vectormath.Cosine(query, doc.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.E(domain.ErrStoreUnavailable, "search", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of rows matching the filter.
func (s *Store) Count(ctx context.Context, filter domain.SearchFilter) (int64, error) {
	where, args := filterClause(filter)
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents"+where, args...).Scan(&n); err != nil {
		return 0, domain.E(domain.ErrStoreUnavailable, "count", err)
	}
	return n, nil
}

// Fingerprints returns relative_path → fingerprint for one repository.
func (s *Store) Fingerprints(ctx context.Context, repositoryURL string) (map[string]domain.Fingerprint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT relative_path, id, file_size, last_modified
		FROM documents WHERE repository_url = ?
	`, repositoryURL)
	if err != nil {
		return nil, domain.E(domain.ErrStoreUnavailable, "fingerprints", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Fingerprint)
	for rows.Next() {
		var rel string
		var fp domain.Fingerprint
		if err := rows.Scan(&rel, &fp.ID, &fp.Size, &fp.ModTime); err != nil {
			return nil, domain.E(domain.ErrStoreUnavailable, "fingerprints", err)
		}
		out[rel] = fp
	}
	if err := rows.Err(); err != nil {
		return nil, domain.E(domain.ErrStoreUnavailable, "fingerprints", err)
	}
	return out, nil
}

// Stats summarizes the store.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	stats := domain.StoreStats{TableName: s.tableName, EmbeddingDim: s.dimensions}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&stats.Documents); err != nil {
		return stats, domain.E(domain.ErrStoreUnavailable, "stats", err)
	}
	var repos int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT repository_url) FROM documents WHERE repository_url != ''").Scan(&repos); err != nil {
		return stats, domain.E(domain.ErrStoreUnavailable, "stats", err)
	}
	stats.Repositories = repos
	return stats, nil
}

// Verify checks table presence and metadata consistency.
func (s *Store) Verify(ctx context.Context) (domain.VerifyReport, error) {
	report := domain.VerifyReport{EmbeddingDim: s.dimensions}

	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'documents'").Scan(&name)
	switch {
	case err == sql.ErrNoRows:
		return report, nil
	case err != nil:
		return report, domain.E(domain.ErrStoreUnavailable, "verify", err)
	}
	report.TablePresent = true

	stored, err := s.getMeta(metaDimensions)
	if err != nil {
		return report, domain.E(domain.ErrStoreUnavailable, "verify", err)
	}
	report.SchemaOK = stored == strconv.Itoa(s.dimensions)
	report.OK = report.TablePresent && report.SchemaOK
	return report, nil
}

// All returns every row sorted by relative path, embeddings included.
func (s *Store) All(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY relative_path, id")
	if err != nil {
		return nil, domain.E(domain.ErrStoreUnavailable, "export", err)
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, domain.E(domain.ErrStoreUnavailable, "export", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.E(domain.ErrStoreUnavailable, "export", err)
	}
	return out, nil
}

// Reset drops every row while keeping the declared schema.
func (s *Store) Reset(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return domain.E(domain.ErrStoreUnavailable, "reset", err)
	}
	return nil
}

// Dimensions returns the declared embedding dimension.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const selectColumns = `
	SELECT id, repository_url, file_path, relative_path, content,
	       content_hash, file_size, last_modified, parsed_at,
	       normalized, embedding, title, description, language
	FROM documents`

// filterClause renders a SearchFilter as a WHERE clause.
func filterClause(filter domain.SearchFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.RepositoryURL != "" {
		clauses = append(clauses, "repository_url = ?")
		args = append(args, filter.RepositoryURL)
	}
	if filter.Language != "" {
		clauses = append(clauses, "language = ?")
		args = append(args, filter.Language)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// scanDocument reads one row from a selectColumns query.
func scanDocument(rows *sql.Rows) (domain.Document, error) {
	var doc domain.Document
	var normalized int
	var blob []byte
	var title, description, language sql.NullString
	if err := rows.Scan(
		&doc.ID, &doc.RepositoryURL, &doc.FilePath, &doc.RelativePath, &doc.Content,
		&doc.ContentHash, &doc.FileSize, &doc.LastModified, &doc.ParsedAt,
		&normalized, &blob, &title, &description, &language,
	); err != nil {
		return doc, err
	}
	doc.Normalized = normalized != 0
	doc.Embedding = decodeEmbedding(blob)
	doc.Title = title.String
	doc.Description = description.String
	doc.Language = language.String
	return doc, nil
}

// encodeEmbedding packs a vector as little-endian float32 bytes.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding unpacks little-endian float32 bytes.
func decodeEmbedding(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
