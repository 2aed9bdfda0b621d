// Package file implements the repository registry as a single JSON
// document on disk. Writes are atomic (temp file + rename) and guarded
// by an in-process read-write lock.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.RepositoryRegistry = (*Registry)(nil)

// currentVersion is the on-disk format version.
const currentVersion = 1

// registryFile is the persisted document shape.
type registryFile struct {
	Version int                      `json:"version"`
	Entries []domain.RepositoryEntry `json:"entries"`
}

// Registry is a file-backed repository registry.
type Registry struct {
	mu      sync.RWMutex
	path    string
	entries map[string]domain.RepositoryEntry // keyed by canonical URL
}

// New opens (or initializes) the registry at <dataRoot>/registry.json.
func New(dataRoot string) (*Registry, error) {
	if err := os.MkdirAll(dataRoot, 0o700); err != nil {
		return nil, domain.E(domain.ErrFileUnreadable, "registry", err)
	}
	r := &Registry{
		path:    filepath.Join(dataRoot, "registry.json"),
		entries: make(map[string]domain.RepositoryEntry),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// load reads the registry file. A missing file starts an empty registry.
func (r *Registry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return domain.E(domain.ErrFileUnreadable, "registry", err)
	}

	var parsed registryFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return domain.E(domain.ErrInternal, "registry",
			fmt.Errorf("corrupt registry file: %w", err))
	}
	if parsed.Version != currentVersion {
		return domain.E(domain.ErrInternal, "registry",
			fmt.Errorf("unsupported registry version %d", parsed.Version))
	}
	for _, entry := range parsed.Entries {
		r.entries[entry.URL] = entry
	}
	return nil
}

// save writes the registry atomically. Caller must hold the write lock.
func (r *Registry) save() error {
	entries := make([]domain.RepositoryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].URL < entries[j].URL })

	data, err := json.MarshalIndent(registryFile{Version: currentVersion, Entries: entries}, "", "  ")
	if err != nil {
		return domain.E(domain.ErrInternal, "registry", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".registry-*.json")
	if err != nil {
		return domain.E(domain.ErrFileUnreadable, "registry", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return domain.E(domain.ErrFileUnreadable, "registry", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return domain.E(domain.ErrFileUnreadable, "registry", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return domain.E(domain.ErrFileUnreadable, "registry", err)
	}
	return nil
}

// Upsert stores or replaces the entry keyed by its URL.
func (r *Registry) Upsert(_ context.Context, entry domain.RepositoryEntry) error {
	if entry.URL == "" {
		return domain.E(domain.ErrConfigInvalid, "registry",
			fmt.Errorf("registry entry needs a URL"))
	}
	if entry.Name == "" {
		entry.Name = domain.RepoName(entry.URL)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.URL] = entry
	return r.save()
}

// Get resolves an identifier (URL or short name) to its entry.
func (r *Registry) Get(_ context.Context, identifier string) (*domain.RepositoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.resolve(identifier)
	if !ok {
		return nil, domain.E(domain.ErrNotFound, "registry", nil).WithRepo(identifier)
	}
	return &entry, nil
}

// List returns all entries sorted by name.
func (r *Registry) List(_ context.Context) ([]domain.RepositoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RepositoryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Remove deletes the entry and returns it.
func (r *Registry) Remove(_ context.Context, identifier string) (*domain.RepositoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.resolve(identifier)
	if !ok {
		return nil, domain.E(domain.ErrNotFound, "registry", nil).WithRepo(identifier)
	}
	delete(r.entries, entry.URL)
	if err := r.save(); err != nil {
		return nil, err
	}
	return &entry, nil
}

// resolve finds an entry by URL or derived short name. Caller must hold
// a lock.
func (r *Registry) resolve(identifier string) (domain.RepositoryEntry, bool) {
	if entry, ok := r.entries[identifier]; ok {
		return entry, true
	}
	for _, entry := range r.entries {
		if entry.Name == identifier {
			return entry, true
		}
	}
	return domain.RepositoryEntry{}, false
}

// Path returns the registry file location.
func (r *Registry) Path() string {
	return r.path
}
