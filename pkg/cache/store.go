/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/untillpro/goutils/logger"

	"github.com/solidkit/buildcore/pkg/plan"
)

const defaultPermissions = 0o755

// Store is the in-memory, JSON-file-backed incremental cache. Zero value is
// not usable; construct with Load.
type Store struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
}

// ArtifactStore is the subset of the artifact collaborator
// InvalidateMissingArtifacts needs.
type ArtifactStore interface {
	ArtifactExists(fullyQualifiedName string) bool
}

// Load reads the cache document at path. A missing file, a schema mismatch,
// or a parse failure all result in an empty cache rather than an error, so
// a corrupt cache degrades to a full rebuild instead of aborting the build.
func Load(path string) *Store {
	s := &Store{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Verbose("cache: failed to parse %s, starting empty: %v", path, err)
		return s
	}
	if doc.Format != schemaVersion {
		logger.Verbose("cache: schema mismatch in %s (want %d, got %d), starting empty", path, schemaVersion, doc.Format)
		return s
	}
	s.entries = doc.Files
	return s
}

// HasFileChanged implements plan.CacheChecker: no entry, a different
// content hash, or (for artifact-emitting files only, i.e. when config is
// non-nil) a different serialized solc config all count as changed.
func (s *Store) HasFileChanged(absPath, contentHash string, config *plan.CompilerConfig) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[absPath]
	if !ok {
		return true
	}
	if entry.ContentHash != contentHash {
		return true
	}
	if config != nil && entry.SolcConfig != serializeConfig(*config) {
		return true
	}
	return false
}

// Put records or replaces the cache entry for a file after a successful job.
func (s *Store) Put(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.AbsolutePath] = entry
}

// Get returns the current entry for a path, if any.
func (s *Store) Get(absPath string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[absPath]
	return e, ok
}

// Entries returns a snapshot of every currently cached entry, keyed by
// absolute path. Callers use this to reconstruct the full set of artifacts
// and build-info files a build must keep, not just the ones it recompiled.
func (s *Store) Entries() map[string]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// InvalidateMissingArtifacts drops any cached entry for which at least one
// listed emitted artifact is no longer present in store.
func (s *Store) InvalidateMissingArtifacts(store ArtifactStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, entry := range s.entries {
		for _, artifact := range entry.EmittedArtifacts {
			if !store.ArtifactExists(artifact) {
				delete(s.entries, path)
				break
			}
		}
	}
}

// Flush writes the cache atomically: to a temp file in the same directory,
// then renamed over the target path.
func (s *Store) Flush() error {
	s.mu.Lock()
	doc := document{Format: schemaVersion, Files: s.entries}
	s.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), defaultPermissions); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

func serializeConfig(c plan.CompilerConfig) string {
	data, err := json.Marshal(c)
	if err != nil {
		return c.Version
	}
	return string(data)
}
