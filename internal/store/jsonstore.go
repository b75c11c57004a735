// Package store holds the two persistence sinks: the JSON file that is the
// system of record for enrolled users, and the optional Postgres audit log.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/rawblock/ecg-auth-engine/pkg/models"
)

// JSONStore is the system of record for enrolled users: a single
// pretty-printed JSON file, map[string]UserTemplate, rewritten atomically
// (temp file + rename) on every mutation. This stays on encoding/json + os
// rather than a third-party serialization or embedded-database library —
// see DESIGN.md for why nothing in the example pack fits "atomically
// rewrite one small JSON file" any better than the standard library does.
type JSONStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONStore returns a store backed by path, creating its parent
// directory if necessary.
func NewJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	return &JSONStore{path: path}, nil
}

// Load reads the backing file. A missing file is not an error — it means
// no users have been enrolled yet, and Load returns an empty map. An empty
// or malformed file is likewise loaded as an empty map; a parse failure is
// logged.
func (s *JSONStore) Load() (map[string]models.UserTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]models.UserTemplate), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}

	users := make(map[string]models.UserTemplate)
	if len(data) == 0 {
		return users, nil
	}
	if err := json.Unmarshal(data, &users); err != nil {
		log.Printf("store: failed to parse %s, treating it as empty: %v", s.path, err)
		return make(map[string]models.UserTemplate), nil
	}
	return users, nil
}

// Save atomically rewrites the backing file: marshal to a temp file in the
// same directory, then rename over the original, so a crash mid-write never
// leaves a truncated users.json behind.
func (s *JSONStore) Save(users map[string]models.UserTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal users: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".users-*.json.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: rename temp file: %w", err)
	}
	return nil
}
