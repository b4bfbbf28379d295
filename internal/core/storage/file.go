package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/strataui/strata/internal/core/observability/log"
)

// fileState is the on-disk snapshot. Checksum covers the canonical key=value
// listing so a hand-edited or truncated file is detected on load.
type fileState struct {
	Checksum string            `yaml:"checksum"`
	Values   map[string]string `yaml:"values"`
}

// FileStore is a Store persisted to a YAML file. Every Set/Delete rewrites
// the snapshot through a temp file and rename. Safe for concurrent use.
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]string
	logger log.Log
}

// OpenFileStore loads the snapshot at path, or starts empty if the file is
// missing. A corrupt or checksum-mismatched snapshot is discarded with a
// warning rather than failing startup.
func OpenFileStore(path string, logger log.Log) (*FileStore, error) {
	s := &FileStore{path: path, values: make(map[string]string), logger: logger}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}

	var state fileState
	if err = yaml.Unmarshal(raw, &state); err != nil {
		logger.Warn("state file is not valid yaml, starting empty",
			log.String("path", path), log.Error(err))
		return s, nil
	}
	if state.Checksum != checksum(state.Values) {
		logger.Warn("state file checksum mismatch, starting empty", log.String("path", path))
		return s, nil
	}
	if state.Values != nil {
		s.values = state.Values
	}
	return s, nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.flushLocked()
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return s.flushLocked()
}

func (s *FileStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	return out
}

func (s *FileStore) flushLocked() error {
	state := fileState{Checksum: checksum(s.values), Values: s.values}
	raw, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("storage: marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err = os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("storage: create state dir: %w", err)
	}
	if err = os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("storage: write state: %w", err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("storage: replace state: %w", err)
	}
	return nil
}

// checksum hashes the sorted key=value listing.
func checksum(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := xxhash.New()
	for _, k := range keys {
		_, _ = h.WriteString(k)
		_, _ = h.WriteString("=")
		_, _ = h.WriteString(values[k])
		_, _ = h.WriteString("\n")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
