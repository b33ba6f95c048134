package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LocalStore persists entries as a single JSON object in a local file.
// Suitable for single-instance deployments. The file is loaded once and
// rewritten atomically on every change.
type LocalStore struct {
	mu       sync.RWMutex
	filePath string
	entries  map[string]string
}

// NewLocalStore opens the store at filePath. A missing file starts empty;
// an unreadable file is an error.
func NewLocalStore(filePath string) (*LocalStore, error) {
	s := &LocalStore{
		filePath: filePath,
		entries:  make(map[string]string),
	}
	if filePath == "" {
		return s, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	return s, nil
}

func (s *LocalStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *LocalStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.entries[key]
	s.entries[key] = value
	if err := s.flushLocked(); err != nil {
		if existed {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}
		return err
	}
	return nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.entries[key]
	if !existed {
		return nil
	}
	delete(s.entries, key)
	if err := s.flushLocked(); err != nil {
		s.entries[key] = prev
		return err
	}
	return nil
}

// flushLocked writes all entries to disk. Callers hold s.mu.
func (s *LocalStore) flushLocked() error {
	if s.filePath == "" {
		return nil
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	// Write atomically using temp file + rename
	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// Close is a no-op; every change is already on disk.
func (s *LocalStore) Close() error {
	return nil
}
