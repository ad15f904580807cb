package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileStore persists all records in a single JSON file. Writes are atomic
// (temp file + rename) so a crash never leaves a half-written store behind.
type FileStore struct {
	path string

	mu      sync.Mutex
	records map[int64]Record
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens (or creates) the store at path, loading any existing
// records into memory.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("session: store path must not be empty")
	}
	s := &FileStore{path: path, records: map[int64]Record{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read store file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("session: parse store file %s: %w", path, err)
	}
	for _, r := range recs {
		s.records[r.UserID] = r
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, userID int64) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return Record{}, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	return rec, nil
}

func (s *FileStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = rec
	return s.flushLocked()
}

func (s *FileStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[userID]; !ok {
		return nil
	}
	delete(s.records, userID)
	return s.flushLocked()
}

func (s *FileStore) List(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].LastActive.After(recs[j].LastActive)
	})
	return recs, nil
}

// Ping verifies the store's directory is writable.
func (s *FileStore) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	f, err := os.CreateTemp(dir, ".session-ping-*")
	if err != nil {
		return fmt.Errorf("session: store dir not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// flushLocked serialises the record map and atomically replaces the store
// file. Callers must hold mu.
func (s *FileStore) flushLocked() error {
	recs := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].UserID < recs[j].UserID })

	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".sessions-*.json")
	if err != nil {
		return fmt.Errorf("session: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("session: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session: replace store file: %w", err)
	}
	return nil
}
