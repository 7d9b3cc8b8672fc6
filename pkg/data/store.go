package data

import (
	"context"
	"fmt"
	"sync"
)

// Backend persists the serialized Records blob under StorageKey.
type Backend interface {
	Init(ctx context.Context) error
	Read(ctx context.Context) ([]byte, error) // nil when nothing was stored yet
	Write(ctx context.Context, blob []byte) error
	Close() error
}

// Store keeps the downloaded Records in memory and mirrors every change to a Backend.
//
// Commit serializes mutations: the mutation runs on a copy, the copy is written in
// full, and only then does it replace the in-memory snapshot. A failed write leaves
// both untouched.
type Store struct {
	backend Backend

	commitMu sync.Mutex
	mu       sync.RWMutex
	records  Records
	open     bool
}

// NewStore wraps a backend. Call Open before use.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend, records: Records{}}
}

// Open prepares the backend and loads the persisted records.
func (s *Store) Open(ctx context.Context) error {
	if err := s.backend.Init(ctx); err != nil {
		return fmt.Errorf("failed to init store: %w", err)
	}
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
	if _, err := s.Load(ctx); err != nil {
		return err
	}
	return nil
}

// Load re-reads the persisted blob and returns a copy of it. Missing data yields an
// empty map; a corrupted blob yields a *DeserializeError.
func (s *Store) Load(ctx context.Context) (Records, error) {
	if !s.isOpen() {
		return nil, ErrClosed
	}
	blob, err := s.backend.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", StorageKey, err)
	}
	rs, err := decodeRecords(blob)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.records = rs
	s.mu.Unlock()
	return rs.Clone(), nil
}

// Get returns a copy of the comic's record.
func (s *Store) Get(comicID string) (*DownloadRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[comicID]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// All returns a copy of every record.
func (s *Store) All() Records {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Clone()
}

// Commit applies fn to a copy of the records and persists the result. If fn returns
// an error nothing is written.
func (s *Store) Commit(ctx context.Context, fn func(Records) error) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if !s.isOpen() {
		return ErrClosed
	}

	next := s.All()
	if err := fn(next); err != nil {
		return err
	}
	blob, err := encodeRecords(next)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", StorageKey, err)
	}
	if err := s.backend.Write(ctx, blob); err != nil {
		return fmt.Errorf("failed to write %s: %w", StorageKey, err)
	}

	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
	return nil
}

// Close releases the backend. Further commits fail with ErrClosed.
func (s *Store) Close() error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.mu.Lock()
	wasOpen := s.open
	s.open = false
	s.mu.Unlock()
	if !wasOpen {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) isOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// NewBackend returns the backend for driver ("duckdb", "bolt" or "memory").
func NewBackend(driver, path string) (Backend, error) {
	switch driver {
	case "", "duckdb":
		return NewDuckDBBackend(path), nil
	case "bolt":
		return NewBoltBackend(path), nil
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// OpenStore builds the store for driver and opens it.
func OpenStore(ctx context.Context, driver, path string) (*Store, error) {
	backend, err := NewBackend(driver, path)
	if err != nil {
		return nil, err
	}
	s := NewStore(backend)
	if err := s.Open(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
