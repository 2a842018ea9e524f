// Package blobtest provides an in-memory blob.Store for tests. It mirrors
// the conditional-write semantics of the real backends.
package blobtest

import (
	"context"
	"sort"
	"sync"

	"github.com/pitchside/pitchside/internal/blob"
)

// Store is an in-memory blob.Store.
type Store struct {
	mu       sync.Mutex
	data     map[string][]byte
	versions map[string]int64

	// PingErr, when set, is returned by Ping. Used to exercise readiness
	// failure paths.
	PingErr error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: map[string][]byte{}, versions: map[string]int64{}}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[key]
	if !ok {
		return nil, 0, blob.ErrNotFound
	}
	return append([]byte(nil), data...), s.versions[key], nil
}

func (s *Store) Put(_ context.Context, key string, data []byte, version int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.versions[key]
	if version == 0 && exists {
		return 0, blob.ErrVersionConflict
	}
	if version != 0 && version != current {
		return 0, blob.ErrVersionConflict
	}
	s.data[key] = append([]byte(nil), data...)
	s.versions[key] = current + 1
	return current + 1, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	delete(s.versions, key)
	return nil
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Ping(_ context.Context) error { return s.PingErr }
func (s *Store) Close() error                 { return nil }

var _ blob.Store = (*Store)(nil)
