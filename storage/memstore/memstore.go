// Package memstore is an in-memory storage.Backend for tests and for
// embedding the ledger without persistence.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/signadot/tony-format/contentstore/storage"
)

type key struct {
	id      int64
	version int
}

type Store struct {
	mu     sync.RWMutex
	snaps  map[key][]byte
	meta   map[int64][]byte
	lastID int64
}

var _ storage.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		snaps: map[key][]byte{},
		meta:  map[int64][]byte{},
	}
}

func (s *Store) Persist(_ context.Context, id int64, version int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[key{id, version}] = slices.Clone(data)
	return nil
}

func (s *Store) Fetch(_ context.Context, id int64, version int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.snaps[key{id, version}]
	if !ok {
		return nil, fmt.Errorf("%w: snapshot %d.%d", storage.ErrNotFound, id, version)
	}
	return slices.Clone(d), nil
}

func (s *Store) Delete(_ context.Context, id int64, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{id, version}
	if _, ok := s.snaps[k]; !ok {
		return fmt.Errorf("%w: snapshot %d.%d", storage.ErrNotFound, id, version)
	}
	delete(s.snaps, k)
	return nil
}

func (s *Store) Versions(_ context.Context, id int64) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []int
	for k := range s.snaps {
		if k.id == id {
			res = append(res, k.version)
		}
	}
	slices.Sort(res)
	return res, nil
}

func (s *Store) PutMeta(_ context.Context, id int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[id] = slices.Clone(data)
	return nil
}

func (s *Store) Meta(_ context.Context, id int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.meta[id]
	if !ok {
		return nil, fmt.Errorf("%w: meta %d", storage.ErrNotFound, id)
	}
	return slices.Clone(d), nil
}

func (s *Store) DeleteMeta(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meta, id)
	return nil
}

func (s *Store) NextID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID, nil
}

func (s *Store) Close() error { return nil }
