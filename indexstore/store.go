/*
Package indexstore allocates HD derivation indexes.

Allocation is strictly monotonic and durable: the incremented counter is
persisted BEFORE the index is handed to the caller, so a crash can burn
an index but can never hand the same index out twice. Two payments on
one address would be indistinguishable, so reuse is a correctness bug.
*/
package indexstore

import (
	"sync"
)

// IndexStorage is the durable backend of the counter.
type IndexStorage interface {
	// LoadNext returns the next unallocated index (0 on a fresh store).
	LoadNext() (uint32, error)

	// StoreNext durably records the next unallocated index.
	StoreNext(next uint32) error
}

// Store serializes concurrent allocations on top of an IndexStorage.
type Store struct {
	mu      sync.Mutex
	backend IndexStorage
}

func NewStore(backend IndexStorage) *Store {
	return &Store{backend: backend}
}

// NextIndex allocates one index: load, increment, persist, return.
// Concurrent callers never observe the same value.
func (s *Store) NextIndex() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.backend.LoadNext()
	if err != nil {
		return 0, err
	}
	// persist-then-return; the caller only ever sees indexes that are
	// already recorded as used
	if err := s.backend.StoreNext(next + 1); err != nil {
		return 0, err
	}
	return next, nil
}

// CurrentIndex is a read-only peek at the next unallocated index.
func (s *Store) CurrentIndex() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.LoadNext()
}
