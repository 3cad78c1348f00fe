package state

import (
	"sync"
)

// MemoryStore is an in-memory implementation of the Store interface.
type MemoryStore struct {
	mu     sync.RWMutex
	cells  map[string]StateCell
	closed bool
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cells: make(map[string]StateCell),
	}
}

// Get returns the cell for key.
func (s *MemoryStore) Get(key string) (StateCell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return StateCell{}, ErrStoreClosed
	}

	cell, ok := s.cells[key]
	if !ok {
		return absent(key), nil
	}
	return cell, nil
}

// Update sets the value of key.
func (s *MemoryStore) Update(key string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	cell := s.cells[key]
	cell.Key = key
	cell.Value = value
	cell.Present = true
	cell.Version++
	s.cells[key] = cell
	return nil
}

// Clear removes the cell for key.
func (s *MemoryStore) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.cells, key)
	return nil
}

// Keys returns the keys with a cell.
func (s *MemoryStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	keys := make([]string, 0, len(s.cells))
	for k := range s.cells {
		keys = append(keys, k)
	}
	return keys, nil
}

// Snapshot copies all cells.
func (s *MemoryStore) Snapshot() (map[string]StateCell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	out := make(map[string]StateCell, len(s.cells))
	for k, v := range s.cells {
		out[k] = v
	}
	return out, nil
}

// Restore replaces the store content with cells.
func (s *MemoryStore) Restore(cells map[string]StateCell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	s.cells = make(map[string]StateCell, len(cells))
	for k, v := range cells {
		v.Key = k
		s.cells[k] = v
	}
	return nil
}

// Close drops all cells.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cells = nil
	return nil
}
