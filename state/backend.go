package state

import "errors"

var (
	// ErrStoreClosed is returned by every operation on a closed store.
	ErrStoreClosed = errors.New("state store is closed")

	// ErrKeyNotInitialized is returned when a caller requires state for a key
	// that has never been written (or was cleared).
	ErrKeyNotInitialized = errors.New("key not initialized")
)

// StateCell is the state held for one key.
type StateCell struct {
	Key   string `codec:"key" json:"key"`
	Value int64  `codec:"value" json:"value"`
	// Present is false for a key with no state; callers treat the value as 0.
	Present bool `codec:"present" json:"present"`
	// Version counts the updates applied to the cell since it was created.
	Version uint64 `codec:"version" json:"version"`
}

// absent is the sentinel cell returned for keys without state.
func absent(key string) StateCell {
	return StateCell{Key: key}
}

// Store holds one state cell per key. Operations on a key observe a linear
// history: Get returns the most recent Update for that exact key, or an absent
// cell if there was none or it was cleared.
type Store interface {
	// Get returns the key's cell. Unknown keys yield a cell with Present false.
	Get(key string) (StateCell, error)
	// Update sets the key's value, creating the cell on first use.
	Update(key string, value int64) error
	// Clear destroys the key's cell.
	Clear(key string) error
	// Keys lists the keys that currently have a cell, in no particular order.
	Keys() ([]string, error)
	// Snapshot copies every cell.
	Snapshot() (map[string]StateCell, error)
	// Restore replaces the whole content of the store with cells.
	Restore(cells map[string]StateCell) error
	// Close releases the store. Later calls return ErrStoreClosed.
	Close() error
}
