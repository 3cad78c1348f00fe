package state

import (
	"fmt"

	"github.com/tarungka/keyedwire/stream"
)

var _ stream.ValueState = (*Handle)(nil)

// Handle is a Store scoped to a single key. The engine creates one per event
// so a ProcessFunction can only touch the state of the key it is processing.
type Handle struct {
	store Store
	key   string
}

// NewHandle scopes store to key.
func NewHandle(store Store, key string) *Handle {
	return &Handle{store: store, key: key}
}

// Key returns the key the handle is scoped to.
func (h *Handle) Key() string {
	return h.key
}

// Value returns the current value and whether it is set.
func (h *Handle) Value() (int64, bool, error) {
	cell, err := h.store.Get(h.key)
	if err != nil {
		return 0, false, err
	}
	return cell.Value, cell.Present, nil
}

// Update stores value for the key.
func (h *Handle) Update(value int64) error {
	return h.store.Update(h.key, value)
}

// Clear removes the key's state.
func (h *Handle) Clear() error {
	return h.store.Clear(h.key)
}

// Require returns the value, failing with ErrKeyNotInitialized when the key
// has no state yet.
func (h *Handle) Require() (int64, error) {
	v, ok, err := h.Value()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrKeyNotInitialized, h.key)
	}
	return v, nil
}
