package checkpoint

import (
	"fmt"
	"sync"

	"github.com/tarungka/keyedwire/state"
)

// MemoryBackend keeps checkpoints in memory.
type MemoryBackend struct {
	mu          sync.RWMutex
	checkpoints map[int64]*Checkpoint
	latest      int64
}

// NewMemoryBackend creates a new MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		checkpoints: make(map[int64]*Checkpoint),
	}
}

// Save saves a copy of the checkpoint.
func (b *MemoryBackend) Save(cp *Checkpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkpoints[cp.ID] = clone(cp)
	if cp.ID > b.latest {
		b.latest = cp.ID
	}
	return nil
}

// Load loads the checkpoint with the given ID.
func (b *MemoryBackend) Load(id int64) (*Checkpoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cp, ok := b.checkpoints[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNoCheckpoint, id)
	}
	return clone(cp), nil
}

// Latest returns the newest checkpoint.
func (b *MemoryBackend) Latest() (*Checkpoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cp, ok := b.checkpoints[b.latest]
	if !ok {
		return nil, ErrNoCheckpoint
	}
	return clone(cp), nil
}

// Close closes the backend.
func (b *MemoryBackend) Close() error {
	return nil
}

func clone(cp *Checkpoint) *Checkpoint {
	out := *cp
	out.Cells = make(map[string]state.StateCell, len(cp.Cells))
	for k, v := range cp.Cells {
		out.Cells[k] = v
	}
	return &out
}
