package checkpoint

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/internal/logger"
	"github.com/tarungka/keyedwire/state"
)

// ErrNoCheckpoint is returned when a backend holds no checkpoint.
var ErrNoCheckpoint = errors.New("no checkpoint")

// Checkpoint is a point-in-time copy of the keyed state.
type Checkpoint struct {
	// ID increases by one with every checkpoint written to a backend.
	ID    int64  `codec:"id" json:"id"`
	RunID string `codec:"run_id" json:"run_id"`
	// Offset is the number of source events reflected in Cells; a recovered
	// run resumes with the event whose Seq equals Offset.
	Offset    uint64                     `codec:"offset" json:"offset"`
	CreatedAt int64                      `codec:"created_at" json:"created_at"`
	Cells     map[string]state.StateCell `codec:"cells" json:"cells"`
}

// Time returns the creation time.
func (c *Checkpoint) Time() time.Time {
	return time.Unix(0, c.CreatedAt)
}

// Backend persists checkpoints.
type Backend interface {
	// Save stores the checkpoint under its ID.
	Save(cp *Checkpoint) error
	// Load returns the checkpoint with the given ID or ErrNoCheckpoint.
	Load(id int64) (*Checkpoint, error)
	// Latest returns the checkpoint with the highest ID or ErrNoCheckpoint.
	Latest() (*Checkpoint, error)
	// Close closes the backend.
	Close() error
}

// Manager is responsible for creating and restoring checkpoints.
type Manager struct {
	backend Backend
	logger  zerolog.Logger

	mu     sync.Mutex
	lastID int64
	loaded bool
}

// NewManager creates a new Manager.
func NewManager(backend Backend) *Manager {
	return &Manager{
		backend: backend,
		logger:  logger.GetLogger("checkpoint"),
	}
}

// Create snapshots store and saves it as the next checkpoint.
func (m *Manager) Create(runID string, offset uint64, store state.Store) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		latest, err := m.backend.Latest()
		switch {
		case errors.Is(err, ErrNoCheckpoint):
		case err != nil:
			return nil, fmt.Errorf("read latest checkpoint: %w", err)
		default:
			m.lastID = latest.ID
		}
		m.loaded = true
	}

	cells, err := store.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot state: %w", err)
	}

	cp := &Checkpoint{
		ID:        m.lastID + 1,
		RunID:     runID,
		Offset:    offset,
		CreatedAt: time.Now().UnixNano(),
		Cells:     cells,
	}
	if err := m.backend.Save(cp); err != nil {
		return nil, fmt.Errorf("save checkpoint %d: %w", cp.ID, err)
	}
	m.lastID = cp.ID

	m.logger.Info().
		Int64("checkpoint_id", cp.ID).
		Str("run_id", runID).
		Uint64("offset", offset).
		Int("cells", len(cells)).
		Msg("checkpoint created")
	return cp, nil
}

// Restore loads the checkpoint's cells into store, replacing what it holds.
func (m *Manager) Restore(cp *Checkpoint, store state.Store) error {
	if err := store.Restore(cp.Cells); err != nil {
		return fmt.Errorf("restore checkpoint %d: %w", cp.ID, err)
	}
	m.logger.Info().Int64("checkpoint_id", cp.ID).Uint64("offset", cp.Offset).Msg("checkpoint restored")
	return nil
}

// RestoreLatest restores the most recent checkpoint into store. It returns
// ErrNoCheckpoint when there is nothing to restore.
func (m *Manager) RestoreLatest(store state.Store) (*Checkpoint, error) {
	cp, err := m.backend.Latest()
	if err != nil {
		return nil, err
	}
	if err := m.Restore(cp, store); err != nil {
		return nil, err
	}
	return cp, nil
}

// Close closes the backend.
func (m *Manager) Close() error {
	return m.backend.Close()
}
