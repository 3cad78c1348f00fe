package engine

import (
	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/checkpoint"
	"github.com/tarungka/keyedwire/state"
	"github.com/tarungka/keyedwire/stream"
)

// CheckpointCoordinator is responsible for coordinating checkpoints. Every
// `every` routed events it pushes a barrier through all lanes and, once each
// lane has acknowledged it, snapshots the store.
type CheckpointCoordinator struct {
	manager *checkpoint.Manager
	every   uint64
	logger  zerolog.Logger

	sinceLast uint64
	barriers  int64
}

// NewCheckpointCoordinator creates a new CheckpointCoordinator. An every of
// zero only checkpoints when a run finishes cleanly.
func NewCheckpointCoordinator(manager *checkpoint.Manager, every uint64, logger zerolog.Logger) *CheckpointCoordinator {
	return &CheckpointCoordinator{
		manager: manager,
		every:   every,
		logger:  logger,
	}
}

// tick counts a routed event and reports whether a checkpoint is due.
func (c *CheckpointCoordinator) tick() bool {
	c.sinceLast++
	return c.every > 0 && c.sinceLast >= c.every
}

// align pushes a barrier into every lane and waits until the emitter has
// acknowledged it for all of them, which happens only once the sink accepted
// every record of the events routed before the barrier. It gives up with
// errAborted when the run fails meanwhile.
func (c *CheckpointCoordinator) align(lanes []*lane, abort <-chan struct{}) error {
	c.barriers++
	barrier := &stream.Barrier{CheckpointID: c.barriers}
	ack := make(chan int, len(lanes))

	for _, l := range lanes {
		select {
		case l.in <- laneItem{barrier: barrier, ack: ack}:
		case <-abort:
			return errAborted
		}
	}
	for range lanes {
		select {
		case <-ack:
		case <-abort:
			return errAborted
		}
	}
	c.logger.Trace().Int64("barrier", barrier.CheckpointID).Msg("lanes and sink aligned")
	return nil
}

// checkpoint snapshots the store. The caller guarantees no lane is mid-update.
func (c *CheckpointCoordinator) checkpoint(runID string, offset uint64, store state.Store) (*checkpoint.Checkpoint, error) {
	c.sinceLast = 0
	cp, err := c.manager.Create(runID, offset, store)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Int64("checkpoint", cp.ID).Uint64("offset", offset).Msg("checkpoint taken")
	return cp, nil
}
