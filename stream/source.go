package stream

import (
	"context"
	"fmt"
)

// Source is an interface for data sources.
type Source interface {
	// Open starts delivering events in source order. The channel is closed when
	// the source is exhausted, fails or ctx is done.
	Open(ctx context.Context) (<-chan Event, error)
	// Err returns the error that stopped delivery early, if any. It is only
	// meaningful after the channel returned by Open has been closed.
	Err() error
	// Close closes the source.
	Close() error
}

// SliceSource is a finite source backed by an in-memory slice.
type SliceSource struct {
	events []Event
}

// NewSliceSource validates the events and numbers them in the given order.
func NewSliceSource(events ...Event) (*SliceSource, error) {
	numbered := make([]Event, len(events))
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		numbered[i] = e.WithSeq(uint64(i))
	}
	return &SliceSource{events: numbered}, nil
}

// Len returns the number of events the source will deliver.
func (s *SliceSource) Len() int {
	return len(s.events)
}

// Open opens the source.
func (s *SliceSource) Open(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for _, e := range s.events {
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Err always returns nil, the events were validated up front.
func (s *SliceSource) Err() error {
	return nil
}

// Close closes the source.
func (s *SliceSource) Close() error {
	return nil
}
