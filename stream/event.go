package stream

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidEvent is returned when an event has no key or a value that is not
// a finite number.
var ErrInvalidEvent = errors.New("invalid event")

// Event is a single keyed reading flowing through the pipeline. It is a value
// type and is never mutated after a source hands it to the engine.
type Event struct {
	Key       string    `json:"key"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"ts"`
	// Seq is the position at which the source delivered the event, starting at 0.
	Seq uint64 `json:"seq"`
}

// NewEvent creates a validated event. The sequence number is assigned by the
// source that emits it.
func NewEvent(key string, value float64, ts time.Time) (Event, error) {
	e := Event{Key: key, Value: value, Timestamp: ts}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Validate checks that the event can be keyed and classified.
func (e Event) Validate() error {
	if e.Key == "" {
		return fmt.Errorf("%w: missing key", ErrInvalidEvent)
	}
	if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
		return fmt.Errorf("%w: key %s has non-numeric value %v", ErrInvalidEvent, e.Key, e.Value)
	}
	return nil
}

// WithSeq returns a copy of the event carrying the given delivery position.
func (e Event) WithSeq(seq uint64) Event {
	e.Seq = seq
	return e
}

// String renders the event as a (key, value) tuple.
func (e Event) String() string {
	return fmt.Sprintf("(%s, %v)", e.Key, e.Value)
}

// Barrier is a control marker the engine pushes through every lane. Once all
// lanes have passed it no lane holds a half-applied update, so the keyed state
// can be checkpointed.
type Barrier struct {
	CheckpointID int64
}
