package stream

import "context"

// ValueState is the view of a single key's state cell that a ProcessFunction
// gets for the event it is processing.
type ValueState interface {
	// Value returns the current value and whether one is set.
	Value() (int64, bool, error)
	// Update stores a new value for the key.
	Update(value int64) error
	// Clear removes the key's value.
	Clear() error
}

// ProcessFunction is the per-key stateful logic run by the engine. Any type
// with a Process method is a valid ProcessFunction.
//
// The engine never calls Process concurrently for the same key, and calls it
// for a key's events in the order they arrived.
type ProcessFunction interface {
	Process(ctx context.Context, event Event, state ValueState) ([]OutputRecord, error)
}

// ProcessFunc adapts an ordinary function to a ProcessFunction.
type ProcessFunc func(ctx context.Context, event Event, state ValueState) ([]OutputRecord, error)

// Process calls f.
func (f ProcessFunc) Process(ctx context.Context, event Event, state ValueState) ([]OutputRecord, error) {
	return f(ctx, event, state)
}
