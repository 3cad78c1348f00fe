package stream

import (
	"context"
	"sync"
)

// Sink is an interface for data sinks. Records must be accepted in the order
// they are written; a sink must not reorder or silently drop them.
type Sink interface {
	// Write delivers one record. An error rejects the record and stops the run.
	Write(ctx context.Context, record OutputRecord) error
	// Close closes the sink.
	Close() error
}

// Flusher is implemented by sinks that buffer records. Flush returns once
// every record written so far is durable on the sink's side; the engine calls
// it before a checkpoint.
type Flusher interface {
	Flush() error
}

// CollectSink keeps every record it receives in memory.
type CollectSink struct {
	mu      sync.Mutex
	records []OutputRecord
	closed  bool
}

// NewCollectSink creates a new CollectSink.
func NewCollectSink() *CollectSink {
	return &CollectSink{}
}

// Write appends the record.
func (s *CollectSink) Write(_ context.Context, record OutputRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// Records returns a copy of everything written so far, in write order.
func (s *CollectSink) Records() []OutputRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OutputRecord, len(s.records))
	copy(out, s.records)
	return out
}

// ByKey groups the written records by key, keeping write order within a key.
func (s *CollectSink) ByKey() map[string][]OutputRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]OutputRecord)
	for _, r := range s.records {
		out[r.Key] = append(out[r.Key], r)
	}
	return out
}

// Closed reports whether Close has been called.
func (s *CollectSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close closes the sink.
func (s *CollectSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
