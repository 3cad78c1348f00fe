package partitioner

import (
	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/stream"
)

// KeyPartitioner routes events by their key. Partition returns the key itself,
// so equal keys always share a state scope; Lane maps a key onto one of a
// fixed number of worker lanes.
type KeyPartitioner struct {
	// Number of lanes
	lanes int
	// Buffer size for each lane's queue
	bufferSize int
	// Key extraction
	keyFn func(stream.Event) string
	// Hashing function
	hashFn func(string) uint64
}

type Option func(*KeyPartitioner)

// WithLanes sets the number of lanes. Values below 1 are ignored.
func WithLanes(lanes int) Option {
	return func(p *KeyPartitioner) {
		if lanes > 0 {
			p.lanes = lanes
		}
	}
}

// WithBufferSize sets the queue size of each lane. Negative values are ignored.
func WithBufferSize(size int) Option {
	return func(p *KeyPartitioner) {
		if size >= 0 {
			p.bufferSize = size
		}
	}
}

// WithKeyFunc overrides how the key is read from an event. The function must
// be deterministic.
func WithKeyFunc(fn func(stream.Event) string) Option {
	return func(p *KeyPartitioner) {
		if fn != nil {
			p.keyFn = fn
		}
	}
}

// WithHashFunc overrides the key-to-lane hash.
func WithHashFunc(fn func(string) uint64) Option {
	return func(p *KeyPartitioner) {
		if fn != nil {
			p.hashFn = fn
		}
	}
}

// New creates a partitioner. By default there is a single lane, which keeps
// the sink order identical to the source order.
func New(opts ...Option) *KeyPartitioner {
	p := &KeyPartitioner{
		lanes:      1,
		bufferSize: 100, // Default buffer size
		keyFn:      func(e stream.Event) string { return e.Key },
		hashFn:     HashFnv,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Partition returns the partition (the key) of an event.
func (p *KeyPartitioner) Partition(e stream.Event) string {
	return p.keyFn(e)
}

// Lane returns the lane a key is pinned to.
func (p *KeyPartitioner) Lane(key string) int {
	if p.lanes == 1 {
		return 0
	}
	return int(p.hashFn(key) % uint64(p.lanes))
}

// Lanes returns the number of lanes.
func (p *KeyPartitioner) Lanes() int {
	return p.lanes
}

// BufferSize returns the queue size of each lane.
func (p *KeyPartitioner) BufferSize() int {
	return p.bufferSize
}

// Examine logs the partitioner settings.
func (p *KeyPartitioner) Examine(l zerolog.Logger) {
	l.Debug().Int("lanes", p.lanes).Int("buffer_size", p.bufferSize).Msg("key partitioner")
}
