package partitioner

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tarungka/keyedwire/stream"
)

func TestNew_Defaults(t *testing.T) {
	p := New()
	assert.Equal(t, 1, p.Lanes())
	assert.Equal(t, 100, p.BufferSize())

	p = New(WithLanes(0), WithBufferSize(-1))
	assert.Equal(t, 1, p.Lanes(), "invalid lanes are ignored")
	assert.Equal(t, 100, p.BufferSize(), "invalid buffer size is ignored")

	p = New(WithLanes(4), WithBufferSize(0))
	assert.Equal(t, 4, p.Lanes())
	assert.Equal(t, 0, p.BufferSize())
}

func TestPartition_IsTheKey(t *testing.T) {
	p := New()
	e := stream.Event{Key: "sensor_A", Value: 50, Timestamp: time.Unix(0, 0)}
	assert.Equal(t, "sensor_A", p.Partition(e))
	assert.Equal(t, p.Partition(e), p.Partition(e.WithSeq(9)))
}

func TestPartition_CustomKeyFunc(t *testing.T) {
	p := New(WithKeyFunc(func(e stream.Event) string { return strings.ToLower(e.Key) }))
	assert.Equal(t, "sensor_a", p.Partition(stream.Event{Key: "SENSOR_A"}))
}

func TestLane_DeterministicAndInRange(t *testing.T) {
	tests := []struct {
		name  string
		lanes int
	}{
		{"single lane", 1},
		{"two lanes", 2},
		{"seven lanes", 7},
		{"many lanes", 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(WithLanes(tt.lanes))
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("sensor_%d", i)
				lane := p.Lane(key)
				assert.GreaterOrEqual(t, lane, 0)
				assert.Less(t, lane, tt.lanes)
				assert.Equal(t, lane, p.Lane(key), "same key must map to the same lane")
			}
		})
	}
}

func TestLane_CustomHash(t *testing.T) {
	p := New(WithLanes(3), WithHashFunc(func(string) uint64 { return 5 }))
	assert.Equal(t, 2, p.Lane("anything"))
}

func TestHashFnv_KnownValue(t *testing.T) {
	// FNV-1a 64 offset basis for the empty input
	assert.Equal(t, uint64(0xcbf29ce484222325), HashFnv(""))
	assert.NotEqual(t, HashFnv("sensor_A"), HashFnv("sensor_B"))
}
