package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_ScopedToKey(t *testing.T) {
	s := NewMemoryStore()
	a := NewHandle(s, "sensor_A")
	b := NewHandle(s, "sensor_B")

	require.NoError(t, a.Update(2))

	v, ok, err := a.Value()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)

	v, ok, err = b.Value()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), v)
	assert.Equal(t, "sensor_B", b.Key())
}

func TestHandle_Require(t *testing.T) {
	s := NewMemoryStore()
	h := NewHandle(s, "sensor_C")

	_, err := h.Require()
	assert.ErrorIs(t, err, ErrKeyNotInitialized)

	require.NoError(t, h.Update(0))
	v, err := h.Require()
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	require.NoError(t, h.Clear())
	_, err = h.Require()
	assert.ErrorIs(t, err, ErrKeyNotInitialized)
}

func TestHandle_PropagatesStoreErrors(t *testing.T) {
	s := NewMemoryStore()
	h := NewHandle(s, "sensor_A")
	require.NoError(t, s.Close())

	_, _, err := h.Value()
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, h.Update(1), ErrStoreClosed)
}
