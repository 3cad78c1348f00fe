package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Key     string `codec:"key"`
	Value   int64  `codec:"value"`
	Present bool   `codec:"present"`
}

func TestMsgPack_StructWithTags(t *testing.T) {
	in := map[string]sample{
		"sensor_A": {Key: "sensor_A", Value: 2, Present: true},
		"sensor_B": {Key: "sensor_B"},
	}
	b, err := EncodeMsgPack(in)
	require.NoError(t, err)

	var out map[string]sample
	require.NoError(t, DecodeMsgPack(b, &out))
	assert.Equal(t, in, out)
}

func TestMsgPack_DecodeTruncated(t *testing.T) {
	b, err := EncodeMsgPack(sample{Key: "sensor_A", Value: 3, Present: true})
	require.NoError(t, err)

	var out sample
	assert.Error(t, DecodeMsgPack(b[:len(b)/2], &out))
}

func TestUint64Bytes_OrderPreserving(t *testing.T) {
	a, b := Uint64ToBytes(9), Uint64ToBytes(10)
	assert.Equal(t, -1, bytes.Compare(a, b))
	assert.Equal(t, uint64(10), BytesToUint64(b))
}
