package tracker

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/keyedwire/state"
	"github.com/tarungka/keyedwire/stream"
)

type reading struct {
	key   string
	speed float64
}

func newTracker(t *testing.T) *HighSpeedTracker {
	t.Helper()
	tr, err := New(DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	return tr
}

// run feeds readings through the tracker in order and returns the verdicts.
func run(t *testing.T, tr *HighSpeedTracker, store state.Store, readings ...reading) []stream.OutputRecord {
	t.Helper()
	var out []stream.OutputRecord
	for i, r := range readings {
		ev := stream.Event{Key: r.key, Value: r.speed, Seq: uint64(i)}
		records, err := tr.Process(context.Background(), ev, state.NewHandle(store, r.key))
		require.NoError(t, err)
		require.Len(t, records, 1)
		out = append(out, records...)
	}
	return out
}

func verdicts(records []stream.OutputRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Verdict
	}
	return out
}

func TestClassify_Boundaries(t *testing.T) {
	tr := newTracker(t)
	tests := []struct {
		speed float64
		want  stream.Classification
	}{
		{70, stream.Normal},
		{50, stream.Normal},
		{71, stream.HighSpeed},
		{70.5, stream.HighSpeed},
		{49, stream.LowSpeed},
		{49.9, stream.LowSpeed},
		{60, stream.Normal},
		{0, stream.LowSpeed},
		{-5, stream.LowSpeed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.Classify(tt.speed), "speed %v", tt.speed)
	}
}

func TestProcess_AlertTrigger(t *testing.T) {
	out := run(t, newTracker(t), state.NewMemoryStore(),
		reading{"A", 75}, reading{"A", 80})
	assert.Equal(t, []string{"WARNING_1", "ALERT_2"}, verdicts(out))
	assert.Equal(t, stream.HighSpeed, out[0].Classification)
	assert.True(t, out[1].IsAlert())
}

func TestProcess_ResetOnNormal(t *testing.T) {
	store := state.NewMemoryStore()
	out := run(t, newTracker(t), store,
		reading{"B", 80}, reading{"B", 85}, reading{"B", 50}, reading{"B", 90})
	assert.Equal(t, []string{"WARNING_1", "ALERT_2", "NORMAL", "WARNING_1"}, verdicts(out))

	cell, err := store.Get("B")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cell.Value)
}

func TestProcess_ResetOnLowSpeed(t *testing.T) {
	store := state.NewMemoryStore()
	out := run(t, newTracker(t), store,
		reading{"C", 90}, reading{"C", 10})
	assert.Equal(t, []string{"WARNING_1", "NORMAL"}, verdicts(out))
	assert.Equal(t, stream.LowSpeed, out[1].Classification)

	cell, err := store.Get("C")
	require.NoError(t, err)
	assert.True(t, cell.Present)
	assert.Equal(t, int64(0), cell.Value)
}

func TestProcess_CrossKeyIsolation(t *testing.T) {
	out := run(t, newTracker(t), state.NewMemoryStore(),
		reading{"A", 80}, reading{"B", 75}, reading{"A", 85})

	byKey := map[string][]string{}
	for _, r := range out {
		byKey[r.Key] = append(byKey[r.Key], r.Verdict)
	}
	assert.Equal(t, []string{"WARNING_1", "ALERT_2"}, byKey["A"])
	assert.Equal(t, []string{"WARNING_1"}, byKey["B"])
}

func TestProcess_CountLaw(t *testing.T) {
	speeds := []float64{71, 72, 73, 10, 99, 70, 88, 89, 90, 91, 50}
	store := state.NewMemoryStore()
	tr := newTracker(t)

	var expected int64
	for i, s := range speeds {
		_, err := tr.Process(context.Background(), stream.Event{Key: "k", Value: s, Seq: uint64(i)}, state.NewHandle(store, "k"))
		require.NoError(t, err)

		if s > 70 {
			expected++
		} else {
			expected = 0
		}
		cell, err := store.Get("k")
		require.NoError(t, err)
		assert.Equal(t, expected, cell.Value, "after reading %d (%v)", i, s)
	}
}

func TestProcess_CopiesEventFields(t *testing.T) {
	out := run(t, newTracker(t), state.NewMemoryStore(), reading{"sensor_A", 55})
	assert.Equal(t, "sensor_A", out[0].Key)
	assert.Equal(t, 55.0, out[0].Value)
	assert.Equal(t, stream.Normal, out[0].Classification)
	assert.Equal(t, "NORMAL", out[0].Verdict)
}

func TestProcess_LogsAlerts(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(DefaultConfig(), zerolog.New(&buf))
	require.NoError(t, err)

	run(t, tr, state.NewMemoryStore(), reading{"sensor_B", 75})
	assert.Empty(t, buf.String(), "warnings are not logged")

	run(t, tr, state.NewMemoryStore(), reading{"sensor_B", 75}, reading{"sensor_B", 80})
	assert.Contains(t, buf.String(), `"key":"sensor_B"`)
	assert.Contains(t, buf.String(), `"consecutive":2`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestProcess_CustomThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AlertThreshold = 3
	tr, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	out := run(t, tr, state.NewMemoryStore(),
		reading{"A", 80}, reading{"A", 80}, reading{"A", 80})
	assert.Equal(t, []string{"WARNING_1", "WARNING_2", "ALERT_3"}, verdicts(out))
}

func TestProcess_StateErrorsFail(t *testing.T) {
	store := state.NewMemoryStore()
	require.NoError(t, store.Close())

	_, err := newTracker(t).Process(context.Background(), stream.Event{Key: "A", Value: 80}, state.NewHandle(store, "A"))
	assert.ErrorIs(t, err, state.ErrStoreClosed)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.AlertThreshold = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.LowSpeed = 80
	_, err := New(bad, zerolog.Nop())
	assert.Error(t, err)
}
