package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogger_TagsService(t *testing.T) {
	var buf bytes.Buffer
	Configure("debug", false, &buf)
	t.Cleanup(func() { Configure("info", false, nil) })

	l := GetLogger("engine")
	l.Debug().Str("key", "sensor_B").Msg("lane started")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "engine", entry["service"])
	assert.Equal(t, "sensor_B", entry["key"])
	assert.Equal(t, "debug", entry["level"])
}

func TestConfigure_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Configure("warn", false, &buf)
	t.Cleanup(func() { Configure("info", false, nil) })

	l := GetLogger("tracker")
	l.Info().Msg("dropped")
	l.Warn().Msg("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestConfigure_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Configure("loud", false, io.MultiWriter(&buf))
	t.Cleanup(func() { Configure("info", false, nil) })

	l := GetLogger("config")
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
