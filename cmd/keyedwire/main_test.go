package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/keyedwire/checkpoint"
)

func TestRun_SampleDataset(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--log.level=error"}, &out))

	got := out.String()
	assert.Contains(t, got, "=== STATEFUL STREAM PROCESSOR ===")

	input, processed, found := strings.Cut(got, "2. Stateful processing - tracking consecutive high speeds:\n")
	require.True(t, found)
	assert.Contains(t, input, "1. All sensor data:\n(sensor_A, 50)\n(sensor_B, 75)\n")
	assert.Contains(t, input, "(sensor_B, 90)\n")
	assert.Equal(t, 12, strings.Count(input, "\n("))

	assert.True(t, strings.HasPrefix(processed, "(sensor_A, 50, NORMAL, NORMAL)\n"))
	assert.Contains(t, processed, "(sensor_B, 80, HIGH_SPEED, ALERT_2)")
	assert.Contains(t, processed, "(sensor_B, 85, HIGH_SPEED, ALERT_3)")
	assert.Contains(t, processed, "(sensor_A, 82, HIGH_SPEED, ALERT_2)")
	assert.Contains(t, processed, "(sensor_C, 40, LOW_SPEED, NORMAL)")
	assert.Contains(t, processed, "Alerts:    3")
	assert.Equal(t, 12, strings.Count("\n"+processed, "\n("))
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--version"}, &out))
	assert.Equal(t, buildString+"\n", out.String())
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--help"}, &out))
	assert.Contains(t, out.String(), "--source.type")
}

func TestRun_BadConfig(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run(context.Background(), []string{"--sink.type=carrier-pigeon"}, &out))
}

func TestRun_FileToFileWithCheckpoints(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.jsonl")
	output := filepath.Join(dir, "out.jsonl")
	cpPath := filepath.Join(dir, "checkpoints.db")

	var lines strings.Builder
	for i, speed := range []int{75, 80, 85, 40, 90} {
		fmt.Fprintf(&lines, `{"key":"truck","value":%d,"ts":"2024-01-01T00:00:0%dZ"}`+"\n", speed, i)
	}
	require.NoError(t, os.WriteFile(input, []byte(lines.String()), 0o644))

	args := []string{
		"--log.level=error",
		"--source.type=file", "--source.path=" + input,
		"--sink.type=file", "--sink.path=" + output,
		"--state.backend=badger", "--state.dir=" + filepath.Join(dir, "state"),
		"--checkpoint.path=" + cpPath, "--checkpoint.every=2",
		"--checkpoint.compression=snappy",
	}
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), args, &out))
	assert.NotContains(t, out.String(), "1. All sensor data:", "only the sample dataset is echoed")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, 5, bytes.Count(data, []byte("\n")))
	assert.Contains(t, string(data), `"verdict":"ALERT_3"`)

	// A second run resumes after the last checkpoint and reads nothing new.
	out.Reset()
	require.NoError(t, run(context.Background(), args, &out))
	assert.Contains(t, out.String(), "Events:    0 (5 skipped)")

	backend, err := checkpoint.OpenBolt(cpPath)
	require.NoError(t, err)
	defer backend.Close()
	latest, err := backend.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), latest.Offset)
	assert.Equal(t, int64(1), latest.Cells["truck"].Value)
}
