package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "sample", cfg.Source.Type)
	assert.Equal(t, "print", cfg.Sink.Type)
	assert.Equal(t, 1, cfg.Engine.Lanes)
	assert.Equal(t, 100, cfg.Engine.BufferSize)
	assert.Equal(t, int64(2), cfg.Tracker.AlertThreshold)
	assert.Equal(t, 70.0, cfg.Tracker.HighSpeed)
	assert.Equal(t, 50.0, cfg.Tracker.LowSpeed)
	assert.Equal(t, BackendMemory, cfg.State.Backend)
	assert.Empty(t, cfg.Checkpoint.Path)
	assert.Empty(t, cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Version)
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := Load([]string{
		"--engine.lanes=4",
		"--tracker.threshold=3",
		"--source.type=kafka",
		"--source.brokers=localhost:9092,localhost:9093",
		"--source.topic=speeds",
		"--source.max_records=500",
		"--sink.type=file",
		"--sink.path=/tmp/out.jsonl",
		"--checkpoint.every=50",
		"--checkpoint.compression=zstd",
		"--engine.rate_limit=1000",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Engine.Lanes)
	assert.Equal(t, int64(3), cfg.Tracker.AlertThreshold)
	assert.Equal(t, "kafka", cfg.Source.Type)
	assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, cfg.Source.Kafka.Brokers)
	assert.Equal(t, "speeds", cfg.Source.Kafka.Topic)
	assert.Equal(t, uint64(500), cfg.Source.Kafka.MaxRecords)
	assert.Equal(t, "file", cfg.Sink.Type)
	assert.Equal(t, "/tmp/out.jsonl", cfg.Sink.Path)
	assert.Equal(t, uint64(50), cfg.Checkpoint.Every)
	assert.Equal(t, "zstd", cfg.Checkpoint.Compression)
	assert.Equal(t, 1000, cfg.Engine.RateLimit)
}

func TestLoad_YAMLFileThenFlags(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
source:
  type: file
  path: events.jsonl
engine:
  lanes: 8
tracker:
  high_speed: 100
state:
  backend: badger
  dir: /var/lib/keyedwire
checkpoint:
  path: /var/lib/keyedwire/checkpoints.db
`)
	cfg, err := Load([]string{"--config", path, "--engine.lanes=2"})
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Source.Type)
	assert.Equal(t, "events.jsonl", cfg.Source.Path)
	assert.Equal(t, 2, cfg.Engine.Lanes, "explicit flags win over files")
	assert.Equal(t, 100.0, cfg.Tracker.HighSpeed)
	assert.Equal(t, 50.0, cfg.Tracker.LowSpeed, "unset keys keep flag defaults")
	assert.Equal(t, BackendBadger, cfg.State.Backend)
	assert.Equal(t, "/var/lib/keyedwire", cfg.State.Dir)
}

func TestLoad_JSONFilesMergeInOrder(t *testing.T) {
	first := writeConfig(t, "a.json", `{"http": {"addr": ":8080"}, "log": {"level": "debug"}}`)
	second := writeConfig(t, "b.json", `{"log": {"level": "warn"}}`)

	cfg, err := Load([]string{"--config", first + "," + second})
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--nope"}},
		{"unsupported extension", []string{"--config", writeConfig(t, "config.toml", "")}},
		{"missing file", []string{"--config", filepath.Join(t.TempDir(), "missing.json")}},
		{"zero lanes", []string{"--engine.lanes=0"}},
		{"zero buffer", []string{"--engine.buffer_size=0"}},
		{"unknown backend", []string{"--state.backend=rocksdb"}},
		{"unknown compression", []string{"--checkpoint.compression=lz4"}},
		{"bad threshold", []string{"--tracker.threshold=0"}},
		{"inverted bands", []string{"--tracker.low_speed=90"}},
		{"persistent state without checkpoints", []string{"--state.backend=badger", "--state.dir=/tmp/state"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoad_BadgerInMemoryNeedsNoCheckpoints(t *testing.T) {
	cfg, err := Load([]string{"--state.backend=badger"})
	require.NoError(t, err)
	assert.Empty(t, cfg.State.Dir)
}

func TestUsage(t *testing.T) {
	assert.Contains(t, Usage(), "--engine.lanes")
}
