package config

import (
	"fmt"
	"path/filepath"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"
	"github.com/tarungka/keyedwire/checkpoint"
	"github.com/tarungka/keyedwire/internal/logger"
	"github.com/tarungka/keyedwire/internal/tracker"
	"github.com/tarungka/keyedwire/sinks"
	"github.com/tarungka/keyedwire/sources"
)

// State backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

type EngineConfig struct {
	Lanes      int `koanf:"lanes"`
	BufferSize int `koanf:"buffer_size"`
	RateLimit  int `koanf:"rate_limit"`
}

type StateConfig struct {
	Backend string `koanf:"backend"`
	Dir     string `koanf:"dir"`
}

// CheckpointConfig enables checkpoints when Path is set.
type CheckpointConfig struct {
	Path        string `koanf:"path"`
	Every       uint64 `koanf:"every"`
	Compression string `koanf:"compression"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	Dev   bool   `koanf:"dev"`
	File  string `koanf:"file"`
}

// Config is the full runtime configuration. Values come from the config files
// in the order given, then from command line flags.
type Config struct {
	Source     sources.SourceConfig `koanf:"source"`
	Sink       sinks.SinkConfig     `koanf:"sink"`
	Engine     EngineConfig         `koanf:"engine"`
	Tracker    tracker.Config       `koanf:"tracker"`
	State      StateConfig          `koanf:"state"`
	Checkpoint CheckpointConfig     `koanf:"checkpoint"`
	HTTP       HTTPConfig           `koanf:"http"`
	Log        LogConfig            `koanf:"log"`
	Version    bool                 `koanf:"version"`
}

func newFlagSet() *flag.FlagSet {
	defaults := tracker.DefaultConfig()

	f := flag.NewFlagSet("keyedwire", flag.ContinueOnError)
	f.StringSlice("config", nil, "path to one or more config files (will be merged in order)")
	f.Bool("version", false, "show current version of the build")

	f.String("source.type", sources.TypeSample, "event source: sample, file, kafka or mongo")
	f.String("source.path", "", "JSON lines file read by the file source")
	f.StringSlice("source.brokers", nil, "kafka seed brokers")
	f.String("source.topic", "", "kafka topic to consume")
	f.String("source.group", "", "kafka consumer group")
	f.Uint64("source.max_records", 0, "stop the kafka source after this many records (0 = unbounded)")
	f.String("source.uri", "", "mongodb connection uri")
	f.String("source.database", "", "mongodb database")
	f.String("source.collection", "", "mongodb collection, read in _id order")
	f.String("source.key_field", "key", "document field holding the event key")
	f.String("source.value_field", "value", "document field holding the event value")
	f.String("source.time_field", "ts", "document field holding the event time")

	f.String("sink.type", sinks.TypePrint, "record sink: print, file, kafka or elasticsearch")
	f.String("sink.path", "", "JSON lines file written by the file sink")
	f.StringSlice("sink.brokers", nil, "kafka seed brokers")
	f.String("sink.topic", "", "kafka topic to produce to")
	f.StringSlice("sink.addresses", nil, "elasticsearch node addresses")
	f.String("sink.cloud_id", "", "elastic cloud id")
	f.String("sink.api_key", "", "elasticsearch api key")
	f.String("sink.index", "", "elasticsearch index")

	f.Int("engine.lanes", 1, "number of processing lanes; keys are pinned to a lane")
	f.Int("engine.buffer_size", 100, "buffered events per lane")
	f.Int("engine.rate_limit", 0, "max events per second taken from the source (0 = unlimited)")

	f.Int64("tracker.threshold", defaults.AlertThreshold, "consecutive high speeds that raise an alert")
	f.Float64("tracker.high_speed", defaults.HighSpeed, "speeds above this are HIGH_SPEED")
	f.Float64("tracker.low_speed", defaults.LowSpeed, "speeds below this are LOW_SPEED")

	f.String("state.backend", BackendMemory, "keyed state backend: memory or badger")
	f.String("state.dir", "", "badger directory (empty = in-memory badger)")

	f.String("checkpoint.path", "", "bolt file for checkpoints (empty disables checkpoints)")
	f.Uint64("checkpoint.every", 0, "checkpoint every N events (0 = only at the end of a run)")
	f.String("checkpoint.compression", "none", "checkpoint compression: none, snappy or zstd")

	f.String("http.addr", "", "address of the status server (empty disables it)")

	f.String("log.level", "info", "log level")
	f.Bool("log.dev", false, "human readable logs")
	f.String("log.file", "", "also write logs to this file")
	return f
}

// Load parses args (without the program name) into a Config.
func Load(args []string) (*Config, error) {
	log := logger.GetLogger("config")

	f := newFlagSet()
	if err := f.Parse(args); err != nil {
		return nil, err
	}

	ko := koanf.New(".")
	configs, _ := f.GetStringSlice("config")
	for _, path := range configs {
		log.Debug().Msgf("reading config from %s", path)

		var parser koanf.Parser
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config file extension: %s", path)
		}
		if err := ko.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("error reading config %s: %w", path, err)
		}
	}

	// Flags only override file values when set explicitly.
	if err := ko.Load(posflag.Provider(f, ".", ko), nil); err != nil {
		return nil, fmt.Errorf("error reading flag config: %w", err)
	}

	var cfg Config
	if err := ko.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.Lanes < 1 {
		return fmt.Errorf("engine.lanes must be at least 1, got %d", c.Engine.Lanes)
	}
	if c.Engine.BufferSize < 1 {
		return fmt.Errorf("engine.buffer_size must be at least 1, got %d", c.Engine.BufferSize)
	}
	switch c.State.Backend {
	case BackendMemory, BackendBadger:
	default:
		return fmt.Errorf("unknown state backend: %s", c.State.Backend)
	}
	// Persisted cells without a checkpoint offset would be replayed from the
	// first event and counted twice.
	if c.State.Backend == BackendBadger && c.State.Dir != "" && c.Checkpoint.Path == "" {
		return fmt.Errorf("state.dir requires checkpoint.path so a restart resumes after the events already applied")
	}
	if _, err := checkpoint.ParseCompression(c.Checkpoint.Compression); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := c.Tracker.Validate(); err != nil {
		return fmt.Errorf("tracker: %w", err)
	}
	return nil
}

// Usage returns the flag help text.
func Usage() string {
	return newFlagSet().FlagUsages()
}
