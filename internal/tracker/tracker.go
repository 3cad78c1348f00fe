package tracker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/stream"
)

// Config holds the tracker thresholds.
type Config struct {
	// AlertThreshold is the consecutive high-speed count at which a reading
	// becomes an alert instead of a warning.
	AlertThreshold int64 `koanf:"threshold"`
	// HighSpeed is the exclusive lower bound of the HIGH_SPEED band.
	HighSpeed float64 `koanf:"high_speed"`
	// LowSpeed is the exclusive upper bound of the LOW_SPEED band.
	LowSpeed float64 `koanf:"low_speed"`
}

// DefaultConfig alerts after 2 consecutive readings above 70.
func DefaultConfig() Config {
	return Config{
		AlertThreshold: 2,
		HighSpeed:      70,
		LowSpeed:       50,
	}
}

// Validate rejects thresholds that cannot classify a reading.
func (c Config) Validate() error {
	if c.AlertThreshold < 1 {
		return fmt.Errorf("alert threshold must be at least 1, got %d", c.AlertThreshold)
	}
	if c.LowSpeed > c.HighSpeed {
		return fmt.Errorf("low speed bound %v is above high speed bound %v", c.LowSpeed, c.HighSpeed)
	}
	return nil
}

// HighSpeedTracker counts consecutive high-speed readings per key and emits
// one record per reading with a NORMAL, WARNING_<n> or ALERT_<n> verdict.
type HighSpeedTracker struct {
	cfg    Config
	logger zerolog.Logger
}

var _ stream.ProcessFunction = (*HighSpeedTracker)(nil)

// New creates a tracker.
func New(cfg Config, logger zerolog.Logger) (*HighSpeedTracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HighSpeedTracker{cfg: cfg, logger: logger}, nil
}

// Classify puts a speed into its band. Both bounds are exclusive, so the
// bounds themselves are NORMAL.
func (t *HighSpeedTracker) Classify(speed float64) stream.Classification {
	switch {
	case speed > t.cfg.HighSpeed:
		return stream.HighSpeed
	case speed < t.cfg.LowSpeed:
		return stream.LowSpeed
	default:
		return stream.Normal
	}
}

// Process updates the key's consecutive high-speed count and emits exactly one
// record.
func (t *HighSpeedTracker) Process(_ context.Context, event stream.Event, state stream.ValueState) ([]stream.OutputRecord, error) {
	class := t.Classify(event.Value)

	count, _, err := state.Value()
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}

	verdict := stream.VerdictNormal
	if class == stream.HighSpeed {
		count++
		if err := state.Update(count); err != nil {
			return nil, fmt.Errorf("update count: %w", err)
		}
		if count >= t.cfg.AlertThreshold {
			verdict = stream.AlertVerdict(count)
			t.logger.Warn().
				Str("key", event.Key).
				Int64("consecutive", count).
				Float64("speed", event.Value).
				Msgf("ALERT: %s has %d consecutive high speeds", event.Key, count)
		} else {
			verdict = stream.WarningVerdict(count)
		}
	} else {
		if err := state.Update(0); err != nil {
			return nil, fmt.Errorf("reset count: %w", err)
		}
	}

	return []stream.OutputRecord{{
		Key:            event.Key,
		Value:          event.Value,
		Classification: class,
		Verdict:        verdict,
		Timestamp:      event.Timestamp,
		Seq:            event.Seq,
	}}, nil
}
