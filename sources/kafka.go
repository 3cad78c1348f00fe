package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/internal/logger"
	"github.com/tarungka/keyedwire/stream"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaConfig configures a KafkaSource.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	Group   string   `koanf:"group"`
	// MaxRecords stops the source after that many events. Zero reads until
	// the source is stopped.
	MaxRecords uint64 `koanf:"max_records"`
}

// KafkaSource consumes JSON encoded events from a topic. The record key is
// used as the event key when the payload has none, and the record timestamp
// when the payload has no "ts".
type KafkaSource struct {
	cfg    KafkaConfig
	logger zerolog.Logger

	client *kgo.Client

	mu  sync.Mutex
	err error
}

// NewKafkaSource creates the consumer client.
func NewKafkaSource(cfg KafkaConfig) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka source: brokers and topic are required")
	}
	l := logger.GetLogger("kafka-source")
	l.Debug().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Str("group", cfg.Group).Send()

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	if cfg.Group != "" {
		opts = append(opts, kgo.ConsumerGroup(cfg.Group))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		l.Err(err).Msg("error when creating a kafka consumer")
		return nil, err
	}
	return &KafkaSource{cfg: cfg, logger: l, client: client}, nil
}

// Open starts polling the topic.
func (k *KafkaSource) Open(ctx context.Context) (<-chan stream.Event, error) {
	out := make(chan stream.Event, 5)

	go func() {
		defer close(out)
		defer k.logger.Trace().Msg("done reading from the kafka source")

		var seq uint64
		for {
			fetches := k.client.PollFetches(ctx)
			if fetches.IsClientClosed() || ctx.Err() != nil {
				return
			}

			var fetchErr error
			fetches.EachError(func(t string, p int32, err error) {
				if errors.Is(err, context.Canceled) {
					return
				}
				k.logger.Err(err).Str("topic", t).Int32("partition", p).Msg("fetch error")
				if fetchErr == nil {
					fetchErr = fmt.Errorf("fetch %s[%d]: %w", t, p, err)
				}
			})
			if fetchErr != nil {
				k.setErr(fetchErr)
				return
			}

			iter := fetches.RecordIter()
			for !iter.Done() {
				record := iter.Next()

				ev, err := decodeRecord(record)
				if err != nil {
					k.setErr(fmt.Errorf("%s[%d]@%d: %w", record.Topic, record.Partition, record.Offset, err))
					return
				}

				select {
				case out <- ev.WithSeq(seq):
					seq++
				case <-ctx.Done():
					return
				}
				if k.cfg.MaxRecords > 0 && seq >= k.cfg.MaxRecords {
					k.logger.Info().Uint64("records", seq).Msg("max records reached")
					return
				}
			}
		}
	}()
	return out, nil
}

func decodeRecord(record *kgo.Record) (stream.Event, error) {
	var ev stream.Event
	if err := json.Unmarshal(record.Value, &ev); err != nil {
		return stream.Event{}, fmt.Errorf("%w: %v", stream.ErrInvalidEvent, err)
	}
	if ev.Key == "" {
		ev.Key = string(record.Key)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = record.Timestamp.UTC()
	}
	return ev, ev.Validate()
}

func (k *KafkaSource) setErr(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.err == nil {
		k.err = err
	}
}

// Err returns the error that stopped the source early, if any.
func (k *KafkaSource) Err() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.err
}

// Close closes the consumer client.
func (k *KafkaSource) Close() error {
	k.logger.Trace().Msg("disconnecting kafka source")
	k.client.Close()
	return nil
}
