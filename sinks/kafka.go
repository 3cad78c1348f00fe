package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/internal/logger"
	"github.com/tarungka/keyedwire/stream"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaConfig configures a KafkaSink.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// KafkaSink produces each record as JSON, keyed by the record key so that a
// key's records land on one partition in order.
type KafkaSink struct {
	topic  string
	logger zerolog.Logger
	client *kgo.Client
}

// NewKafkaSink creates the producer client.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka sink: brokers and topic are required")
	}
	l := logger.GetLogger("kafka-sink")
	l.Debug().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Send()

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		l.Err(err).Msg("error when creating a kafka producer")
		return nil, err
	}
	return &KafkaSink{topic: cfg.Topic, logger: l, client: client}, nil
}

// Write blocks until the broker acknowledged the record.
func (k *KafkaSink) Write(ctx context.Context, record stream.OutputRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	r := &kgo.Record{Key: []byte(record.Key), Value: value}
	if err := k.client.ProduceSync(ctx, r).FirstErr(); err != nil {
		k.logger.Err(err).Str("key", record.Key).Msg("record had a produce error")
		return err
	}
	k.logger.Trace().Str("key", record.Key).Int64("offset", r.Offset).Msg("successfully produced record")
	return nil
}

// Close flushes pending records and closes the client.
func (k *KafkaSink) Close() error {
	k.logger.Info().Msg("disconnecting kafka sink")
	defer k.client.Close()
	return k.client.Flush(context.Background())
}
