package sinks

import (
	"fmt"
	"io"

	"github.com/tarungka/keyedwire/stream"
)

// Sink types accepted in SinkConfig.Type.
const (
	TypePrint         = "print"
	TypeFile          = "file"
	TypeKafka         = "kafka"
	TypeElasticsearch = "elasticsearch"
)

// SinkConfig selects and configures where output records go.
type SinkConfig struct {
	Type          string              `koanf:"type" json:"type"`
	Path          string              `koanf:"path" json:"path"`
	Kafka         KafkaConfig         `koanf:",squash" json:"-"`
	Elasticsearch ElasticsearchConfig `koanf:",squash" json:"-"`
}

// New builds the sink described by cfg. An empty type prints to stdout.
func New(cfg SinkConfig, stdout io.Writer) (stream.Sink, error) {
	switch cfg.Type {
	case "", TypePrint:
		return NewPrintSink(stdout), nil
	case TypeFile:
		return NewFileSink(cfg.Path)
	case TypeKafka:
		return NewKafkaSink(cfg.Kafka)
	case TypeElasticsearch:
		return NewElasticsearchSink(cfg.Elasticsearch)
	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Type)
	}
}
