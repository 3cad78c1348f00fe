package sources

import (
	"fmt"

	"github.com/tarungka/keyedwire/stream"
)

// Source types accepted in SourceConfig.Type.
const (
	TypeSample = "sample"
	TypeFile   = "file"
	TypeKafka  = "kafka"
	TypeMongo  = "mongo"
)

// SourceConfig selects and configures the event source.
type SourceConfig struct {
	Type  string      `koanf:"type" json:"type"`
	Path  string      `koanf:"path" json:"path"`
	Kafka KafkaConfig `koanf:",squash" json:"-"`
	Mongo MongoConfig `koanf:",squash" json:"-"`
}

// New builds the source described by cfg. An empty type means the sample
// dataset.
func New(cfg SourceConfig) (stream.Source, error) {
	switch cfg.Type {
	case "", TypeSample:
		return SampleDataset(), nil
	case TypeFile:
		return NewFileSource(cfg.Path)
	case TypeKafka:
		return NewKafkaSource(cfg.Kafka)
	case TypeMongo:
		return NewMongoSource(cfg.Mongo)
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}
