package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/internal/logger"
	"github.com/tarungka/keyedwire/stream"
)

// ElasticsearchConfig configures an ElasticsearchSink. Either Addresses or
// CloudID selects the cluster.
type ElasticsearchConfig struct {
	Addresses []string `koanf:"addresses"`
	CloudID   string   `koanf:"cloud_id"`
	APIKey    string   `koanf:"api_key"`
	Index     string   `koanf:"index"`

	// Transport overrides the HTTP transport of the client.
	Transport http.RoundTripper `koanf:"-"`
}

// ElasticsearchSink indexes one document per record. Each Write waits for the
// cluster's answer, so a rejected document stops the run like any other sink
// error.
//
// Document IDs are derived from the record key, its Seq and its position
// among the records of that event, so records emitted again after a recovery
// overwrite their earlier copies instead of duplicating them.
type ElasticsearchSink struct {
	index  string
	client *elasticsearch.Client
	logger zerolog.Logger

	lastSeq uint64
	n       int
}

// NewElasticsearchSink creates the client.
func NewElasticsearchSink(cfg ElasticsearchConfig) (*ElasticsearchSink, error) {
	if cfg.Index == "" || (len(cfg.Addresses) == 0 && cfg.CloudID == "") {
		return nil, fmt.Errorf("elasticsearch sink: index and addresses or cloud_id are required")
	}
	l := logger.GetLogger("elasticsearch-sink").With().Str("index", cfg.Index).Logger()

	l.Trace().Msg("connecting to elasticsearch")
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		CloudID:   cfg.CloudID,
		APIKey:    cfg.APIKey,
		Transport: cfg.Transport,
	})
	if err != nil {
		l.Err(err).Msg("error when creating the elasticsearch client")
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &ElasticsearchSink{index: cfg.Index, client: client, logger: l}, nil
}

// Write indexes the record and returns an error unless the cluster accepted
// it.
func (s *ElasticsearchSink) Write(ctx context.Context, record stream.OutputRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}

	// the engine writes the records of one event back to back
	if s.n > 0 && record.Seq == s.lastSeq {
		s.n++
	} else {
		s.lastSeq, s.n = record.Seq, 1
	}
	id := fmt.Sprintf("%s-%d-%d", record.Key, record.Seq, s.n-1)

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		s.logger.Err(err).Str("id", id).Msg("error getting response")
		return fmt.Errorf("index %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		reason, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		s.logger.Error().Str("status", res.Status()).Str("id", id).Msg("error indexing document")
		return fmt.Errorf("index %s: %s: %s", id, res.Status(), bytes.TrimSpace(reason))
	}
	s.logger.Trace().Str("status", res.Status()).Str("id", id).Msg("indexed document")
	return nil
}

// Close is a no-op; every Write already waited for the cluster.
func (s *ElasticsearchSink) Close() error {
	s.logger.Info().Msg("closing elasticsearch sink")
	return nil
}
