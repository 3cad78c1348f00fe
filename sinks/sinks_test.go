package sinks

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/keyedwire/stream"
)

var records = []stream.OutputRecord{
	{Key: "sensor_B", Value: 80, Classification: stream.HighSpeed, Verdict: "ALERT_2", Timestamp: time.Unix(3, 0).UTC(), Seq: 3},
	{Key: "sensor_C", Value: 40, Classification: stream.LowSpeed, Verdict: "NORMAL", Timestamp: time.Unix(4, 0).UTC(), Seq: 4},
}

func TestPrintSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewPrintSink(&buf)
	for _, r := range records {
		require.NoError(t, sink.Write(context.Background(), r))
	}
	require.NoError(t, sink.Close())

	assert.Equal(t, "(sensor_B, 80, HIGH_SPEED, ALERT_2)\n(sensor_C, 40, LOW_SPEED, NORMAL)\n", buf.String())
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "records.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	for _, r := range records {
		require.NoError(t, sink.Write(context.Background(), r))
	}
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close(), "closing twice is a no-op")
	assert.ErrorIs(t, sink.Write(context.Background(), records[0]), os.ErrClosed)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []stream.OutputRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r stream.OutputRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		got = append(got, r)
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, records, got)
}

func TestFileSink_Flush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	var _ stream.Flusher = sink

	require.NoError(t, sink.Write(context.Background(), records[0]))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data, "records stay buffered until flushed")

	require.NoError(t, sink.Flush())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(data, []byte("\n")))

	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Flush(), os.ErrClosed)
}

func TestFileSink_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	for i := 0; i < 2; i++ {
		sink, err := NewFileSink(path)
		require.NoError(t, err)
		require.NoError(t, sink.Write(context.Background(), records[i]))
		require.NoError(t, sink.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte("\n")))
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	sink, err := New(SinkConfig{}, &buf)
	require.NoError(t, err)
	assert.IsType(t, &PrintSink{}, sink)

	sink, err = New(SinkConfig{Type: TypeFile, Path: filepath.Join(t.TempDir(), "x.jsonl")}, &buf)
	require.NoError(t, err)
	assert.IsType(t, &FileSink{}, sink)
	require.NoError(t, sink.Close())

	_, err = New(SinkConfig{Type: TypeFile}, &buf)
	assert.Error(t, err)

	_, err = New(SinkConfig{Type: TypeKafka, Kafka: KafkaConfig{Topic: "out"}}, &buf)
	assert.Error(t, err)

	_, err = New(SinkConfig{Type: TypeElasticsearch, Elasticsearch: ElasticsearchConfig{Addresses: []string{"http://localhost:9200"}}}, &buf)
	assert.Error(t, err, "elasticsearch needs an index")

	sink, err = New(SinkConfig{Type: TypeElasticsearch, Elasticsearch: ElasticsearchConfig{Addresses: []string{"http://localhost:9200"}, Index: "speeds"}}, &buf)
	require.NoError(t, err)
	assert.IsType(t, &ElasticsearchSink{}, sink)

	_, err = New(SinkConfig{Type: "carrier-pigeon"}, &buf)
	assert.EqualError(t, err, "unknown sink type: carrier-pigeon")
}
