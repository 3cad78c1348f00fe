package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/internal/logger"
	"github.com/tarungka/keyedwire/stream"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig configures a MongoSource. The field names say which document
// fields hold the event key, value and timestamp.
type MongoConfig struct {
	URI        string `koanf:"uri"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
	KeyField   string `koanf:"key_field"`
	ValueField string `koanf:"value_field"`
	TimeField  string `koanf:"time_field"`
}

func (c *MongoConfig) setDefaults() {
	if c.KeyField == "" {
		c.KeyField = "key"
	}
	if c.ValueField == "" {
		c.ValueField = "value"
	}
	if c.TimeField == "" {
		c.TimeField = "ts"
	}
}

// MongoSource reads a collection once, sorted by _id, so repeated runs see
// the same documents in the same order and the cursor position can serve as
// the event Seq.
type MongoSource struct {
	cfg    MongoConfig
	logger zerolog.Logger
	client *mongo.Client

	mu  sync.Mutex
	err error
}

// NewMongoSource creates the client. The driver connects lazily, so an
// unreachable server surfaces from the first read.
func NewMongoSource(cfg MongoConfig) (*MongoSource, error) {
	if cfg.URI == "" || cfg.Database == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("mongo source: uri, database and collection are required")
	}
	cfg.setDefaults()
	l := logger.GetLogger("mongo-source").With().Str("database", cfg.Database).Str("collection", cfg.Collection).Logger()

	l.Trace().Msg("connecting to mongodb")
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.URI))
	if err != nil {
		l.Err(err).Msg("error when connecting to mongodb")
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	return &MongoSource{cfg: cfg, logger: l, client: client}, nil
}

// Open runs the query and streams the documents as events.
func (m *MongoSource) Open(ctx context.Context) (<-chan stream.Event, error) {
	coll := m.client.Database(m.cfg.Database).Collection(m.cfg.Collection)
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.D{
			{Key: m.cfg.KeyField, Value: 1},
			{Key: m.cfg.ValueField, Value: 1},
			{Key: m.cfg.TimeField, Value: 1},
		})
	cursor, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		m.logger.Err(err).Msg("find failed")
		return nil, fmt.Errorf("query %s.%s: %w", m.cfg.Database, m.cfg.Collection, err)
	}

	out := make(chan stream.Event, 5)
	go func() {
		defer close(out)
		defer cursor.Close(context.Background())

		var seq uint64
		for cursor.Next(ctx) {
			var doc bson.M
			if err := cursor.Decode(&doc); err != nil {
				m.setErr(fmt.Errorf("document %d: %w", seq, err))
				return
			}
			ev, err := decodeDocument(doc, m.cfg)
			if err != nil {
				m.setErr(fmt.Errorf("document %d: %w", seq, err))
				return
			}
			select {
			case out <- ev.WithSeq(seq):
				seq++
			case <-ctx.Done():
				return
			}
		}
		if err := cursor.Err(); err != nil && ctx.Err() == nil {
			m.setErr(fmt.Errorf("cursor: %w", err))
		}
		m.logger.Debug().Uint64("documents", seq).Msg("done reading from mongodb")
	}()
	return out, nil
}

func decodeDocument(doc bson.M, cfg MongoConfig) (stream.Event, error) {
	key, _ := doc[cfg.KeyField].(string)

	var value float64
	switch v := doc[cfg.ValueField].(type) {
	case float64:
		value = v
	case int32:
		value = float64(v)
	case int64:
		value = float64(v)
	default:
		return stream.Event{}, fmt.Errorf("%w: field %q is %T, not a number", stream.ErrInvalidEvent, cfg.ValueField, v)
	}

	var ts time.Time
	switch t := doc[cfg.TimeField].(type) {
	case primitive.DateTime:
		ts = t.Time().UTC()
	case time.Time:
		ts = t.UTC()
	}
	return stream.NewEvent(key, value, ts)
}

func (m *MongoSource) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err == nil {
		m.err = err
	}
}

// Err returns the error that stopped the source early, if any.
func (m *MongoSource) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Close disconnects the client.
func (m *MongoSource) Close() error {
	m.logger.Trace().Msg("disconnecting from mongodb")
	return m.client.Disconnect(context.Background())
}
