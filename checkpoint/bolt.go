package checkpoint

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/internal/codec"
	"github.com/tarungka/keyedwire/internal/logger"
	bolt "go.etcd.io/bbolt"
)

var checkpointsBucket = []byte("checkpoints")

// BoltBackend stores checkpoints in a bbolt file, keyed by the big-endian ID
// so the cursor's last entry is the latest checkpoint.
type BoltBackend struct {
	db          *bolt.DB
	path        string
	compression Compression
	logger      zerolog.Logger
}

// BoltOption configures a BoltBackend.
type BoltOption func(*BoltBackend)

// WithCompression compresses checkpoints written from now on. Existing
// checkpoints stay readable whatever codec they were written with.
func WithCompression(c Compression) BoltOption {
	return func(b *BoltBackend) {
		b.compression = c
	}
}

// OpenBolt opens (or creates) the checkpoint file at path.
func OpenBolt(path string, opts ...BoltOption) (*BoltBackend, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint file %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(checkpointsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoints bucket: %w", err)
	}

	b := &BoltBackend{db: db, path: path, logger: logger.GetLogger("checkpoint-bolt")}
	for _, opt := range opts {
		opt(b)
	}
	b.logger.Debug().Str("path", path).Stringer("compression", b.compression).Msg("opened checkpoint file")
	return b, nil
}

// Save writes the checkpoint.
func (b *BoltBackend) Save(cp *Checkpoint) error {
	buf, err := codec.EncodeMsgPack(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint %d: %w", cp.ID, err)
	}
	if buf, err = b.compression.compress(buf); err != nil {
		return fmt.Errorf("compress checkpoint %d: %w", cp.ID, err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointsBucket).Put(codec.Uint64ToBytes(uint64(cp.ID)), buf)
	})
}

// Load reads the checkpoint with the given ID.
func (b *BoltBackend) Load(id int64) (*Checkpoint, error) {
	var cp *Checkpoint
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(checkpointsBucket).Get(codec.Uint64ToBytes(uint64(id)))
		if v == nil {
			return fmt.Errorf("%w: id %d", ErrNoCheckpoint, id)
		}
		var err error
		cp, err = decode(v)
		return err
	})
	return cp, err
}

// Latest reads the checkpoint with the highest ID.
func (b *BoltBackend) Latest() (*Checkpoint, error) {
	var cp *Checkpoint
	err := b.db.View(func(tx *bolt.Tx) error {
		_, v := tx.Bucket(checkpointsBucket).Cursor().Last()
		if v == nil {
			return ErrNoCheckpoint
		}
		var err error
		cp, err = decode(v)
		return err
	})
	return cp, err
}

// Close closes the file.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}

func decode(v []byte) (*Checkpoint, error) {
	raw, err := decompress(v)
	if err != nil {
		return nil, fmt.Errorf("decompress checkpoint: %w", err)
	}
	cp := &Checkpoint{}
	if err := codec.DecodeMsgPack(raw, cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return cp, nil
}
