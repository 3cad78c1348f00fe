package state

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/internal/codec"
	"github.com/tarungka/keyedwire/internal/logger"
)

var cellPrefix = []byte("cell/")

func cellKey(key string) []byte {
	k := make([]byte, 0, len(cellPrefix)+len(key))
	k = append(k, cellPrefix...)
	return append(k, key...)
}

// BadgerConfig configures a BadgerStore. An empty Dir opens an in-memory
// database.
type BadgerConfig struct {
	Dir      string
	InMemory bool
}

// BadgerStore is a Store backed by badger, so keyed state can outlive the
// process. Cells are msgpack encoded under the "cell/" prefix.
type BadgerStore struct {
	open atomic.Bool

	dbPath string
	logger zerolog.Logger

	db *badger.DB
}

// OpenBadger opens (or creates) the database described by c.
func OpenBadger(c BadgerConfig) (*BadgerStore, error) {
	newLogger := logger.GetLogger("badger-state")

	var opts badger.Options
	if c.InMemory || c.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(c.Dir)
	}
	opts = opts.WithLogger(badgerLogger{newLogger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger state store: %w", err)
	}

	s := &BadgerStore{
		dbPath: c.Dir,
		logger: newLogger,
		db:     db,
	}
	s.open.Store(true)
	if c.Dir == "" {
		newLogger.Debug().Msg("opened an in-memory state store")
	} else {
		newLogger.Debug().Str("path", c.Dir).Msg("opened a file-based state store")
	}
	return s, nil
}

// Get returns the cell for key.
func (s *BadgerStore) Get(key string) (StateCell, error) {
	if !s.open.Load() {
		return StateCell{}, ErrStoreClosed
	}

	cell := absent(key)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cellKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return codec.DecodeMsgPack(val, &cell)
		})
	})
	if err != nil {
		s.logger.Err(err).Str("key", key).Msg("err reading state cell")
		return StateCell{}, err
	}
	return cell, nil
}

// Update sets the value of key. The read of the previous version and the write
// happen in one transaction.
func (s *BadgerStore) Update(key string, value int64) error {
	if !s.open.Load() {
		return ErrStoreClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		cell := absent(key)
		item, err := txn.Get(cellKey(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				return codec.DecodeMsgPack(val, &cell)
			}); err != nil {
				return err
			}
		}

		cell.Value = value
		cell.Present = true
		cell.Version++
		buf, err := codec.EncodeMsgPack(cell)
		if err != nil {
			return err
		}
		return txn.Set(cellKey(key), buf)
	})
	if err != nil {
		s.logger.Err(err).Str("key", key).Int64("value", value).Msg("err updating state cell")
		return err
	}
	s.logger.Trace().Str("key", key).Int64("value", value).Msg("state cell updated")
	return nil
}

// Clear removes the cell for key.
func (s *BadgerStore) Clear(key string) error {
	if !s.open.Load() {
		return ErrStoreClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(cellKey(key))
	})
}

// Keys returns the keys with a cell.
func (s *BadgerStore) Keys() ([]string, error) {
	if !s.open.Load() {
		return nil, ErrStoreClosed
	}

	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = cellPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(cellPrefix); it.ValidForPrefix(cellPrefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			keys = append(keys, string(k[len(cellPrefix):]))
		}
		return nil
	})
	return keys, err
}

// Snapshot copies all cells.
func (s *BadgerStore) Snapshot() (map[string]StateCell, error) {
	if !s.open.Load() {
		return nil, ErrStoreClosed
	}

	out := make(map[string]StateCell)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = cellPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(cellPrefix); it.ValidForPrefix(cellPrefix); it.Next() {
			var cell StateCell
			if err := it.Item().Value(func(val []byte) error {
				return codec.DecodeMsgPack(val, &cell)
			}); err != nil {
				return err
			}
			out[cell.Key] = cell
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Restore replaces the store content with cells.
func (s *BadgerStore) Restore(cells map[string]StateCell) error {
	if !s.open.Load() {
		return ErrStoreClosed
	}

	if err := s.db.DropPrefix(cellPrefix); err != nil {
		return fmt.Errorf("drop state cells: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for k, cell := range cells {
		cell.Key = k
		buf, err := codec.EncodeMsgPack(cell)
		if err != nil {
			return err
		}
		if err := wb.Set(cellKey(k), buf); err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("restore state cells: %w", err)
	}
	s.logger.Info().Int("cells", len(cells)).Msg("state store restored")
	return nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	if !s.open.CompareAndSwap(true, false) {
		return nil
	}
	return s.db.Close()
}

// badgerLogger routes badger's own logging through zerolog.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{}) {
	b.l.Error().Msgf(strings.TrimSpace(f), v...)
}

func (b badgerLogger) Warningf(f string, v ...interface{}) {
	b.l.Warn().Msgf(strings.TrimSpace(f), v...)
}

func (b badgerLogger) Infof(f string, v ...interface{}) {
	b.l.Debug().Msgf(strings.TrimSpace(f), v...)
}

func (b badgerLogger) Debugf(f string, v ...interface{}) {
	b.l.Trace().Msgf(strings.TrimSpace(f), v...)
}
