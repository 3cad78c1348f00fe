package sources

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/internal/logger"
	"github.com/tarungka/keyedwire/stream"
)

// FileSource reads events from a file of JSON lines, one
// {"key": ..., "value": ..., "ts": ...} object per line. Blank lines are
// skipped. A malformed line stops the source and is reported by Err.
type FileSource struct {
	path   string
	logger zerolog.Logger

	mu   sync.Mutex
	file *os.File
	err  error
}

// NewFileSource creates a source over the file at path. The file is opened by
// Open.
func NewFileSource(path string) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("file source: missing path")
	}
	return &FileSource{
		path:   path,
		logger: logger.GetLogger("file-source").With().Str("path", path).Logger(),
	}, nil
}

// Open opens the file and starts delivering its events.
func (f *FileSource) Open(ctx context.Context) (<-chan stream.Event, error) {
	file, err := os.Open(f.path)
	if err != nil {
		f.logger.Err(err).Msg("failed to open file")
		return nil, fmt.Errorf("file source: %w", err)
	}
	f.mu.Lock()
	f.file = file
	f.mu.Unlock()

	out := make(chan stream.Event)
	go func() {
		defer close(out)

		scanner := bufio.NewScanner(file)
		var line int
		var seq uint64
		for scanner.Scan() {
			line++
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}

			var ev stream.Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				f.setErr(fmt.Errorf("line %d: %w: %v", line, stream.ErrInvalidEvent, err))
				return
			}
			if err := ev.Validate(); err != nil {
				f.setErr(fmt.Errorf("line %d: %w", line, err))
				return
			}

			select {
			case out <- ev.WithSeq(seq):
				seq++
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			f.setErr(fmt.Errorf("read %s: %w", f.path, err))
			return
		}
		f.logger.Debug().Uint64("events", seq).Msg("reached end of file")
	}()
	return out, nil
}

func (f *FileSource) setErr(err error) {
	f.logger.Err(err).Msg("file source stopped")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

// Err returns the error that stopped the source early, if any.
func (f *FileSource) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close closes the underlying file.
func (f *FileSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
