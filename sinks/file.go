package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/internal/logger"
	"github.com/tarungka/keyedwire/stream"
)

// FileSink appends records to a file as JSON lines.
type FileSink struct {
	path   string
	logger zerolog.Logger

	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
}

// NewFileSink opens path for appending, creating parent directories as
// needed.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("file sink: missing path")
	}
	l := logger.GetLogger("file-sink").With().Str("file_path", path).Logger()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.Err(err).Str("directory", dir).Msg("failed to create parent directories")
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		l.Warn().Msg("file already exists; appending to it")
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.Err(err).Msg("failed to open file")
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return &FileSink{
		path:   path,
		logger: l,
		file:   file,
		buf:    bufio.NewWriter(file),
	}, nil
}

func (f *FileSink) Write(_ context.Context, record stream.OutputRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return os.ErrClosed
	}
	if _, err := f.buf.Write(append(data, '\n')); err != nil {
		f.logger.Err(err).Msg("failed to write to file")
		return err
	}
	return nil
}

// Flush writes buffered records to the file.
func (f *FileSink) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return os.ErrClosed
	}
	if err := f.buf.Flush(); err != nil {
		f.logger.Err(err).Msg("failed to flush file")
		return err
	}
	return nil
}

// Close flushes buffered records and closes the file.
func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	f.logger.Info().Msg("closing file sink")

	flushErr := f.buf.Flush()
	closeErr := f.file.Close()
	f.file = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
