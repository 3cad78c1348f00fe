package sinks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/tarungka/keyedwire/stream"
)

// PrintSink writes one "(key, value, CLASS, VERDICT)" line per record.
type PrintSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrintSink creates a sink printing to w.
func NewPrintSink(w io.Writer) *PrintSink {
	return &PrintSink{w: w}
}

func (p *PrintSink) Write(_ context.Context, record stream.OutputRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.w, record.String())
	return err
}

// Close does nothing, the writer belongs to the caller.
func (p *PrintSink) Close() error {
	return nil
}
