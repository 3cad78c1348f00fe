package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/tarungka/keyedwire/stream"
)

var (
	// ErrAlreadyStarted is returned by Run on an engine that left CREATED.
	ErrAlreadyStarted = errors.New("engine already started")
	// ErrTerminated is returned once the engine reached TERMINATED.
	ErrTerminated = errors.New("engine terminated")

	errAborted = errors.New("run aborted")
)

// ProcessFunctionError reports a ProcessFunction failure, attributed to the
// event that caused it. It is fatal to the run.
type ProcessFunctionError struct {
	Key       string
	Timestamp time.Time
	Seq       uint64
	Cause     error
}

func (e *ProcessFunctionError) Error() string {
	return fmt.Sprintf("process function failed for key %q at %s (seq %d): %v",
		e.Key, e.Timestamp.Format(time.RFC3339Nano), e.Seq, e.Cause)
}

func (e *ProcessFunctionError) Unwrap() error {
	return e.Cause
}

// SinkRejectionError reports a record the sink refused. It is fatal to the run.
type SinkRejectionError struct {
	Record stream.OutputRecord
	Cause  error
}

func (e *SinkRejectionError) Error() string {
	return fmt.Sprintf("sink rejected record %s (seq %d): %v", e.Record, e.Record.Seq, e.Cause)
}

func (e *SinkRejectionError) Unwrap() error {
	return e.Cause
}
