package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/state"
	"github.com/tarungka/keyedwire/stream"
)

// laneItem carries either an event or a checkpoint barrier.
type laneItem struct {
	key     string
	event   stream.Event
	barrier *stream.Barrier
	ack     chan<- int
}

// emitItem carries the records of one event to the emitter, or a barrier a
// lane forwards once all of its earlier records are queued.
type emitItem struct {
	records []stream.OutputRecord
	ack     chan<- int
	lane    int
}

// lane is a single goroutine that owns a subset of the keys. Every event of a
// key goes through the same lane, so a key's state has exactly one writer and
// its events are processed in arrival order.
type lane struct {
	id     int
	in     chan laneItem
	logger zerolog.Logger
}

func newLane(id, bufferSize int, logger zerolog.Logger) *lane {
	return &lane{
		id:     id,
		in:     make(chan laneItem, bufferSize),
		logger: logger.With().Int("lane", id).Logger(),
	}
}

func (e *Engine) runLane(ctx context.Context, l *lane) {
	l.logger.Debug().Msg("lane started")

	for item := range l.in {
		if item.barrier != nil {
			select {
			case e.out <- emitItem{ack: item.ack, lane: l.id}:
			case <-e.abort:
			}
			continue
		}
		if e.aborted() {
			e.metrics.IncrementEventsDropped()
			continue
		}

		startTime := time.Now()
		records, err := e.invoke(ctx, item)
		e.metrics.RecordProcessingTime(time.Since(startTime))

		if err != nil {
			e.metrics.IncrementFailures()
			l.logger.Error().
				Err(err).
				Str("key", item.key).
				Uint64("seq", item.event.Seq).
				Msg("process function failed")
			e.fail(&ProcessFunctionError{
				Key:       item.key,
				Timestamp: item.event.Timestamp,
				Seq:       item.event.Seq,
				Cause:     err,
			})
			continue
		}
		e.metrics.IncrementEventsProcessed()
		l.logger.Trace().Str("key", item.key).Uint64("seq", item.event.Seq).Int("records", len(records)).Msg("event processed")

		if len(records) == 0 {
			continue
		}
		select {
		case e.out <- emitItem{records: records}:
		case <-e.abort:
		}
	}

	l.logger.Debug().Msg("lane stopped")
}

// invoke runs the ProcessFunction with a handle scoped to the event's key. A
// panic is turned into an error so it can be attributed like any failure.
func (e *Engine) invoke(ctx context.Context, item laneItem) (records []stream.OutputRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.fn.Process(ctx, item.event, state.NewHandle(e.store, item.key))
}

// emit is the only goroutine that writes to the sink. Records of one event
// stay contiguous and in emission order. A barrier is acknowledged only after
// the sink accepted every record queued before it.
func (e *Engine) emit(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for item := range e.out {
		if e.aborted() {
			continue
		}
		if item.ack != nil {
			if err := e.flushSink(); err != nil {
				e.metrics.IncrementFailures()
				e.logger.Error().Err(err).Int("lane", item.lane).Msg("sink flush failed")
				e.fail(err)
				continue
			}
			item.ack <- item.lane
			continue
		}
		for _, r := range item.records {
			if err := e.sink.Write(ctx, r); err != nil {
				e.metrics.IncrementFailures()
				e.logger.Error().Err(err).Str("key", r.Key).Uint64("seq", r.Seq).Msg("sink rejected record")
				e.fail(&SinkRejectionError{Record: r, Cause: err})
				break
			}
			e.metrics.IncrementRecordsOut()
			if r.IsAlert() {
				e.metrics.IncrementAlerts()
			}
		}
	}
}

func (e *Engine) flushSink() error {
	f, ok := e.sink.(stream.Flusher)
	if !ok {
		return nil
	}
	if err := f.Flush(); err != nil {
		return fmt.Errorf("flush sink: %w", err)
	}
	return nil
}
