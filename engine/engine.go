package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/checkpoint"
	"github.com/tarungka/keyedwire/internal/logger"
	"github.com/tarungka/keyedwire/internal/partitioner"
	"github.com/tarungka/keyedwire/state"
	"github.com/tarungka/keyedwire/stream"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Status is the lifecycle state of an Engine.
type Status int32

const (
	StatusCreated Status = iota
	StatusRunning
	StatusDraining
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "CREATED"
	case StatusRunning:
		return "RUNNING"
	case StatusDraining:
		return "DRAINING"
	case StatusTerminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

type stopReason int

const (
	sourceExhausted stopReason = iota
	stopRequested
	contextDone
	runAborted
)

// Option configures an Engine.
type Option func(*Engine)

// WithPartitioner sets how events are keyed and spread over lanes.
func WithPartitioner(p *partitioner.KeyPartitioner) Option {
	return func(e *Engine) {
		if p != nil {
			e.partitioner = p
		}
	}
}

// WithCheckpoints snapshots the store through m every `every` events and when
// the run finishes without error.
func WithCheckpoints(m *checkpoint.Manager, every uint64) Option {
	return func(e *Engine) {
		e.checkpoints = m
		e.checkpointEvery = every
	}
}

// WithStartOffset skips events whose Seq is below offset. Use the Offset of a
// restored checkpoint so the events it already reflects are not applied twice.
func WithStartOffset(offset uint64) Option {
	return func(e *Engine) {
		e.startOffset = offset
	}
}

// WithRateLimit caps how many events per second are taken from the source.
// Zero or less means unlimited.
func WithRateLimit(perSec int) Option {
	return func(e *Engine) {
		if perSec > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
		}
	}
}

// WithOwnedStore makes the engine close the store when it terminates.
func WithOwnedStore() Option {
	return func(e *Engine) {
		e.ownsStore = true
	}
}

// WithLogger replaces the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// Engine runs one pipeline: source -> partition by key -> ProcessFunction with
// keyed state -> sink. Events of a key are processed strictly in arrival order
// by a single lane; different keys may be processed concurrently.
type Engine struct {
	runID       string
	source      stream.Source
	fn          stream.ProcessFunction
	store       state.Store
	sink        stream.Sink
	partitioner *partitioner.KeyPartitioner
	limiter     *rate.Limiter
	ownsStore   bool
	startOffset uint64

	checkpoints     *checkpoint.Manager
	checkpointEvery uint64
	coordinator     *CheckpointCoordinator

	status   atomic.Int32
	stopCh   chan struct{}
	stopOnce sync.Once

	abort     chan struct{}
	abortOnce sync.Once
	errMu     sync.Mutex
	err       error

	lanes       []*lane
	out         chan emitItem
	sinkOnce    sync.Once
	sinkErr     error
	releaseOnce sync.Once

	metrics *Metrics
	logger  zerolog.Logger
}

// New creates an engine in the CREATED state.
func New(source stream.Source, fn stream.ProcessFunction, store state.Store, sink stream.Sink, opts ...Option) *Engine {
	runID, err := uuid.NewV7()
	if err != nil {
		runID = uuid.New()
	}

	e := &Engine{
		runID:       runID.String(),
		source:      source,
		fn:          fn,
		store:       store,
		sink:        sink,
		partitioner: partitioner.New(),
		stopCh:      make(chan struct{}),
		abort:       make(chan struct{}),
		metrics:     NewMetrics(),
	}
	e.logger = logger.GetLogger("engine").With().Str("run_id", e.runID).Logger()

	for _, opt := range opts {
		opt(e)
	}
	if e.checkpoints != nil {
		e.coordinator = NewCheckpointCoordinator(e.checkpoints, e.checkpointEvery, e.logger)
	}

	e.lanes = make([]*lane, e.partitioner.Lanes())
	for i := range e.lanes {
		e.lanes[i] = newLane(i, e.partitioner.BufferSize(), e.logger)
	}
	e.out = make(chan emitItem, e.partitioner.BufferSize())
	return e
}

// RunID identifies this engine instance in logs and checkpoints.
func (e *Engine) RunID() string {
	return e.runID
}

// Status returns the current lifecycle state.
func (e *Engine) Status() Status {
	return Status(e.status.Load())
}

// Stats returns the run counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		RunID:      e.runID,
		Status:     e.Status().String(),
		LaneDepths: make([]int, len(e.lanes)),
	}
	e.metrics.fill(&s)
	for i, l := range e.lanes {
		s.LaneDepths[i] = len(l.in)
	}
	return s
}

// State returns the state cell of key. It fails with ErrTerminated once the
// engine has terminated.
func (e *Engine) State(key string) (state.StateCell, error) {
	if e.Status() == StatusTerminated {
		return state.StateCell{}, ErrTerminated
	}
	cell, err := e.store.Get(key)
	if errors.Is(err, state.ErrStoreClosed) {
		// an owned store closes while the engine terminates
		return state.StateCell{}, ErrTerminated
	}
	return cell, err
}

// Stop asks a running engine to stop consuming the source. Events already
// handed to a lane are still processed and their state is kept. Stopping an
// engine that never ran terminates it.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
	if e.status.CompareAndSwap(int32(StatusRunning), int32(StatusDraining)) {
		e.logger.Info().Msg("stop requested, draining")
		return
	}
	if e.status.CompareAndSwap(int32(StatusCreated), int32(StatusTerminated)) {
		e.release()
		e.logger.Info().Msg("engine stopped before running")
	}
}

// Run consumes the source until it is exhausted, Stop is called, ctx is done
// or a failure occurs, then drains the lanes and terminates. It returns the
// first failure; a cancelled ctx is reported as ctx.Err().
func (e *Engine) Run(ctx context.Context) error {
	if !e.status.CompareAndSwap(int32(StatusCreated), int32(StatusRunning)) {
		if e.Status() == StatusTerminated {
			return ErrTerminated
		}
		return ErrAlreadyStarted
	}
	e.logger.Info().Int("lanes", len(e.lanes)).Uint64("start_offset", e.startOffset).Msg("engine running")
	e.partitioner.Examine(e.logger)

	sourceCtx, cancelSource := context.WithCancel(ctx)
	defer cancelSource()

	events, err := e.source.Open(sourceCtx)
	if err != nil {
		e.fail(fmt.Errorf("open source: %w", err))
		e.status.Store(int32(StatusDraining))
		e.terminate()
		return e.firstErr()
	}

	// Lanes and the emitter outlive ctx so in-flight events can drain.
	workCtx := context.WithoutCancel(ctx)
	var lanes errgroup.Group
	for _, l := range e.lanes {
		lanes.Go(func() error {
			e.runLane(workCtx, l)
			return nil
		})
	}
	emitterDone := make(chan struct{})
	go e.emit(workCtx, emitterDone)

	offset, reason := e.pump(ctx, events)

	e.status.CompareAndSwap(int32(StatusRunning), int32(StatusDraining))
	e.logger.Debug().Uint64("offset", offset).Msg("draining lanes")
	for _, l := range e.lanes {
		close(l.in)
	}
	_ = lanes.Wait()
	close(e.out)
	<-emitterDone

	cancelSource()
	if err := e.source.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("error closing source")
	}

	if reason == sourceExhausted {
		if err := e.source.Err(); err != nil {
			e.fail(fmt.Errorf("source: %w", err))
		}
	}

	// Buffered records must reach the sink before the final checkpoint moves
	// the offset past them.
	if err := e.closeSink(); err != nil {
		e.fail(err)
	}

	// State committed before a stop or cancellation is kept, so it is
	// checkpointed as well.
	if e.coordinator != nil && !e.aborted() {
		if _, err := e.coordinator.checkpoint(e.runID, offset, e.store); err != nil {
			e.fail(fmt.Errorf("final checkpoint: %w", err))
		} else {
			e.metrics.IncrementCheckpoints()
		}
	}
	if reason == contextDone {
		e.fail(ctx.Err())
	}

	e.terminate()
	return e.firstErr()
}

// pump reads the source in delivery order and routes each event to the lane
// of its key. It returns the offset after the last routed event.
func (e *Engine) pump(ctx context.Context, events <-chan stream.Event) (uint64, stopReason) {
	offset := e.startOffset
	for {
		select {
		case <-e.abort:
			return offset, runAborted
		case <-e.stopCh:
			return offset, stopRequested
		case <-ctx.Done():
			return offset, contextDone
		case ev, ok := <-events:
			if !ok {
				return offset, sourceExhausted
			}
			if ev.Seq < e.startOffset {
				e.metrics.IncrementEventsSkipped()
				continue
			}
			if err := ev.Validate(); err != nil {
				e.fail(fmt.Errorf("event %d: %w", ev.Seq, err))
				return offset, runAborted
			}
			if e.limiter != nil {
				if err := e.limiter.Wait(ctx); err != nil {
					// ctx is done or its deadline comes before the next token
					select {
					case <-ctx.Done():
						return offset, contextDone
					case <-e.stopCh:
						return offset, stopRequested
					}
				}
			}

			key := e.partitioner.Partition(ev)
			l := e.lanes[e.partitioner.Lane(key)]
			select {
			case l.in <- laneItem{key: key, event: ev}:
			case <-e.abort:
				return offset, runAborted
			}
			offset = ev.Seq + 1
			e.metrics.IncrementEventsIn()

			if e.coordinator != nil && e.coordinator.tick() {
				if err := e.coordinator.align(e.lanes, e.abort); err != nil {
					return offset, runAborted
				}
				// a lane may have failed on an event before the barrier
				if e.aborted() {
					return offset, runAborted
				}
				if _, err := e.coordinator.checkpoint(e.runID, offset, e.store); err != nil {
					e.fail(fmt.Errorf("checkpoint at offset %d: %w", offset, err))
					return offset, runAborted
				}
				e.metrics.IncrementCheckpoints()
			}
		}
	}
}

// fail records the first failure and aborts the run.
func (e *Engine) fail(err error) {
	e.errMu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.errMu.Unlock()
	e.abortOnce.Do(func() {
		close(e.abort)
	})
}

func (e *Engine) firstErr() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

func (e *Engine) aborted() bool {
	select {
	case <-e.abort:
		return true
	default:
		return false
	}
}

func (e *Engine) closeSink() error {
	e.sinkOnce.Do(func() {
		if err := e.sink.Close(); err != nil {
			e.sinkErr = fmt.Errorf("close sink: %w", err)
		}
	})
	return e.sinkErr
}

// terminate releases the sink (and the store, when owned) and moves to
// TERMINATED.
func (e *Engine) terminate() {
	if err := e.release(); err != nil {
		e.fail(err)
	}
	e.status.Store(int32(StatusTerminated))

	stats := e.Stats()
	var ev *zerolog.Event
	if err := e.firstErr(); err != nil && !errors.Is(err, context.Canceled) {
		ev = e.logger.Error().Err(err)
	} else {
		ev = e.logger.Info()
	}
	ev.Uint64("events_in", stats.EventsIn).
		Uint64("records_out", stats.RecordsOut).
		Uint64("alerts", stats.Alerts).
		Uint64("checkpoints", stats.Checkpoints).
		Msg("engine terminated")
}

func (e *Engine) release() error {
	var err error
	e.releaseOnce.Do(func() {
		err = e.closeSink()
		if e.ownsStore {
			if storeErr := e.store.Close(); storeErr != nil && err == nil {
				err = fmt.Errorf("close state store: %w", storeErr)
			}
		}
	})
	return err
}
