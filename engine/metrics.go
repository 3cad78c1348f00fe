package engine

import (
	"sync/atomic"
	"time"
)

// Metrics holds the counters of one engine run.
type Metrics struct {
	eventsIn        uint64 // Events routed to a lane
	eventsSkipped   uint64 // Events below the start offset
	eventsProcessed uint64 // Events the ProcessFunction handled successfully
	eventsDropped   uint64 // Events discarded while draining after a failure
	recordsOut      uint64 // Records accepted by the sink
	alerts          uint64 // Records carrying an ALERT verdict
	failures        uint64 // ProcessFunction and sink failures
	checkpoints     uint64 // Checkpoints written

	// For a simpler start, we track sum and count to calculate average.
	totalProcessingTimeNs int64
	processingTimeCount   uint64
}

// NewMetrics creates a new Metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncrementEventsIn()        { atomic.AddUint64(&m.eventsIn, 1) }
func (m *Metrics) IncrementEventsSkipped()   { atomic.AddUint64(&m.eventsSkipped, 1) }
func (m *Metrics) IncrementEventsProcessed() { atomic.AddUint64(&m.eventsProcessed, 1) }
func (m *Metrics) IncrementEventsDropped()   { atomic.AddUint64(&m.eventsDropped, 1) }
func (m *Metrics) IncrementRecordsOut()      { atomic.AddUint64(&m.recordsOut, 1) }
func (m *Metrics) IncrementAlerts()          { atomic.AddUint64(&m.alerts, 1) }
func (m *Metrics) IncrementFailures()        { atomic.AddUint64(&m.failures, 1) }
func (m *Metrics) IncrementCheckpoints()     { atomic.AddUint64(&m.checkpoints, 1) }

// RecordProcessingTime records the duration of a single Process call.
func (m *Metrics) RecordProcessingTime(d time.Duration) {
	atomic.AddInt64(&m.totalProcessingTimeNs, d.Nanoseconds())
	atomic.AddUint64(&m.processingTimeCount, 1)
}

// AverageProcessingTime returns the mean Process call duration.
func (m *Metrics) AverageProcessingTime() time.Duration {
	count := atomic.LoadUint64(&m.processingTimeCount)
	if count == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&m.totalProcessingTimeNs) / int64(count))
}

// Stats is a point-in-time view of an engine.
type Stats struct {
	RunID             string        `json:"run_id"`
	Status            string        `json:"status"`
	EventsIn          uint64        `json:"events_in"`
	EventsSkipped     uint64        `json:"events_skipped"`
	EventsProcessed   uint64        `json:"events_processed"`
	EventsDropped     uint64        `json:"events_dropped"`
	RecordsOut        uint64        `json:"records_out"`
	Alerts            uint64        `json:"alerts"`
	Failures          uint64        `json:"failures"`
	Checkpoints       uint64        `json:"checkpoints"`
	AvgProcessingTime time.Duration `json:"avg_processing_time_ns"`
	LaneDepths        []int         `json:"lane_depths"`
}

func (m *Metrics) fill(s *Stats) {
	s.EventsIn = atomic.LoadUint64(&m.eventsIn)
	s.EventsSkipped = atomic.LoadUint64(&m.eventsSkipped)
	s.EventsProcessed = atomic.LoadUint64(&m.eventsProcessed)
	s.EventsDropped = atomic.LoadUint64(&m.eventsDropped)
	s.RecordsOut = atomic.LoadUint64(&m.recordsOut)
	s.Alerts = atomic.LoadUint64(&m.alerts)
	s.Failures = atomic.LoadUint64(&m.failures)
	s.Checkpoints = atomic.LoadUint64(&m.checkpoints)
	s.AvgProcessingTime = m.AverageProcessingTime()
}
