package pagetrack

import (
	"time"

	"github.com/jdziat/pagetrack-go/pkg/lifecycle"
	"github.com/jdziat/pagetrack-go/pkg/queue"
	"github.com/jdziat/pagetrack-go/pkg/scheduler"
	"github.com/jdziat/pagetrack-go/pkg/sender"
)

// Metrics is an optional interface for collector telemetry. Every metric
// name is prefixed with "pagetrack.". pkg/otelmetrics provides an
// OpenTelemetry implementation.
type Metrics interface {
	// IncrementCounter increments a counter metric.
	IncrementCounter(name string, value int64)
	// RecordDuration records a duration metric.
	RecordDuration(name string, duration time.Duration)
	// SetGauge sets a gauge metric.
	SetGauge(name string, value float64)
}

// NopMetrics discards all metrics.
type NopMetrics struct{}

func (NopMetrics) IncrementCounter(string, int64)       {}
func (NopMetrics) RecordDuration(string, time.Duration) {}
func (NopMetrics) SetGauge(string, float64)             {}

var _ Metrics = NopMetrics{}

// Stats is a snapshot of collector state, for monitoring and debugging.
type Stats struct {
	Closed bool `json:"closed"`

	Queue      QueueStats      `json:"queue"`
	Sender     SenderStats     `json:"sender"`
	Scheduler  SchedulerStats  `json:"scheduler"`
	Page       PageStats       `json:"page"`
	Circuit    CircuitStats    `json:"circuit"`
	AsyncError AsyncErrorStats `json:"async_errors"`
}

// QueueStats describes the pending event queue.
type QueueStats struct {
	Depth       int     `json:"depth"`
	MaxDepth    int     `json:"max_depth"`
	Enqueued    uint64  `json:"enqueued"`
	Drained     uint64  `json:"drained"`
	Level       string  `json:"level"`
	PercentFull float64 `json:"percent_full"`
}

// SenderStats describes delivery attempts.
type SenderStats struct {
	InFlight          bool  `json:"in_flight"`
	Attempts          int64 `json:"attempts"`
	BatchesSent       int64 `json:"batches_sent"`
	EventsSent        int64 `json:"events_sent"`
	Fallbacks         int64 `json:"fallbacks"`
	EncodeErrors      int64 `json:"encode_errors"`
	BatchesDropped    int64 `json:"batches_dropped"`
	KeepaliveSelected int64 `json:"keepalive_selected"`
	OversizeForced    int64 `json:"oversize_forced"`
}

// SchedulerStats describes what triggered send attempts.
type SchedulerStats struct {
	Triggers      int64 `json:"triggers"`
	Ticks         int64 `json:"ticks"`
	Continuations int64 `json:"continuations"`
	Attempts      int64 `json:"attempts"`
}

// PageStats describes the page lifecycle.
type PageStats struct {
	State             string `json:"state"`
	Uptime            string `json:"uptime"`
	IdleFor           string `json:"idle_for"`
	VisibilityChanges int64  `json:"visibility_changes"`
}

// CircuitStats describes the standard transport's circuit breaker.
type CircuitStats struct {
	Enabled bool   `json:"enabled"`
	State   string `json:"state,omitempty"`
	Trips   int    `json:"trips,omitempty"`
}

// AsyncErrorStats describes background failures.
type AsyncErrorStats struct {
	Total   int64 `json:"total"`
	Dropped int64 `json:"dropped"`
	Pending int   `json:"pending"`
}

func queueStats(q queue.Stats, m *queue.Monitor) QueueStats {
	s := QueueStats{
		Depth:    q.Depth,
		Enqueued: q.Enqueued,
		Drained:  q.Drained,
	}
	if m != nil {
		st := m.State()
		s.MaxDepth = m.MaxDepth()
		s.Level = m.Level().String()
		s.PercentFull = st.PercentFull
	}
	return s
}

func senderStats(inFlight bool, st sender.Stats) SenderStats {
	return SenderStats{
		InFlight:          inFlight,
		Attempts:          st.Attempts,
		BatchesSent:       st.BatchesSent,
		EventsSent:        st.EventsSent,
		Fallbacks:         st.Fallbacks,
		EncodeErrors:      st.EncodeErrors,
		BatchesDropped:    st.BatchesDropped,
		KeepaliveSelected: st.KeepaliveSelected,
		OversizeForced:    st.OversizeForced,
	}
}

func schedulerStats(st scheduler.Stats) SchedulerStats {
	return SchedulerStats{
		Triggers:      st.Triggers,
		Ticks:         st.Ticks,
		Continuations: st.Continuations,
		Attempts:      st.Attempts,
	}
}

func pageStats(st lifecycle.Stats) PageStats {
	return PageStats{
		State:             st.State.String(),
		Uptime:            st.Uptime.Round(time.Millisecond).String(),
		IdleFor:           st.IdleDuration.Round(time.Millisecond).String(),
		VisibilityChanges: st.VisibilityChanges,
	}
}
