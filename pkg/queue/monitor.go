package queue

import (
	"sync"
	"sync/atomic"
	"time"
)

// Logger is a minimal logging interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Metrics is a minimal metrics interface.
type Metrics interface {
	IncrementCounter(name string, value int64)
	SetGauge(name string, value float64)
}

// Level indicates how far the queue depth is past its soft capacity.
type Level int

const (
	// LevelNone indicates the queue is operating normally.
	LevelNone Level = iota
	// LevelWarning indicates the queue is filling up.
	LevelWarning
	// LevelCritical indicates the queue is nearly at its soft capacity.
	LevelCritical
	// LevelOverflow indicates the queue is at or past its soft capacity.
	LevelOverflow
)

// String returns a human-readable representation of the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Threshold defines the percentages of the soft capacity at which each
// level is entered.
type Threshold struct {
	WarningPercent  float64
	CriticalPercent float64
	OverflowPercent float64
}

// DefaultThreshold returns the default thresholds (50/80/100).
func DefaultThreshold() Threshold {
	return Threshold{
		WarningPercent:  50.0,
		CriticalPercent: 80.0,
		OverflowPercent: 100.0,
	}
}

// State is a snapshot of the queue depth.
type State struct {
	Depth        int
	SoftCapacity int
	Level        Level
	PercentFull  float64
	Timestamp    time.Time
}

// Callback is called when the level changes.
type Callback func(state State)

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	Threshold    Threshold
	SoftCapacity int
	OnLevel      Callback
	Metrics      Metrics
	Logger       Logger
}

// Monitor tracks queue depth against a soft capacity. It is purely
// observational: it never blocks producers or drops events.
type Monitor struct {
	threshold    Threshold
	softCapacity int

	mu       sync.RWMutex
	callback Callback

	metrics Metrics
	logger  Logger

	level     atomic.Int32
	lastState atomic.Value // State
	maxDepth  atomic.Int64
	changes   atomic.Int64
}

// NewMonitor creates a depth monitor.
func NewMonitor(cfg *MonitorConfig) *Monitor {
	if cfg == nil {
		cfg = &MonitorConfig{}
	}

	threshold := cfg.Threshold
	def := DefaultThreshold()
	if threshold.WarningPercent <= 0 {
		threshold.WarningPercent = def.WarningPercent
	}
	if threshold.CriticalPercent <= 0 {
		threshold.CriticalPercent = def.CriticalPercent
	}
	if threshold.OverflowPercent <= 0 {
		threshold.OverflowPercent = def.OverflowPercent
	}

	capacity := cfg.SoftCapacity
	if capacity <= 0 {
		capacity = 1000
	}

	m := &Monitor{
		threshold:    threshold,
		softCapacity: capacity,
		callback:     cfg.OnLevel,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
	m.lastState.Store(State{SoftCapacity: capacity, Timestamp: time.Now()})
	return m
}

// Update records the current depth and returns the resulting level.
func (m *Monitor) Update(depth int) Level {
	percent := float64(depth) / float64(m.softCapacity) * 100.0

	var level Level
	switch {
	case percent >= m.threshold.OverflowPercent:
		level = LevelOverflow
	case percent >= m.threshold.CriticalPercent:
		level = LevelCritical
	case percent >= m.threshold.WarningPercent:
		level = LevelWarning
	default:
		level = LevelNone
	}

	state := State{
		Depth:        depth,
		SoftCapacity: m.softCapacity,
		Level:        level,
		PercentFull:  percent,
		Timestamp:    time.Now(),
	}
	old := Level(m.level.Swap(int32(level)))
	m.lastState.Store(state)

	for {
		cur := m.maxDepth.Load()
		if int64(depth) <= cur || m.maxDepth.CompareAndSwap(cur, int64(depth)) {
			break
		}
	}

	if old != level {
		m.changes.Add(1)
		m.onLevelChange(old, level, state)
	}

	if m.metrics != nil {
		m.metrics.SetGauge("pagetrack.queue.depth", float64(depth))
	}
	return level
}

func (m *Monitor) onLevelChange(from, to Level, state State) {
	if m.logger != nil {
		if to > LevelNone {
			m.logger.Printf("pagetrack: queue level changed from %s to %s (depth %d, soft capacity %d)",
				from, to, state.Depth, state.SoftCapacity)
		} else {
			m.logger.Printf("pagetrack: queue level cleared (depth %d)", state.Depth)
		}
	}

	if m.metrics != nil {
		m.metrics.IncrementCounter("pagetrack.queue.level_changes", 1)
		m.metrics.SetGauge("pagetrack.queue.level", float64(to))
	}

	m.mu.RLock()
	callback := m.callback
	m.mu.RUnlock()
	if callback != nil {
		callback(state)
	}
}

// Level returns the current level.
func (m *Monitor) Level() Level {
	return Level(m.level.Load())
}

// State returns the last recorded state.
func (m *Monitor) State() State {
	return m.lastState.Load().(State)
}

// MaxDepth returns the deepest the queue has been.
func (m *Monitor) MaxDepth() int {
	return int(m.maxDepth.Load())
}

// LevelChanges returns how many times the level has changed.
func (m *Monitor) LevelChanges() int64 {
	return m.changes.Load()
}

// SetCallback replaces the level-change callback.
func (m *Monitor) SetCallback(fn Callback) {
	m.mu.Lock()
	m.callback = fn
	m.mu.Unlock()
}
