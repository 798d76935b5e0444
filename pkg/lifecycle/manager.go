// Package lifecycle tracks the page lifecycle a collector runs in.
//
// A page is visible, hidden, or terminated. Visibility flips back and
// forth; termination is final and cancels the lifecycle context. Requests
// bound to that context are aborted by teardown, which is why the sender
// moves forced flushes onto a detached keepalive transport.
package lifecycle

import (
	"context"
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
	RecordDuration(name string, d time.Duration)
}

// PageState is the lifecycle state of the page.
type PageState int32

const (
	// PageVisible means the page is in the foreground.
	PageVisible PageState = iota

	// PageHidden means the page is backgrounded but may become visible again.
	PageHidden

	// PageTerminated means the page is being torn down.
	PageTerminated
)

// String returns the state name.
func (s PageState) String() string {
	switch s {
	case PageVisible:
		return "visible"
	case PageHidden:
		return "hidden"
	case PageTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Config configures the lifecycle manager.
type Config struct {
	// Parent is the context the lifecycle context derives from.
	// Default: context.Background().
	Parent context.Context

	// IdleWarningDuration logs a warning once if nothing is tracked for
	// this long and the page was never terminated. Zero disables it.
	IdleWarningDuration time.Duration

	Logger  Logger
	Metrics Metrics

	// OnStateChange is called synchronously after each transition.
	OnStateChange func(from, to PageState)
}

// Stats contains lifecycle statistics.
type Stats struct {
	State             PageState
	CreatedAt         time.Time
	LastActivity      time.Time
	Uptime            time.Duration
	IdleDuration      time.Duration
	VisibilityChanges int64
	HiddenFor         time.Duration
}

// Manager holds the page state and the lifecycle context.
type Manager struct {
	state        atomic.Int32
	createdAt    time.Time
	lastActivity atomic.Int64 // unix nanos
	hiddenAt     atomic.Int64 // unix nanos, 0 while visible
	changes      atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	idleWarningDuration time.Duration
	warningFired        atomic.Bool
	logger              Logger
	metrics             Metrics

	mu            sync.Mutex // serializes transitions and their callbacks
	onStateChange func(from, to PageState)
}

// NewManager creates a manager in the visible state.
func NewManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = &Config{}
	}
	parent := cfg.Parent
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	now := time.Now()

	m := &Manager{
		createdAt:           now,
		ctx:                 ctx,
		cancel:              cancel,
		idleWarningDuration: cfg.IdleWarningDuration,
		logger:              cfg.Logger,
		metrics:             cfg.Metrics,
		onStateChange:       cfg.OnStateChange,
	}
	m.state.Store(int32(PageVisible))
	m.lastActivity.Store(now.UnixNano())

	if cfg.IdleWarningDuration > 0 && cfg.Logger != nil {
		m.wg.Add(1)
		go m.idleDetector()
	}
	if m.metrics != nil {
		m.metrics.IncrementCounter("pagetrack.page.created", 1)
	}
	return m
}

func (m *Manager) idleDetector() {
	defer m.wg.Done()

	checkInterval := m.idleWarningDuration / 2
	if checkInterval < 10*time.Millisecond {
		checkInterval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			idle := m.IdleDuration()
			if idle > m.idleWarningDuration && m.warningFired.CompareAndSwap(false, true) {
				m.logger.Printf("pagetrack: collector idle for %v and never closed (created %s); call Close when the page goes away",
					idle.Round(time.Millisecond), m.createdAt.Format(time.RFC3339))
				if m.metrics != nil {
					m.metrics.IncrementCounter("pagetrack.page.idle_warning", 1)
				}
			}
		}
	}
}

// State returns the current page state.
func (m *Manager) State() PageState {
	return PageState(m.state.Load())
}

// IsHidden reports whether the page is hidden.
func (m *Manager) IsHidden() bool {
	return m.State() == PageHidden
}

// IsTerminated reports whether the page has been torn down.
func (m *Manager) IsTerminated() bool {
	return m.State() == PageTerminated
}

// SetHidden records a visibility change. It returns true if the state
// changed; a terminated page ignores visibility changes.
func (m *Manager) SetHidden(hidden bool) bool {
	from, to := PageHidden, PageVisible
	if hidden {
		from, to = PageVisible, PageHidden
	}
	if !m.transition(from, to) {
		return false
	}

	m.changes.Add(1)
	if hidden {
		m.hiddenAt.Store(time.Now().UnixNano())
	} else if at := m.hiddenAt.Swap(0); at != 0 && m.metrics != nil {
		m.metrics.RecordDuration("pagetrack.page.hidden_duration", time.Since(time.Unix(0, at)))
	}
	return true
}

// Terminate moves the page to the terminated state and cancels the
// lifecycle context. It returns false if the page was already terminated.
func (m *Manager) Terminate() bool {
	m.mu.Lock()
	from := m.State()
	if from == PageTerminated {
		m.mu.Unlock()
		return false
	}
	m.state.Store(int32(PageTerminated))
	m.notify(from, PageTerminated)
	m.mu.Unlock()

	m.cancel()
	if m.metrics != nil {
		m.metrics.RecordDuration("pagetrack.page.uptime", m.Uptime())
	}
	return true
}

// Wait blocks until the manager's background goroutine has exited.
// It only returns after Terminate.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) transition(from, to PageState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	m.notify(from, to)
	return true
}

// notify runs the callback and metrics for a transition. Caller holds mu.
func (m *Manager) notify(from, to PageState) {
	if m.metrics != nil {
		m.metrics.SetGauge("pagetrack.page.state", float64(to))
		m.metrics.IncrementCounter("pagetrack.page."+to.String(), 1)
	}
	if m.onStateChange != nil {
		m.onStateChange(from, to)
	}
}

// RecordActivity updates the last activity timestamp.
func (m *Manager) RecordActivity() {
	m.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the last recorded activity.
func (m *Manager) LastActivity() time.Time {
	return time.Unix(0, m.lastActivity.Load())
}

// Uptime returns the time since the manager was created.
func (m *Manager) Uptime() time.Duration {
	return time.Since(m.createdAt)
}

// IdleDuration returns the time since the last activity.
func (m *Manager) IdleDuration() time.Duration {
	return time.Since(m.LastActivity())
}

// CreatedAt returns the creation time.
func (m *Manager) CreatedAt() time.Time {
	return m.createdAt
}

// Context returns the lifecycle context. It is cancelled by Terminate.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Stats returns current lifecycle statistics.
func (m *Manager) Stats() Stats {
	s := Stats{
		State:             m.State(),
		CreatedAt:         m.createdAt,
		LastActivity:      m.LastActivity(),
		Uptime:            m.Uptime(),
		IdleDuration:      m.IdleDuration(),
		VisibilityChanges: m.changes.Load(),
	}
	if at := m.hiddenAt.Load(); at != 0 {
		s.HiddenFor = time.Since(time.Unix(0, at))
	}
	return s
}
