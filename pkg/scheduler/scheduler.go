// Package scheduler decides when the sender makes a delivery attempt.
//
// Four sources drive attempts:
//
//   - Trigger(false) right after an event is tracked;
//   - a ticker every flush interval;
//   - Trigger(true) when the page is hidden or about to be torn down;
//   - Continue(force), called by the sender when an attempt finishes
//     with events still queued.
//
// Trigger runs the attempt on the caller's goroutine; the attempt itself
// never blocks. Continue only records that another turn is wanted and
// wakes the loop goroutine, so the sender is never re-entered from its own
// completion path. Pending continuations coalesce into one turn, and a
// forced request wins over a non-forced one.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jdziat/pagetrack-go/pkg/config"
)

// Flusher makes one delivery attempt. It reports whether an attempt started.
type Flusher interface {
	TrySend(ctx context.Context, force bool) bool
}

// FlusherFunc adapts a function to Flusher.
type FlusherFunc func(ctx context.Context, force bool) bool

// TrySend implements Flusher.
func (f FlusherFunc) TrySend(ctx context.Context, force bool) bool {
	return f(ctx, force)
}

// Logger is a minimal logging interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Metrics is a minimal metrics interface.
type Metrics interface {
	IncrementCounter(name string, value int64)
}

// Config configures a Scheduler.
type Config struct {
	// Flusher receives every attempt. Required.
	Flusher Flusher

	// Interval is the period of the non-forced timer flush.
	// Default: 5s.
	Interval time.Duration

	// Context is passed to every attempt. The loop exits when it is done.
	// Default: context.Background().
	Context context.Context

	Logger  Logger
	Metrics Metrics
}

// Scheduler owns the flush ticker and the continuation loop.
type Scheduler struct {
	flusher  Flusher
	interval time.Duration
	ctx      context.Context
	logger   Logger
	metrics  Metrics

	wake         chan struct{}
	pendingForce atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	running   atomic.Bool

	triggers      atomic.Int64
	ticks         atomic.Int64
	continuations atomic.Int64
	attempts      atomic.Int64
}

// New creates a scheduler. Call Start to run the ticker and loop.
func New(cfg Config) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = config.DefaultFlushInterval
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &Scheduler{
		flusher:  cfg.Flusher,
		interval: interval,
		ctx:      ctx,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the loop goroutine. Calling it more than once has no effect.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.running.Store(true)
		go s.loop()
	})
}

// Stop ends the loop and waits for it to exit. A pending continuation is
// discarded; the caller is expected to drain the queue itself.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	if s.running.Load() {
		<-s.done
	}
}

// Trigger makes an attempt now on the calling goroutine. When an attempt
// is already in flight the sender remembers a forced trigger and applies
// it to the next attempt, normally the continuation.
func (s *Scheduler) Trigger(force bool) bool {
	s.triggers.Add(1)
	return s.attempt(force, "trigger")
}

// Continue requests another attempt on the loop goroutine.
func (s *Scheduler) Continue(force bool) {
	s.continuations.Add(1)
	if force {
		s.pendingForce.Store(true)
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-s.ctx.Done():
			if s.logger != nil {
				s.logger.Printf("pagetrack: scheduler context done: %v", s.ctx.Err())
			}
			return
		case <-ticker.C:
			s.ticks.Add(1)
			s.attempt(false, "timer")
		case <-s.wake:
			s.attempt(s.pendingForce.Swap(false), "continuation")
		}
	}
}

func (s *Scheduler) attempt(force bool, source string) bool {
	if s.flusher == nil {
		return false
	}
	started := s.flusher.TrySend(s.ctx, force)
	if started {
		s.attempts.Add(1)
		if s.metrics != nil {
			s.metrics.IncrementCounter("pagetrack.flush."+source, 1)
		}
	}
	return started
}

// Stats contains scheduler counters.
type Stats struct {
	Triggers      int64
	Ticks         int64
	Continuations int64
	Attempts      int64
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Triggers:      s.triggers.Load(),
		Ticks:         s.ticks.Load(),
		Continuations: s.continuations.Load(),
		Attempts:      s.attempts.Load(),
	}
}
