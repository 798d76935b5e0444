package pagetrack

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jdziat/pagetrack-go/pkg/codec"
	pterrors "github.com/jdziat/pagetrack-go/pkg/errors"
	"github.com/jdziat/pagetrack-go/pkg/event"
	"github.com/jdziat/pagetrack-go/pkg/lifecycle"
	"github.com/jdziat/pagetrack-go/pkg/producer"
	"github.com/jdziat/pagetrack-go/pkg/queue"
	"github.com/jdziat/pagetrack-go/pkg/scheduler"
	"github.com/jdziat/pagetrack-go/pkg/sender"
	"github.com/jdziat/pagetrack-go/pkg/session"
	"github.com/jdziat/pagetrack-go/pkg/transport"
)

// drainPoll is how often Flush and Close check whether the in-flight
// attempt has finished.
const drainPoll = 5 * time.Millisecond

// Collector gathers page events and delivers them in batches. Create one
// per page with New and release it with Close.
type Collector struct {
	config *Config

	queue      *queue.Queue
	sender     *sender.Sender
	scheduler  *scheduler.Scheduler
	lifecycle  *lifecycle.Manager
	pixel      *transport.Pixel
	breaker    *transport.CircuitBreaker
	sessions   *session.Provider
	ownedStore session.Store
	activeTime *producer.ActiveTime
	errors     *pterrors.AsyncErrorHandler

	logger StructuredLogger
	now    func() time.Time

	pageMu sync.RWMutex
	page   Page

	closed atomic.Bool
}

var _ producer.Tracker = (*Collector)(nil)

// New creates a collector and starts its flush timer.
//
//	c, err := pagetrack.New(
//	    pagetrack.WithHost("https://collect.example.com"),
//	    pagetrack.WithPage(pagetrack.Page{Path: "/areas/niagara"}),
//	    pagetrack.WithActiveTime(true),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close(context.Background())
//
//	producer.PageLoad(c, 1280, 720)
func New(opts ...Option) (*Collector, error) {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a collector from a Config struct. The config is
// copied; later changes to it have no effect.
func NewWithConfig(cfg *Config) (*Collector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}

	cfgCopy := *cfg
	cfgCopy.ApplyDefaults()
	if err := cfgCopy.Validate(); err != nil {
		return nil, err
	}

	cdc, err := codec.ByName(cfgCopy.Codec)
	if err != nil {
		return nil, err
	}

	c := &Collector{
		config: &cfgCopy,
		logger: cfgCopy.StructuredLogger,
		page:   cfgCopy.Page,
		now:    time.Now,
	}
	internal := c.internalLogger()

	c.errors = pterrors.NewAsyncErrorHandler(&pterrors.AsyncErrorConfig{
		Metrics: cfgCopy.Metrics,
		Logger:  internal,
		OnError: c.handleAsyncError,
	})

	store := cfgCopy.SessionStore
	if store == nil {
		if cfgCopy.SessionDB != "" {
			sq, err := session.NewSQLiteStore(cfgCopy.SessionDB, "")
			if err != nil {
				return nil, fmt.Errorf("pagetrack: open session db: %w", err)
			}
			store = sq
		} else {
			store = session.NewMemoryStore()
		}
		c.ownedStore = store
	}
	c.sessions = session.NewProvider(store,
		session.WithKey(cfgCopy.SessionKey),
		session.WithErrorHandler(func(err error) {
			c.errors.Handle(pterrors.NewAsyncError(pterrors.AsyncOpSession, err))
		}),
	)

	var monitorLogger queue.Logger
	if c.logger != nil {
		monitorLogger = warnLogger{c.logger}
	}
	c.queue = queue.New(queue.NewMonitor(&queue.MonitorConfig{
		SoftCapacity: cfgCopy.QueueSoftCapacity,
		OnLevel:      cfgCopy.OnQueueLevel,
		Metrics:      cfgCopy.Metrics,
		Logger:       monitorLogger,
	}))

	standard, keepalive := c.buildTransports()
	c.pixel = transport.NewPixel(transport.PixelConfig{
		Client:  cfgCopy.HTTPClient,
		Timeout: cfgCopy.Timeout,
		Logger:  internal,
		Metrics: cfgCopy.Metrics,
		OnError: func(err error) {
			c.errors.Handle(pterrors.NewAsyncError(pterrors.AsyncOpPixel, err))
		},
	})

	var fallback sender.Pixel
	if cfgCopy.PixelEndpoint != "" {
		fallback = c.pixel
	}
	c.sender, err = sender.New(sender.Config{
		Queue:          c.queue,
		Codec:          cdc,
		Standard:       standard,
		Keepalive:      keepalive,
		Pixel:          fallback,
		FallbackURL:    cfgCopy.PixelEndpoint,
		MaxBatch:       MaxBatch,
		KeepaliveLimit: cfgCopy.KeepaliveLimit,
		OnBatch:        cfgCopy.OnBatch,
		Errors:         c.errors,
		Logger:         internal,
		Metrics:        cfgCopy.Metrics,
		Tracer:         cfgCopy.Tracer,
	})
	if err != nil {
		c.closeStore()
		return nil, err
	}

	var lifecycleLogger lifecycle.Logger
	if c.logger != nil {
		lifecycleLogger = warnLogger{c.logger}
	}
	c.lifecycle = lifecycle.NewManager(&lifecycle.Config{
		IdleWarningDuration: cfgCopy.IdleWarningDuration,
		Logger:              lifecycleLogger,
		Metrics:             cfgCopy.Metrics,
		OnStateChange:       cfgCopy.OnPageState,
	})

	c.scheduler = scheduler.New(scheduler.Config{
		Flusher:  c.sender,
		Interval: cfgCopy.FlushInterval,
		Context:  c.lifecycle.Context(),
		Logger:   internal,
		Metrics:  cfgCopy.Metrics,
	})
	c.sender.SetContinuation(c.scheduler.Continue)
	c.scheduler.Start()

	c.logDebug("collector started", "endpoint", redactURL(cfgCopy.EventEndpoint), "codec", cdc.Name())

	if cfgCopy.PageViewOnStart {
		c.PageView()
	}
	if cfgCopy.ActiveTime {
		c.activeTime = producer.NewActiveTime(c, producer.WithTickInterval(cfgCopy.ActiveTimeTick))
		c.activeTime.Start()
	}
	return c, nil
}

// buildTransports wires the hook chain and circuit breaker into the
// standard and keepalive transports.
func (c *Collector) buildTransports() (standard, keepalive *transport.HTTP) {
	cfg := c.config
	internal := c.internalLogger()

	chain := transport.NewHookChain(internal, cfg.Metrics)
	if cfg.Metrics != nil {
		chain.Add("metrics", transport.MetricsHook(cfg.Metrics), transport.HookPriorityObservational)
	}
	if internal != nil {
		chain.Add("logging", transport.LoggingHook(internal), transport.HookPriorityObservational)
	}
	for _, h := range cfg.HTTPHooks {
		chain.Add(h.Name, h.Hook, h.Priority)
	}

	httpCfg := transport.HTTPConfig{
		Endpoint: cfg.EventEndpoint,
		Client:   cfg.HTTPClient,
		Timeout:  cfg.Timeout,
		Gzip:     cfg.Gzip,
	}
	if chain.Len() > 0 {
		httpCfg.Hook = chain
	}
	keepalive = transport.NewKeepalive(httpCfg, cfg.KeepaliveTimeout)

	if cfg.CircuitBreaker != nil {
		cbCfg := *cfg.CircuitBreaker
		userCallback := cbCfg.OnStateChange
		cbCfg.OnStateChange = func(from, to transport.CircuitState) {
			c.logWarn("circuit breaker state changed", "from", from.String(), "to", to.String())
			if userCallback != nil {
				userCallback(from, to)
			}
		}
		c.breaker = transport.NewCircuitBreaker(cbCfg)
		httpCfg.Breaker = c.breaker
	}
	standard = transport.NewStandard(httpCfg)
	return standard, keepalive
}

// Track records an event and attempts a send. It never fails from the
// caller's point of view; after Close the event is discarded.
//
// data is copied before Track returns, so the caller may reuse or change
// it afterwards. See event.CloneData for what is copied.
func (c *Collector) Track(eventType string, data any) {
	if c.closed.Load() {
		c.count("pagetrack.events.rejected", 1)
		c.logDebug("event discarded after close", "event_type", eventType)
		return
	}

	c.lifecycle.RecordActivity()
	e := event.New(c.now(), eventType, c.SessionID(), c.Page(), event.CloneData(data))
	c.queue.Enqueue(e)
	c.count("pagetrack.events.tracked", 1)
	c.scheduler.Trigger(false)
}

// VisibilityChanged records that the page became hidden or visible again.
// Becoming hidden forces a flush. With active-time tracking enabled the
// active period ends on hide and restarts on show.
func (c *Collector) VisibilityChanged(hidden bool) {
	if c.closed.Load() {
		return
	}
	if !c.lifecycle.SetHidden(hidden) {
		return
	}
	if hidden {
		c.scheduler.Trigger(true)
	}
	if c.activeTime != nil {
		c.activeTime.VisibilityChanged(hidden)
	}
}

// PageHide signals that the page is being torn down. It forces a flush
// and ends the active period.
func (c *Collector) PageHide() {
	if c.closed.Load() {
		return
	}
	c.scheduler.Trigger(true)
	if c.activeTime != nil {
		c.activeTime.PageHide()
	}
}

// PageView fires the page-view pixel for the current page. It returns
// false if no page-view endpoint is configured or the collector is closed.
func (c *Collector) PageView() bool {
	if c.closed.Load() || c.config.PageViewEndpoint == "" {
		return false
	}
	url := transport.PageViewURL(c.config.PageViewEndpoint, c.SessionID(), c.Page(), c.now())
	c.pixel.Fire(c.lifecycle.Context(), url)
	c.count("pagetrack.page.views", 1)
	return true
}

// SetPage replaces the page context stamped on subsequent events.
func (c *Collector) SetPage(p Page) {
	c.pageMu.Lock()
	c.page = p
	c.pageMu.Unlock()
}

// Page returns the current page context.
func (c *Collector) Page() Page {
	c.pageMu.RLock()
	defer c.pageMu.RUnlock()
	return c.page
}

// SessionID returns the session identifier stamped on events.
func (c *Collector) SessionID() string {
	return c.sessions.ID(c.lifecycle.Context())
}

// Flush sends everything queued and waits until the queue is empty and
// no attempt is in flight, or ctx is done. Requests use ctx.
func (c *Collector) Flush(ctx context.Context) error {
	if c.closed.Load() {
		return ErrCollectorClosed
	}
	return c.drain(ctx, false)
}

// drain drives the sender until the queue is empty. Attempts started by
// other goroutines are waited for rather than raced.
func (c *Collector) drain(ctx context.Context, force bool) error {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for {
		if !c.sender.InFlight() {
			if c.queue.IsEmpty() {
				return nil
			}
			if c.sender.TrySend(ctx, force) {
				continue
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close ends the active period, stops the flush timer, and sends what is
// left with forced flushes. It then terminates the page lifecycle, which
// aborts standard requests still bound to it.
//
// Close returns a ShutdownError if the queue could not be drained within
// ctx or the configured ShutdownTimeout, and ErrCollectorClosed if it was
// already called.
func (c *Collector) Close(ctx context.Context) error {
	if c.closed.Load() {
		return ErrCollectorClosed
	}
	if c.activeTime != nil {
		c.activeTime.End()
	}
	if !c.closed.CompareAndSwap(false, true) {
		return ErrCollectorClosed
	}
	start := time.Now()

	if c.activeTime != nil {
		c.activeTime.Stop()
	}
	c.scheduler.Stop()

	drainCtx, cancel := context.WithTimeout(ctx, c.config.ShutdownTimeout)
	defer cancel()

	drainErr := c.drain(drainCtx, true)
	pending := c.queue.Len()

	c.lifecycle.Terminate()
	c.lifecycle.Wait()
	c.sender.Wait()
	if err := waitFor(drainCtx, c.pixel.Wait); err != nil {
		c.logWarn("pixel requests still running at close", "error", err)
	}
	c.closeStore()

	if c.config.Metrics != nil {
		c.config.Metrics.RecordDuration("pagetrack.shutdown.duration", time.Since(start))
	}

	if drainErr != nil {
		c.count("pagetrack.shutdown.timeout", 1)
		if c.config.Metrics != nil {
			c.config.Metrics.SetGauge("pagetrack.shutdown.lost_events", float64(pending))
		}
		shutdownErr := &ShutdownError{
			Cause:         drainErr,
			PendingEvents: pending,
			Message:       "timeout draining queue",
		}
		c.errors.Handle(pterrors.NewAsyncError(pterrors.AsyncOpShutdown, shutdownErr).
			WithEventCount(pending).
			WithForced(true))
		return shutdownErr
	}

	c.count("pagetrack.shutdown.success", 1)
	c.logInfo("collector closed", "uptime", c.lifecycle.Uptime().Round(time.Millisecond))
	return nil
}

// Shutdown is an alias for Close.
func (c *Collector) Shutdown(ctx context.Context) error {
	return c.Close(ctx)
}

// waitFor runs fn in a goroutine and waits for it or ctx.
func waitFor(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collector) closeStore() {
	if c.ownedStore == nil {
		return
	}
	if err := c.ownedStore.Close(); err != nil {
		c.logWarn("closing session store failed", "error", err)
	}
}

// IsClosed reports whether Close has been called.
func (c *Collector) IsClosed() bool {
	return c.closed.Load()
}

// PageState returns the page lifecycle state.
func (c *Collector) PageState() lifecycle.PageState {
	return c.lifecycle.State()
}

// Pending returns the number of queued events.
func (c *Collector) Pending() int {
	return c.queue.Len()
}

// Errors returns the background error handler. Its Errors channel
// buffers recent failures.
func (c *Collector) Errors() *AsyncErrorHandler {
	return c.errors
}

// CircuitState returns the standard transport's breaker state, or
// CircuitClosed when no breaker is configured.
func (c *Collector) CircuitState() transport.CircuitState {
	if c.breaker == nil {
		return transport.CircuitClosed
	}
	return c.breaker.State()
}

// Stats returns a snapshot of collector state.
func (c *Collector) Stats() Stats {
	es := c.errors.Stats()
	s := Stats{
		Closed:    c.closed.Load(),
		Queue:     queueStats(c.queue.Stats(), c.queue.Monitor()),
		Sender:    senderStats(c.sender.InFlight(), c.sender.Stats()),
		Scheduler: schedulerStats(c.scheduler.Stats()),
		Page:      pageStats(c.lifecycle.Stats()),
		AsyncError: AsyncErrorStats{
			Total:   es.TotalErrors,
			Dropped: es.DroppedCount,
			Pending: es.Pending,
		},
	}
	if c.breaker != nil {
		s.Circuit = CircuitStats{
			Enabled: true,
			State:   c.breaker.State().String(),
			Trips:   c.breaker.Trips(),
		}
	}
	return s
}

// handleAsyncError receives every background failure. Errors are never
// silently dropped: with no handler or logger they go to stderr.
func (c *Collector) handleAsyncError(err *AsyncError) {
	handled := false

	if c.config.ErrorHandler != nil {
		c.config.ErrorHandler(err)
		handled = true
	}
	if c.logger != nil {
		c.logger.Error("async error",
			"operation", string(err.Operation),
			"events", err.EventCount,
			"forced", err.Forced,
			"error", err.Err,
		)
		handled = true
	}
	if !handled {
		stderrLogger.Printf("unhandled async error: %v", err)
	}
}

// internalLogger returns the printf logger handed to internal packages,
// or nil when logging is off.
func (c *Collector) internalLogger() Logger {
	if c.logger == nil {
		return nil
	}
	return debugLogger{c.logger}
}

func (c *Collector) count(name string, v int64) {
	if c.config.Metrics != nil {
		c.config.Metrics.IncrementCounter(name, v)
	}
}

func (c *Collector) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Collector) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Collector) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
