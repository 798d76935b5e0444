// Package sender implements the single-flight batch sender.
//
// One call to TrySend makes at most one delivery attempt: it drains up to
// MaxBatch events, encodes them, picks a transport and sends in the
// background. While that attempt is in flight further calls are no-ops.
// When the attempt finishes the sender asks its continuation hook to
// schedule another attempt if events are still queued.
//
// Delivery is best effort and at most once. Drained events are never put
// back: a transport failure fires the fallback pixel once and the batch is
// forgotten; an encoding failure drops the batch.
package sender

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jdziat/pagetrack-go/pkg/codec"
	"github.com/jdziat/pagetrack-go/pkg/config"
	pterrors "github.com/jdziat/pagetrack-go/pkg/errors"
	"github.com/jdziat/pagetrack-go/pkg/event"
	"github.com/jdziat/pagetrack-go/pkg/queue"
	"github.com/jdziat/pagetrack-go/pkg/transport"
)

// TracerName is the instrumentation scope of the sender's spans.
const TracerName = "github.com/jdziat/pagetrack-go/pkg/sender"

// Logger is a minimal logging interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Metrics is the collector metrics interface.
type Metrics interface {
	IncrementCounter(name string, value int64)
	RecordDuration(name string, duration time.Duration)
	SetGauge(name string, value float64)
}

// Pixel fires fallback requests without observing their result.
type Pixel interface {
	Fire(ctx context.Context, rawURL string)
}

// Result describes one send attempt.
type Result struct {
	// EventCount is the number of events drained for the attempt.
	EventCount int

	// Bytes is the encoded payload size. It is zero after an encode error.
	Bytes int

	// Forced reports whether the attempt came from a forced flush.
	Forced bool

	// Transport names the transport used, or "" after an encode error.
	Transport string

	// StatusCode is the HTTP status when a response was received.
	StatusCode int

	// RequestID is the X-Request-ID sent with the batch.
	RequestID string

	// Fallback reports whether the fallback pixel was fired.
	Fallback bool

	// Duration is the wall time of the attempt.
	Duration time.Duration

	// Err is the transport or encode error, if any.
	Err error
}

// Config configures a Sender.
type Config struct {
	// Queue is drained by the sender. Required.
	Queue *queue.Queue

	// Codec encodes batches. Default: JSON.
	Codec codec.Codec

	// Standard is the default transport. Required.
	Standard transport.Transport

	// Keepalive is used for forced flushes under KeepaliveLimit.
	// Default: Standard.
	Keepalive transport.Transport

	// Pixel fires the fallback request. Nil disables the fallback.
	Pixel Pixel

	// FallbackURL is the pixel endpoint the fallback targets.
	FallbackURL string

	// MaxBatch caps the events per attempt. Default: 10.
	MaxBatch int

	// KeepaliveLimit is the exclusive payload size bound, in bytes, for
	// the keepalive transport. Default: 60000.
	KeepaliveLimit int

	// Continue schedules another attempt when events remain after one
	// finishes. It must not call TrySend synchronously.
	Continue func(force bool)

	// OnBatch receives the result of every attempt.
	OnBatch func(Result)

	// Errors receives background failures.
	Errors *pterrors.AsyncErrorHandler

	Logger  Logger
	Metrics Metrics

	// Tracer creates a span per attempt. Default: the global provider.
	Tracer trace.Tracer

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// Sender drains the queue in batches and delivers them.
type Sender struct {
	queue          *queue.Queue
	codec          codec.Codec
	standard       transport.Transport
	keepalive      transport.Transport
	pixel          Pixel
	fallbackURL    string
	maxBatch       int
	keepaliveLimit int
	onBatch        func(Result)
	errHandler     *pterrors.AsyncErrorHandler
	logger         Logger
	metrics        Metrics
	tracer         trace.Tracer
	now            func() time.Time

	mu   sync.RWMutex
	next func(force bool)

	inFlight atomic.Bool
	wg       sync.WaitGroup

	// forceNext holds a forced request that arrived while an attempt was
	// in flight. The next attempt to start is forced.
	forceNext atomic.Bool

	attempts     atomic.Int64
	batchesSent  atomic.Int64
	eventsSent   atomic.Int64
	fallbacks    atomic.Int64
	encodeErrors atomic.Int64
	dropped      atomic.Int64
	keepalives   atomic.Int64
	oversized    atomic.Int64
}

// New creates a sender.
func New(cfg Config) (*Sender, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("%w: sender requires a queue", pterrors.ErrInvalidConfig)
	}
	if cfg.Standard == nil {
		return nil, fmt.Errorf("%w: sender requires a transport", pterrors.ErrInvalidConfig)
	}

	s := &Sender{
		queue:          cfg.Queue,
		codec:          cfg.Codec,
		standard:       cfg.Standard,
		keepalive:      cfg.Keepalive,
		pixel:          cfg.Pixel,
		fallbackURL:    cfg.FallbackURL,
		maxBatch:       cfg.MaxBatch,
		keepaliveLimit: cfg.KeepaliveLimit,
		next:           cfg.Continue,
		onBatch:        cfg.OnBatch,
		errHandler:     cfg.Errors,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		tracer:         cfg.Tracer,
		now:            cfg.Now,
	}
	if s.codec == nil {
		s.codec = codec.JSON{}
	}
	if s.keepalive == nil {
		s.keepalive = s.standard
	}
	if s.maxBatch <= 0 {
		s.maxBatch = config.MaxBatch
	}
	if s.keepaliveLimit <= 0 {
		s.keepaliveLimit = config.DefaultKeepaliveLimit
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(TracerName)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// SetContinuation replaces the continuation hook. The scheduler installs
// itself here after both are constructed.
func (s *Sender) SetContinuation(fn func(force bool)) {
	s.mu.Lock()
	s.next = fn
	s.mu.Unlock()
}

// TrySend starts one delivery attempt. It returns false without sending
// when an attempt is already in flight or the queue is empty. A forced
// call that finds an attempt in flight is deferred: the next attempt to
// start, usually the continuation, is forced.
//
// ctx bounds standard-transport requests. The keepalive transport and the
// fallback pixel detach from it.
func (s *Sender) TrySend(ctx context.Context, force bool) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		if force {
			s.forceNext.Store(true)
			s.count("pagetrack.sender.force_deferred", 1)
		}
		return false
	}
	if s.forceNext.Swap(false) {
		force = true
	}

	events := s.queue.Drain(s.maxBatch)
	if len(events) == 0 {
		s.inFlight.Store(false)
		return false
	}
	s.attempts.Add(1)

	batch := event.NewBatch(s.now(), events)
	body, err := s.codec.Encode(batch)
	if err != nil {
		s.dropBatch(batch, force, err)
		s.finish(force)
		return true
	}

	tr := s.selectTransport(force, len(body))

	s.wg.Add(1)
	go s.deliver(ctx, tr, batch, body, force)
	return true
}

// selectTransport picks the keepalive transport for forced flushes whose
// payload is under the keepalive limit, and the standard one otherwise.
func (s *Sender) selectTransport(force bool, size int) transport.Transport {
	if !force {
		return s.standard
	}
	if size < s.keepaliveLimit {
		s.keepalives.Add(1)
		s.count("pagetrack.sender.keepalive_selected", 1)
		return s.keepalive
	}

	s.oversized.Add(1)
	s.count("pagetrack.sender.oversize_forced", 1)
	if s.logger != nil {
		s.logger.Printf("pagetrack: forced batch of %d bytes exceeds keepalive limit %d, using %s transport",
			size, s.keepaliveLimit, s.standard.Name())
	}
	return s.standard
}

func (s *Sender) deliver(ctx context.Context, tr transport.Transport, batch event.Batch, body []byte, force bool) {
	defer s.wg.Done()
	defer s.finish(force)

	start := s.now()
	spanCtx, span := s.tracer.Start(ctx, "pagetrack.send",
		trace.WithAttributes(
			attribute.Int("pagetrack.batch.events", batch.Len()),
			attribute.Int("pagetrack.batch.bytes", len(body)),
			attribute.Bool("pagetrack.batch.forced", force),
			attribute.String("pagetrack.transport", tr.Name()),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	resp, err := tr.Send(spanCtx, transport.Request{
		Body:        body,
		ContentType: s.codec.ContentType(),
		EventCount:  batch.Len(),
	})

	result := Result{
		EventCount: batch.Len(),
		Bytes:      len(body),
		Forced:     force,
		Transport:  tr.Name(),
		StatusCode: resp.StatusCode,
		RequestID:  resp.RequestID,
		Err:        err,
	}

	if err != nil {
		result.Fallback = s.fallback(ctx, body)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.report(pterrors.WrapAsyncError(pterrors.AsyncOpSend, err).
			WithEventCount(batch.Len()).
			WithForced(force))
		s.count("pagetrack.sender.transport_errors", 1)
		if s.logger != nil {
			s.logger.Printf("pagetrack: send of %d events failed: %v", batch.Len(), err)
		}
	} else {
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		span.SetStatus(codes.Ok, "")
		s.batchesSent.Add(1)
		s.eventsSent.Add(int64(batch.Len()))
		s.count("pagetrack.sender.batches_sent", 1)
		s.count("pagetrack.sender.events_sent", int64(batch.Len()))
	}
	span.End()

	result.Duration = s.now().Sub(start)
	if s.metrics != nil {
		s.metrics.RecordDuration("pagetrack.sender.duration", result.Duration)
	}
	s.publish(result)
}

// fallback fires the pixel once with the payload that failed. The result
// is not observed.
func (s *Sender) fallback(ctx context.Context, body []byte) bool {
	if s.pixel == nil || s.fallbackURL == "" {
		s.dropped.Add(1)
		return false
	}
	s.pixel.Fire(ctx, transport.FallbackURL(s.fallbackURL, body, s.now()))
	s.fallbacks.Add(1)
	s.count("pagetrack.sender.fallbacks", 1)
	return true
}

func (s *Sender) dropBatch(batch event.Batch, force bool, err error) {
	s.encodeErrors.Add(1)
	s.dropped.Add(1)
	s.count("pagetrack.sender.encode_errors", 1)
	s.count("pagetrack.sender.events_dropped", int64(batch.Len()))

	var encErr *pterrors.EncodeError
	if !errors.As(err, &encErr) {
		err = &pterrors.EncodeError{Codec: s.codec.Name(), Err: err}
	}
	if s.logger != nil {
		s.logger.Printf("pagetrack: dropping batch of %d events: %v", batch.Len(), err)
	}
	s.report(pterrors.NewAsyncError(pterrors.AsyncOpEncode, err).
		WithEventCount(batch.Len()).
		WithForced(force))
	s.publish(Result{EventCount: batch.Len(), Forced: force, Err: err})
}

// finish clears the in-flight flag and asks for another turn if events
// are still queued.
func (s *Sender) finish(force bool) {
	s.inFlight.Store(false)
	if s.metrics != nil {
		s.metrics.SetGauge("pagetrack.queue.pending", float64(s.queue.Len()))
	}
	if s.queue.IsEmpty() {
		return
	}

	s.mu.RLock()
	next := s.next
	s.mu.RUnlock()
	if next != nil {
		next(force)
	}
}

func (s *Sender) publish(r Result) {
	if s.onBatch != nil {
		s.onBatch(r)
	}
}

func (s *Sender) report(err *pterrors.AsyncError) {
	if s.errHandler != nil {
		s.errHandler.Handle(err)
	}
}

func (s *Sender) count(name string, v int64) {
	if s.metrics != nil {
		s.metrics.IncrementCounter(name, v)
	}
}

// InFlight reports whether an attempt is in progress.
func (s *Sender) InFlight() bool {
	return s.inFlight.Load()
}

// Wait blocks until the in-flight attempt, if any, has finished.
func (s *Sender) Wait() {
	s.wg.Wait()
}

// Stats contains sender counters.
type Stats struct {
	Attempts          int64
	BatchesSent       int64
	EventsSent        int64
	Fallbacks         int64
	EncodeErrors      int64
	BatchesDropped    int64
	KeepaliveSelected int64
	OversizeForced    int64
}

// Stats returns a snapshot of the sender counters.
func (s *Sender) Stats() Stats {
	return Stats{
		Attempts:          s.attempts.Load(),
		BatchesSent:       s.batchesSent.Load(),
		EventsSent:        s.eventsSent.Load(),
		Fallbacks:         s.fallbacks.Load(),
		EncodeErrors:      s.encodeErrors.Load(),
		BatchesDropped:    s.dropped.Load(),
		KeepaliveSelected: s.keepalives.Load(),
		OversizeForced:    s.oversized.Load(),
	}
}
