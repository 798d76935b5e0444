package errors

import (
	"fmt"
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
}

// AsyncErrorOperation identifies the background operation that failed.
type AsyncErrorOperation string

// Async error operations.
const (
	AsyncOpSend     AsyncErrorOperation = "send"
	AsyncOpEncode   AsyncErrorOperation = "encode"
	AsyncOpPixel    AsyncErrorOperation = "pixel"
	AsyncOpSession  AsyncErrorOperation = "session"
	AsyncOpShutdown AsyncErrorOperation = "shutdown"
)

// AsyncError represents an error that occurred in background processing.
type AsyncError struct {
	// Time is when the error occurred.
	Time time.Time

	// Operation identifies the background operation that failed.
	Operation AsyncErrorOperation

	// EventCount is the number of events in the affected batch.
	EventCount int

	// Forced reports whether the attempt was a forced flush.
	Forced bool

	// Err is the underlying error.
	Err error
}

// NewAsyncError creates a new async error.
func NewAsyncError(op AsyncErrorOperation, err error) *AsyncError {
	return &AsyncError{
		Time:      time.Now(),
		Operation: op,
		Err:       err,
	}
}

// Error implements the error interface.
func (e *AsyncError) Error() string {
	if e.EventCount > 0 {
		return fmt.Sprintf("pagetrack async error [%s] at %s (%d events affected): %v",
			e.Operation, e.Time.Format(time.RFC3339), e.EventCount, e.Err)
	}
	return fmt.Sprintf("pagetrack async error [%s] at %s: %v",
		e.Operation, e.Time.Format(time.RFC3339), e.Err)
}

// Unwrap returns the underlying error.
func (e *AsyncError) Unwrap() error {
	return e.Err
}

// WithEventCount records how many events the failure affected.
func (e *AsyncError) WithEventCount(n int) *AsyncError {
	e.EventCount = n
	return e
}

// WithForced records whether the failed attempt was forced.
func (e *AsyncError) WithForced(forced bool) *AsyncError {
	e.Forced = forced
	return e
}

// AsyncErrorHandler buffers background errors in a channel and fans them
// out to callbacks. It never blocks the sender: a full buffer drops the
// error and counts it.
type AsyncErrorHandler struct {
	// Errors is a buffered channel for receiving async errors.
	Errors chan *AsyncError

	bufferSize int
	metrics    Metrics
	logger     Logger

	mu         sync.RWMutex
	onError    func(*AsyncError)
	onOverflow func(dropped int)

	totalErrors  atomic.Int64
	droppedCount atomic.Int64
	errorsByOp   sync.Map // map[AsyncErrorOperation]*atomic.Int64
}

// AsyncErrorConfig configures the AsyncErrorHandler.
type AsyncErrorConfig struct {
	// BufferSize is the size of the error channel buffer.
	// Default: 100
	BufferSize int

	Metrics Metrics
	Logger  Logger

	// OnError is called for each error.
	OnError func(*AsyncError)

	// OnOverflow is called when errors are dropped due to a full buffer.
	OnOverflow func(dropped int)
}

// NewAsyncErrorHandler creates a new async error handler.
func NewAsyncErrorHandler(cfg *AsyncErrorConfig) *AsyncErrorHandler {
	if cfg == nil {
		cfg = &AsyncErrorConfig{}
	}

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 100
	}

	return &AsyncErrorHandler{
		Errors:     make(chan *AsyncError, bufferSize),
		bufferSize: bufferSize,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		onError:    cfg.OnError,
		onOverflow: cfg.OnOverflow,
	}
}

// Handle processes an async error.
func (h *AsyncErrorHandler) Handle(err *AsyncError) {
	if err == nil {
		return
	}

	h.totalErrors.Add(1)
	counter, _ := h.errorsByOp.LoadOrStore(err.Operation, &atomic.Int64{})
	counter.(*atomic.Int64).Add(1)

	select {
	case h.Errors <- err:
	default:
		dropped := h.droppedCount.Add(1)

		if h.metrics != nil {
			h.metrics.IncrementCounter("pagetrack.async_errors.dropped", 1)
		}
		if h.logger != nil {
			h.logger.Printf("pagetrack: async error dropped (buffer full, %d total dropped): %v", dropped, err)
		}

		h.mu.RLock()
		onOverflow := h.onOverflow
		h.mu.RUnlock()
		if onOverflow != nil {
			onOverflow(int(dropped))
		}
	}

	h.mu.RLock()
	onError := h.onError
	h.mu.RUnlock()
	if onError != nil {
		onError(err)
	}

	if h.metrics != nil {
		h.metrics.IncrementCounter("pagetrack.async_errors.total", 1)
		h.metrics.IncrementCounter(fmt.Sprintf("pagetrack.async_errors.%s", err.Operation), 1)
	}
}

// SetCallback replaces the error callback.
func (h *AsyncErrorHandler) SetCallback(fn func(*AsyncError)) {
	h.mu.Lock()
	h.onError = fn
	h.mu.Unlock()
}

// DroppedCount returns the total number of dropped errors.
func (h *AsyncErrorHandler) DroppedCount() int64 {
	return h.droppedCount.Load()
}

// TotalErrors returns the total number of errors handled.
func (h *AsyncErrorHandler) TotalErrors() int64 {
	return h.totalErrors.Load()
}

// ErrorsByOperation returns the error count for one operation.
func (h *AsyncErrorHandler) ErrorsByOperation(op AsyncErrorOperation) int64 {
	counter, ok := h.errorsByOp.Load(op)
	if !ok {
		return 0
	}
	return counter.(*atomic.Int64).Load()
}

// Drain returns all buffered errors without blocking.
func (h *AsyncErrorHandler) Drain() []*AsyncError {
	var out []*AsyncError
	for {
		select {
		case err := <-h.Errors:
			out = append(out, err)
		default:
			return out
		}
	}
}

// AsyncErrorStats contains statistics about async error handling.
type AsyncErrorStats struct {
	TotalErrors  int64
	DroppedCount int64
	Pending      int
	BufferSize   int
}

// Stats returns current error handling statistics.
func (h *AsyncErrorHandler) Stats() AsyncErrorStats {
	return AsyncErrorStats{
		TotalErrors:  h.totalErrors.Load(),
		DroppedCount: h.droppedCount.Load(),
		Pending:      len(h.Errors),
		BufferSize:   h.bufferSize,
	}
}

// WrapAsyncError wraps err in an AsyncError unless it already is one.
func WrapAsyncError(op AsyncErrorOperation, err error) *AsyncError {
	if err == nil {
		return nil
	}
	if asyncErr, ok := err.(*AsyncError); ok {
		return asyncErr
	}
	return NewAsyncError(op, err)
}
