package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TransportError{Transport: "standard", RequestID: "req-1", Err: cause}

	if !strings.Contains(err.Error(), "standard transport failed (request req-1)") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("TransportError should unwrap to its cause")
	}
	if err.Code() != ErrCodeTransport {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeTransport)
	}

	wrapped := fmt.Errorf("send: %w", err)
	if !IsTransport(wrapped) {
		t.Error("IsTransport should see through wrapping")
	}
	if IsTransport(cause) {
		t.Error("IsTransport should be false for a plain error")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"transport", &TransportError{Transport: "pixel", Err: errors.New("x")}, ErrCodeTransport},
		{"encode", &EncodeError{Codec: "json", Err: errors.New("x")}, ErrCodeEncode},
		{"shutdown", &ShutdownError{Cause: errors.New("deadline"), Message: "drain"}, ErrCodeShutdown},
		{"config sentinel", fmt.Errorf("bad: %w", ErrMissingEndpoint), ErrCodeConfig},
		{"async wraps transport", NewAsyncError(AsyncOpSend, &TransportError{Transport: "standard", Err: errors.New("x")}), ErrCodeTransport},
		{"plain", errors.New("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShutdownError(t *testing.T) {
	err := &ShutdownError{Cause: errors.New("context deadline exceeded"), PendingEvents: 7, Message: "drain timed out"}
	if !strings.Contains(err.Error(), "7 events not sent") {
		t.Errorf("Error() = %q", err.Error())
	}
}

type countingMetrics struct {
	counters map[string]int64
}

func (m *countingMetrics) IncrementCounter(name string, value int64) {
	m.counters[name] += value
}

func TestAsyncErrorHandler_Handle(t *testing.T) {
	metrics := &countingMetrics{counters: map[string]int64{}}
	var seen []*AsyncError
	h := NewAsyncErrorHandler(&AsyncErrorConfig{
		BufferSize: 2,
		Metrics:    metrics,
		OnError:    func(e *AsyncError) { seen = append(seen, e) },
	})

	h.Handle(NewAsyncError(AsyncOpSend, errors.New("a")).WithEventCount(10))
	h.Handle(NewAsyncError(AsyncOpEncode, errors.New("b")))
	h.Handle(nil)

	if h.TotalErrors() != 2 {
		t.Errorf("TotalErrors() = %d, want 2", h.TotalErrors())
	}
	if got := h.ErrorsByOperation(AsyncOpSend); got != 1 {
		t.Errorf("ErrorsByOperation(send) = %d, want 1", got)
	}
	if len(seen) != 2 {
		t.Errorf("callback saw %d errors, want 2", len(seen))
	}
	if metrics.counters["pagetrack.async_errors.send"] != 1 {
		t.Errorf("send counter = %d, want 1", metrics.counters["pagetrack.async_errors.send"])
	}

	drained := h.Drain()
	if len(drained) != 2 {
		t.Fatalf("Drain() returned %d, want 2", len(drained))
	}
	if drained[0].EventCount != 10 {
		t.Errorf("EventCount = %d, want 10", drained[0].EventCount)
	}
}

func TestAsyncErrorHandler_Overflow(t *testing.T) {
	var overflowed int
	h := NewAsyncErrorHandler(&AsyncErrorConfig{
		BufferSize: 1,
		OnOverflow: func(dropped int) { overflowed = dropped },
	})

	for i := 0; i < 3; i++ {
		h.Handle(NewAsyncError(AsyncOpPixel, errors.New("x")))
	}

	if h.DroppedCount() != 2 {
		t.Errorf("DroppedCount() = %d, want 2", h.DroppedCount())
	}
	if overflowed != 2 {
		t.Errorf("overflow callback got %d, want 2", overflowed)
	}
	stats := h.Stats()
	if stats.Pending != 1 || stats.BufferSize != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestWrapAsyncError(t *testing.T) {
	if WrapAsyncError(AsyncOpSend, nil) != nil {
		t.Error("WrapAsyncError(nil) should be nil")
	}
	orig := NewAsyncError(AsyncOpPixel, errors.New("x"))
	if WrapAsyncError(AsyncOpSend, orig) != orig {
		t.Error("WrapAsyncError should return an existing AsyncError unchanged")
	}
	wrapped := WrapAsyncError(AsyncOpSession, errors.New("y"))
	if wrapped.Operation != AsyncOpSession {
		t.Errorf("Operation = %v, want %v", wrapped.Operation, AsyncOpSession)
	}
}
