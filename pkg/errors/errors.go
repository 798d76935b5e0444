package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of error for metrics and logging.
type ErrorCode string

// Error codes for categorization.
const (
	ErrCodeConfig    ErrorCode = "CONFIG"    // Configuration errors
	ErrCodeTransport ErrorCode = "TRANSPORT" // Network/connection errors
	ErrCodeEncode    ErrorCode = "ENCODE"    // Batch serialization errors
	ErrCodeSession   ErrorCode = "SESSION"   // Session storage errors
	ErrCodeShutdown  ErrorCode = "SHUTDOWN"  // Shutdown-related errors
	ErrCodeInternal  ErrorCode = "INTERNAL"  // Internal errors
)

// Sentinel errors.
var (
	ErrMissingEndpoint = errors.New("pagetrack: endpoint is required")
	ErrInvalidConfig   = errors.New("pagetrack: invalid configuration")
	ErrCollectorClosed = errors.New("pagetrack: collector is closed")
	ErrDisabled        = errors.New("pagetrack: collection is disabled")
)

// TransportError is returned by a transport when the request could not be
// made or did not complete. HTTP status codes are never transport errors.
type TransportError struct {
	// Transport names the transport that failed ("standard", "keepalive", "pixel").
	Transport string
	// RequestID is the X-Request-ID sent with the request, if any.
	RequestID string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("pagetrack: %s transport failed (request %s): %v", e.Transport, e.RequestID, e.Err)
	}
	return fmt.Sprintf("pagetrack: %s transport failed: %v", e.Transport, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Code returns ErrCodeTransport.
func (e *TransportError) Code() ErrorCode {
	return ErrCodeTransport
}

// EncodeError is returned when a batch cannot be serialized.
type EncodeError struct {
	Codec string
	Err   error
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	return fmt.Sprintf("pagetrack: %s encode failed: %v", e.Codec, e.Err)
}

// Unwrap returns the underlying error.
func (e *EncodeError) Unwrap() error {
	return e.Err
}

// Code returns ErrCodeEncode.
func (e *EncodeError) Code() ErrorCode {
	return ErrCodeEncode
}

// ShutdownError is returned by Close when the queue could not be drained
// before the deadline.
type ShutdownError struct {
	Cause         error
	PendingEvents int
	Message       string
}

// Error implements the error interface.
func (e *ShutdownError) Error() string {
	if e.PendingEvents > 0 {
		return fmt.Sprintf("pagetrack: shutdown: %s (%d events not sent): %v", e.Message, e.PendingEvents, e.Cause)
	}
	return fmt.Sprintf("pagetrack: shutdown: %s: %v", e.Message, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ShutdownError) Unwrap() error {
	return e.Cause
}

// Code returns ErrCodeShutdown.
func (e *ShutdownError) Code() ErrorCode {
	return ErrCodeShutdown
}

// coder is implemented by every typed error in this package.
type coder interface {
	Code() ErrorCode
}

// CodeOf returns the error code for err, or ErrCodeInternal if err carries none.
func CodeOf(err error) ErrorCode {
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	if errors.Is(err, ErrMissingEndpoint) || errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrDisabled) {
		return ErrCodeConfig
	}
	return ErrCodeInternal
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var terr *TransportError
	return errors.As(err, &terr)
}
