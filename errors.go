package pagetrack

import (
	pterrors "github.com/jdziat/pagetrack-go/pkg/errors"
)

// Sentinel errors, re-exported from pkg/errors.
var (
	ErrMissingEndpoint = pterrors.ErrMissingEndpoint
	ErrInvalidConfig   = pterrors.ErrInvalidConfig
	ErrCollectorClosed = pterrors.ErrCollectorClosed
	ErrDisabled        = pterrors.ErrDisabled
)

// Error types, re-exported from pkg/errors.
type (
	TransportError      = pterrors.TransportError
	EncodeError         = pterrors.EncodeError
	ShutdownError       = pterrors.ShutdownError
	AsyncError          = pterrors.AsyncError
	AsyncErrorOperation = pterrors.AsyncErrorOperation
	AsyncErrorHandler   = pterrors.AsyncErrorHandler
	ErrorCode           = pterrors.ErrorCode
)

// Async error operations.
const (
	AsyncOpSend     = pterrors.AsyncOpSend
	AsyncOpEncode   = pterrors.AsyncOpEncode
	AsyncOpPixel    = pterrors.AsyncOpPixel
	AsyncOpSession  = pterrors.AsyncOpSession
	AsyncOpShutdown = pterrors.AsyncOpShutdown
)

// CodeOf returns the error code for err.
func CodeOf(err error) ErrorCode {
	return pterrors.CodeOf(err)
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	return pterrors.IsTransport(err)
}
