// Package transport delivers encoded batches to the collection endpoint.
//
// Three transports exist:
//
//   - Standard: a POST bound to the caller's context. Page teardown
//     cancels that context and may abort the request.
//   - Keepalive: a POST detached from the caller's context so it can
//     complete after teardown. Only small payloads should use it.
//   - Pixel: a fire-and-forget GET carrying its data in the query string,
//     used for the fallback path and for page-view beacons.
//
// A transport returns an error only when the request could not be made or
// did not complete. Any HTTP response, whatever its status, is a success
// from the transport's point of view.
package transport

import (
	"context"
	"time"
)

// Transport names.
const (
	NameStandard  = "standard"
	NameKeepalive = "keepalive"
	NamePixel     = "pixel"
)

// Request is one encoded batch ready to send.
type Request struct {
	// Body is the encoded batch.
	Body []byte

	// ContentType is the codec's content type.
	ContentType string

	// EventCount is the number of events in Body, for logs and metrics.
	EventCount int
}

// Response describes a completed request.
type Response struct {
	// Transport names the transport that carried the request.
	Transport string

	// StatusCode is the HTTP status. It is informational only.
	StatusCode int

	// RequestID is the X-Request-ID header value sent.
	RequestID string

	// Duration is the wall time of the request.
	Duration time.Duration
}

// Transport sends a batch request.
type Transport interface {
	// Name identifies the transport in logs, metrics and results.
	Name() string

	// Send performs the request. The error, when non-nil, is a
	// *errors.TransportError.
	Send(ctx context.Context, req Request) (Response, error)
}

// Logger is a minimal logging interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Metrics is the subset of the collector metrics used by transports.
type Metrics interface {
	IncrementCounter(name string, value int64)
	RecordDuration(name string, duration time.Duration)
}
