// Package errors provides the error types used by the pagetrack collector.
//
// Collector errors never reach the code that calls Track: telemetry is a
// fire-and-forget path and a broken endpoint must degrade to "no
// analytics", not to a broken page. Background failures are instead
// reported as AsyncError values to an optional AsyncErrorHandler, to the
// configured logger and to metrics.
//
// # Error Types
//
//   - TransportError: a request could not be made or completed at the
//     transport level (network unreachable, request construction
//     failure, open circuit). Triggers the fallback pixel.
//   - EncodeError: a batch could not be serialized. The batch is dropped.
//   - AsyncError: wraps either of the above with the background
//     operation that failed and the number of affected events.
//
// # Sentinel Errors
//
//   - ErrMissingEndpoint, ErrInvalidConfig: configuration errors
//   - ErrCollectorClosed: operations on a closed collector
//   - ErrDisabled: collection switched off by configuration
//
// Use errors.Is() for sentinel comparison and errors.As() for the typed
// errors:
//
//	var terr *errors.TransportError
//	if stdErrors.As(err, &terr) {
//	    log.Printf("transport %s failed: %v", terr.Transport, terr.Err)
//	}
package errors
