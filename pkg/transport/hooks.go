package transport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// HookPriority determines how a hook failure is handled.
type HookPriority int

const (
	// HookPriorityObservational hooks log and count failures but never
	// abort the request. Use for logging, metrics and tracing.
	HookPriorityObservational HookPriority = iota

	// HookPriorityCritical hooks abort the request on failure. The abort
	// is a transport error, so the fallback pixel fires.
	HookPriorityCritical
)

// String returns the priority name.
func (p HookPriority) String() string {
	switch p {
	case HookPriorityObservational:
		return "observational"
	case HookPriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// HTTPHook observes or decorates batch requests.
type HTTPHook interface {
	// BeforeRequest may modify the request. A returned error aborts it.
	BeforeRequest(ctx context.Context, req *http.Request) error

	// AfterResponse sees the response (nil on error) and the request duration.
	AfterResponse(ctx context.Context, req *http.Request, resp *http.Response, duration time.Duration, err error)
}

// HTTPHookFunc adapts plain functions to HTTPHook.
type HTTPHookFunc struct {
	Before func(ctx context.Context, req *http.Request) error
	After  func(ctx context.Context, req *http.Request, resp *http.Response, duration time.Duration, err error)
}

// BeforeRequest implements HTTPHook.
func (f HTTPHookFunc) BeforeRequest(ctx context.Context, req *http.Request) error {
	if f.Before != nil {
		return f.Before(ctx, req)
	}
	return nil
}

// AfterResponse implements HTTPHook.
func (f HTTPHookFunc) AfterResponse(ctx context.Context, req *http.Request, resp *http.Response, duration time.Duration, err error) {
	if f.After != nil {
		f.After(ctx, req, resp, duration, err)
	}
}

// ClassifiedHook is a named hook with a priority.
type ClassifiedHook struct {
	Name     string
	Hook     HTTPHook
	Priority HookPriority
}

// HookChain runs hooks in order before the request and in reverse order
// after it. Panics in hooks are recovered and counted.
type HookChain struct {
	hooks   []ClassifiedHook
	logger  Logger
	metrics Metrics
}

// NewHookChain creates an empty chain. logger and metrics may be nil.
func NewHookChain(logger Logger, metrics Metrics) *HookChain {
	return &HookChain{logger: logger, metrics: metrics}
}

// Add appends a hook.
func (c *HookChain) Add(name string, hook HTTPHook, priority HookPriority) *HookChain {
	c.hooks = append(c.hooks, ClassifiedHook{Name: name, Hook: hook, Priority: priority})
	return c
}

// Len returns the number of hooks.
func (c *HookChain) Len() int {
	return len(c.hooks)
}

// BeforeRequest implements HTTPHook.
func (c *HookChain) BeforeRequest(ctx context.Context, req *http.Request) error {
	for _, h := range c.hooks {
		if err := c.before(ctx, req, h); err != nil {
			return err
		}
	}
	return nil
}

func (c *HookChain) before(ctx context.Context, req *http.Request, h ClassifiedHook) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.recovered(h.Name, "BeforeRequest", r)
			if h.Priority == HookPriorityCritical {
				err = fmt.Errorf("pagetrack: critical hook %q panicked: %v", h.Name, r)
			}
		}
	}()

	hookErr := h.Hook.BeforeRequest(ctx, req)
	if hookErr == nil {
		return nil
	}

	if c.metrics != nil {
		c.metrics.IncrementCounter("pagetrack.hooks.failures", 1)
		c.metrics.IncrementCounter("pagetrack.hooks.failures."+h.Name, 1)
	}
	if h.Priority == HookPriorityObservational {
		if c.logger != nil {
			c.logger.Printf("pagetrack: observational hook %q failed (continuing): %v", h.Name, hookErr)
		}
		return nil
	}
	return fmt.Errorf("pagetrack: critical hook %q failed: %w", h.Name, hookErr)
}

// AfterResponse implements HTTPHook.
func (c *HookChain) AfterResponse(ctx context.Context, req *http.Request, resp *http.Response, duration time.Duration, err error) {
	for i := len(c.hooks) - 1; i >= 0; i-- {
		c.after(ctx, req, resp, duration, err, c.hooks[i])
	}
}

func (c *HookChain) after(ctx context.Context, req *http.Request, resp *http.Response, duration time.Duration, err error, h ClassifiedHook) {
	defer func() {
		if r := recover(); r != nil {
			c.recovered(h.Name, "AfterResponse", r)
		}
	}()
	h.Hook.AfterResponse(ctx, req, resp, duration, err)
}

func (c *HookChain) recovered(name, phase string, r any) {
	if c.logger != nil {
		c.logger.Printf("pagetrack: hook %q panicked in %s: %v", name, phase, r)
	}
	if c.metrics != nil {
		c.metrics.IncrementCounter("pagetrack.hooks.panics", 1)
	}
}

// HeaderHook sets fixed headers on every batch request.
func HeaderHook(headers map[string]string) HTTPHook {
	return HTTPHookFunc{
		Before: func(_ context.Context, req *http.Request) error {
			for k, v := range headers {
				req.Header.Set(k, v)
			}
			return nil
		},
	}
}

// LoggingHook logs each request and its outcome.
func LoggingHook(logger Logger) HTTPHook {
	return HTTPHookFunc{
		After: func(_ context.Context, req *http.Request, resp *http.Response, duration time.Duration, err error) {
			id := req.Header.Get("X-Request-ID")
			switch {
			case err != nil:
				logger.Printf("pagetrack: POST %s [%s] failed after %v: %v", req.URL.Path, id, duration, err)
			case resp != nil:
				logger.Printf("pagetrack: POST %s [%s] %d in %v", req.URL.Path, id, resp.StatusCode, duration)
			}
		},
	}
}

// MetricsHook records request counts, durations and status codes:
//
//   - pagetrack.http.requests
//   - pagetrack.http.duration
//   - pagetrack.http.errors
//   - pagetrack.http.status.<code>
func MetricsHook(m Metrics) HTTPHook {
	if m == nil {
		return HTTPHookFunc{}
	}
	return HTTPHookFunc{
		After: func(_ context.Context, _ *http.Request, resp *http.Response, duration time.Duration, err error) {
			m.IncrementCounter("pagetrack.http.requests", 1)
			m.RecordDuration("pagetrack.http.duration", duration)
			if err != nil {
				m.IncrementCounter("pagetrack.http.errors", 1)
			}
			if resp != nil {
				m.IncrementCounter("pagetrack.http.status."+strconv.Itoa(resp.StatusCode), 1)
			}
		},
	}
}
