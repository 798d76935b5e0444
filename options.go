package pagetrack

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jdziat/pagetrack-go/pkg/lifecycle"
	"github.com/jdziat/pagetrack-go/pkg/otelmetrics"
	"github.com/jdziat/pagetrack-go/pkg/queue"
	"github.com/jdziat/pagetrack-go/pkg/sender"
	"github.com/jdziat/pagetrack-go/pkg/session"
	"github.com/jdziat/pagetrack-go/pkg/transport"
)

// Option is a function that modifies a Config.
type Option func(*Config)

// WithHost sets the collection host. Endpoints not set explicitly are
// derived from it.
func WithHost(host string) Option {
	return func(c *Config) {
		c.Host = host
	}
}

// WithEventEndpoint sets the absolute URL batches are POSTed to.
func WithEventEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.EventEndpoint = endpoint
	}
}

// WithPixelEndpoint sets the absolute URL of the fallback pixel.
func WithPixelEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.PixelEndpoint = endpoint
	}
}

// WithPageViewEndpoint sets the absolute URL of the page-view pixel.
func WithPageViewEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.PageViewEndpoint = endpoint
	}
}

// WithHTTPClient sets the HTTP client shared by all transports.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithTimeout sets the standard transport's request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithKeepaliveTimeout bounds keepalive requests.
func WithKeepaliveTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.KeepaliveTimeout = timeout
	}
}

// WithFlushInterval sets the timer flush period.
func WithFlushInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.FlushInterval = interval
	}
}

// WithKeepaliveLimit sets the payload size bound for keepalive sends.
func WithKeepaliveLimit(bytes int) Option {
	return func(c *Config) {
		c.KeepaliveLimit = bytes
	}
}

// WithShutdownTimeout bounds Close.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.ShutdownTimeout = timeout
	}
}

// WithQueueSoftCapacity sets the depth the queue monitor reports against.
func WithQueueSoftCapacity(n int) Option {
	return func(c *Config) {
		c.QueueSoftCapacity = n
	}
}

// WithCodec selects the wire format, "json" or "cbor".
func WithCodec(name string) Option {
	return func(c *Config) {
		c.Codec = name
	}
}

// WithGzip compresses batch bodies.
func WithGzip(enabled bool) Option {
	return func(c *Config) {
		c.Gzip = enabled
	}
}

// WithCircuitBreaker enables the circuit breaker on the standard transport.
func WithCircuitBreaker(cfg transport.CircuitBreakerConfig) Option {
	return func(c *Config) {
		c.CircuitBreaker = &cfg
	}
}

// WithHTTPHook adds an observational hook to every batch request.
func WithHTTPHook(name string, hook transport.HTTPHook) Option {
	return WithClassifiedHook(name, hook, transport.HookPriorityObservational)
}

// WithClassifiedHook adds a hook with an explicit priority. A critical
// hook that fails aborts the request, which then counts as a transport
// failure.
func WithClassifiedHook(name string, hook transport.HTTPHook, priority transport.HookPriority) Option {
	return func(c *Config) {
		c.HTTPHooks = append(c.HTTPHooks, transport.ClassifiedHook{Name: name, Hook: hook, Priority: priority})
	}
}

// WithHeaders adds static headers to every batch request.
func WithHeaders(headers map[string]string) Option {
	return WithHTTPHook("headers", transport.HeaderHook(headers))
}

// WithPage sets the initial page context.
func WithPage(page Page) Option {
	return func(c *Config) {
		c.Page = page
	}
}

// WithSessionStore sets the store holding the session identifier.
func WithSessionStore(store session.Store) Option {
	return func(c *Config) {
		c.SessionStore = store
	}
}

// WithSessionDB persists the session identifier in a SQLite file.
func WithSessionDB(path string) Option {
	return func(c *Config) {
		c.SessionDB = path
	}
}

// WithSessionKey sets the key the session identifier is stored under.
func WithSessionKey(key string) Option {
	return func(c *Config) {
		c.SessionKey = key
	}
}

// WithActiveTime enables active-time tracking.
func WithActiveTime(enabled bool) Option {
	return func(c *Config) {
		c.ActiveTime = enabled
	}
}

// WithActiveTimeTick sets the active_time_tick period.
func WithActiveTimeTick(d time.Duration) Option {
	return func(c *Config) {
		c.ActiveTimeTick = d
	}
}

// WithPageView fires the page-view pixel when the collector is created.
func WithPageView(enabled bool) Option {
	return func(c *Config) {
		c.PageViewOnStart = enabled
	}
}

// WithIdleWarning logs a warning if nothing is tracked for d and Close
// was never called.
func WithIdleWarning(d time.Duration) Option {
	return func(c *Config) {
		c.IdleWarningDuration = d
	}
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(c *Config) {
		c.Debug = debug
	}
}

// WithErrorHandler sets a callback for background failures.
func WithErrorHandler(handler func(error)) Option {
	return func(c *Config) {
		c.ErrorHandler = handler
	}
}

// WithOnBatch sets a callback for the result of every send attempt.
func WithOnBatch(fn func(sender.Result)) Option {
	return func(c *Config) {
		c.OnBatch = fn
	}
}

// WithOnQueueLevel sets a callback for queue depth level changes.
func WithOnQueueLevel(fn queue.Callback) Option {
	return func(c *Config) {
		c.OnQueueLevel = fn
	}
}

// WithOnPageState sets a callback for page lifecycle transitions.
func WithOnPageState(fn func(from, to lifecycle.PageState)) Option {
	return func(c *Config) {
		c.OnPageState = fn
	}
}

// WithLogger sets a printf-style logger.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithStructuredLogger sets a structured logger.
func WithStructuredLogger(logger StructuredLogger) Option {
	return func(c *Config) {
		c.StructuredLogger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(c *Config) {
		c.Metrics = metrics
	}
}

// WithOpenTelemetry records collector metrics through OpenTelemetry.
// Without options the global meter provider is used.
func WithOpenTelemetry(opts ...otelmetrics.Option) Option {
	return func(c *Config) {
		c.Metrics = otelmetrics.New(opts...)
	}
}

// WithTracer sets the tracer used for send spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Config) {
		c.Tracer = tracer
	}
}
