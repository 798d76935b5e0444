package pagetrack

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jdziat/pagetrack-go/pkg/codec"
	pkgconfig "github.com/jdziat/pagetrack-go/pkg/config"
	"github.com/jdziat/pagetrack-go/pkg/event"
	"github.com/jdziat/pagetrack-go/pkg/lifecycle"
	"github.com/jdziat/pagetrack-go/pkg/queue"
	"github.com/jdziat/pagetrack-go/pkg/sender"
	"github.com/jdziat/pagetrack-go/pkg/session"
	"github.com/jdziat/pagetrack-go/pkg/transport"
)

// Default configuration values, re-exported from pkg/config.
const (
	MaxBatch                 = pkgconfig.MaxBatch
	DefaultFlushInterval     = pkgconfig.DefaultFlushInterval
	DefaultKeepaliveLimit    = pkgconfig.DefaultKeepaliveLimit
	DefaultTimeout           = pkgconfig.DefaultTimeout
	DefaultKeepaliveTimeout  = pkgconfig.DefaultKeepaliveTimeout
	DefaultShutdownTimeout   = pkgconfig.DefaultShutdownTimeout
	DefaultQueueSoftCapacity = pkgconfig.DefaultQueueSoftCapacity
	MinFlushInterval         = pkgconfig.MinFlushInterval
	MaxKeepaliveLimit        = pkgconfig.MaxKeepaliveLimit
)

// Page is the page context stamped on every event.
type Page = event.Page

// Config holds the configuration for a Collector.
type Config struct {
	// Host is the collection host, e.g. "https://collect.example.com".
	// Endpoints left empty are derived from it.
	Host string

	// EventEndpoint is the absolute URL batches are POSTed to.
	// Default: Host + "/bvsdt".
	EventEndpoint string

	// PixelEndpoint is the absolute URL of the fallback pixel.
	// Default: Host + "/bvsdt.gif". If it cannot be derived, failed
	// batches are dropped without a fallback.
	PixelEndpoint string

	// PageViewEndpoint is the absolute URL of the page-view pixel.
	// Default: Host + "/bvsarea.gif".
	PageViewEndpoint string

	// HTTPClient is used by every transport. Its cookie jar is ignored.
	// Default: a client with Timeout.
	HTTPClient *http.Client

	// Timeout is the standard transport's request timeout.
	// Default: 10s.
	Timeout time.Duration

	// KeepaliveTimeout bounds a keepalive request. Default: 30s.
	KeepaliveTimeout time.Duration

	// FlushInterval is the period of the non-forced timer flush.
	// Default: 5s.
	FlushInterval time.Duration

	// KeepaliveLimit is the exclusive payload size bound, in bytes, below
	// which a forced flush uses the keepalive transport. Default: 60000.
	KeepaliveLimit int

	// ShutdownTimeout bounds Close. Default: 15s.
	ShutdownTimeout time.Duration

	// QueueSoftCapacity is the depth the queue monitor reports levels
	// against. It never limits the queue. Default: 1000.
	QueueSoftCapacity int

	// Codec selects the wire format: "json" (default) or "cbor".
	Codec string

	// Gzip compresses batch bodies.
	Gzip bool

	// CircuitBreaker, when set, fails standard requests fast while the
	// endpoint is down. Failures still go to the fallback pixel.
	CircuitBreaker *transport.CircuitBreakerConfig

	// HTTPHooks observe or decorate every batch request.
	HTTPHooks []transport.ClassifiedHook

	// Page is the initial page context.
	Page Page

	// SessionStore holds the session identifier. It is not closed by the
	// collector. Default: a SQLite store at SessionDB if set, otherwise
	// memory.
	SessionStore session.Store

	// SessionDB is the SQLite file used when SessionStore is nil.
	SessionDB string

	// SessionKey is the key the session identifier is stored under.
	// Default: "session_id".
	SessionKey string

	// ActiveTime records session_start, session_end and
	// active_time_tick as the page is shown and hidden.
	ActiveTime bool

	// ActiveTimeTick is the active_time_tick period. Default: 30m.
	ActiveTimeTick time.Duration

	// PageViewOnStart fires the page-view pixel from New.
	PageViewOnStart bool

	// IdleWarningDuration logs a warning if nothing is tracked for this
	// long and Close was never called. Zero disables it.
	IdleWarningDuration time.Duration

	// Debug enables debug logging to stderr when no logger is set.
	Debug bool

	// ErrorHandler is called with every background failure.
	ErrorHandler func(error)

	// OnBatch is called with the result of every send attempt.
	OnBatch func(sender.Result)

	// OnQueueLevel is called when the queue depth level changes.
	OnQueueLevel queue.Callback

	// OnPageState is called on every page lifecycle transition.
	OnPageState func(from, to lifecycle.PageState)

	// Logger is used for printf-style logging.
	Logger Logger

	// StructuredLogger takes precedence over Logger.
	StructuredLogger StructuredLogger

	// Metrics receives collector telemetry. See pkg/otelmetrics.
	Metrics Metrics

	// Tracer creates a span per send attempt. Default: the global
	// OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

// String returns a representation of the config safe for logs.
func (c *Config) String() string {
	return fmt.Sprintf("Config{EventEndpoint: %q, PixelEndpoint: %q, PageViewEndpoint: %q, Codec: %q, Gzip: %t, FlushInterval: %v, KeepaliveLimit: %d}",
		redactURL(c.EventEndpoint),
		redactURL(c.PixelEndpoint),
		redactURL(c.PageViewEndpoint),
		c.Codec,
		c.Gzip,
		c.FlushInterval,
		c.KeepaliveLimit,
	)
}

// redactURL hides any password in the URL's userinfo.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	host := strings.TrimRight(c.Host, "/")
	if host != "" {
		if c.EventEndpoint == "" {
			c.EventEndpoint = host + pkgconfig.DefaultEventPath
		}
		if c.PixelEndpoint == "" {
			c.PixelEndpoint = host + pkgconfig.DefaultPixelPath
		}
		if c.PageViewEndpoint == "" {
			c.PageViewEndpoint = host + pkgconfig.DefaultPageViewPath
		}
	}

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.KeepaliveTimeout == 0 {
		c.KeepaliveTimeout = DefaultKeepaliveTimeout
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.KeepaliveLimit == 0 {
		c.KeepaliveLimit = DefaultKeepaliveLimit
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.QueueSoftCapacity == 0 {
		c.QueueSoftCapacity = DefaultQueueSoftCapacity
	}
	if c.Codec == "" {
		c.Codec = pkgconfig.CodecJSON
	}
	if c.SessionKey == "" {
		c.SessionKey = session.DefaultKey
	}

	if c.Debug && c.Logger == nil && c.StructuredLogger == nil {
		c.StructuredLogger = WrapStdLogger(stderrLogger)
	}
	if c.StructuredLogger == nil && c.Logger != nil {
		c.StructuredLogger = WrapPrintfLogger(c.Logger)
	}

	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.EventEndpoint == "" {
		return ErrMissingEndpoint
	}
	if err := validateURL("event endpoint", c.EventEndpoint); err != nil {
		return err
	}
	if c.PixelEndpoint != "" {
		if err := validateURL("pixel endpoint", c.PixelEndpoint); err != nil {
			return err
		}
	}
	if c.PageViewEndpoint != "" {
		if err := validateURL("page view endpoint", c.PageViewEndpoint); err != nil {
			return err
		}
	}

	if c.FlushInterval < MinFlushInterval {
		return fmt.Errorf("%w: flush interval must be at least %v, got %v", ErrInvalidConfig, MinFlushInterval, c.FlushInterval)
	}
	if c.KeepaliveLimit < 1 || c.KeepaliveLimit > MaxKeepaliveLimit {
		return fmt.Errorf("%w: keepalive limit must be between 1 and %d, got %d", ErrInvalidConfig, MaxKeepaliveLimit, c.KeepaliveLimit)
	}
	if c.Timeout < 0 || c.KeepaliveTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: timeouts cannot be negative", ErrInvalidConfig)
	}
	if c.QueueSoftCapacity < 0 {
		return fmt.Errorf("%w: queue soft capacity cannot be negative, got %d", ErrInvalidConfig, c.QueueSoftCapacity)
	}
	if _, err := codec.ByName(c.Codec); err != nil {
		return err
	}
	return nil
}

func validateURL(what, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid %s: %v", ErrInvalidConfig, what, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %s must be an http(s) URL, got %q", ErrInvalidConfig, what, redactURL(raw))
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %s has no host", ErrInvalidConfig, what)
	}
	return nil
}

// ConfigFromSettings converts file or environment settings to a Config.
func ConfigFromSettings(s pkgconfig.Settings) *Config {
	s.ApplyDefaults()
	cfg := &Config{
		Host:              s.Host,
		FlushInterval:     s.FlushInterval.Duration,
		KeepaliveLimit:    s.KeepaliveLimit,
		Timeout:           s.Timeout.Duration,
		ShutdownTimeout:   s.ShutdownTimeout.Duration,
		QueueSoftCapacity: s.QueueSoftCapacity,
		Codec:             s.Codec,
		Gzip:              s.Gzip,
		SessionDB:         s.SessionDB,
		Debug:             s.Debug,
	}
	// Only non-default paths are pinned, so a later WithHost still moves
	// the default endpoints.
	if host := strings.TrimRight(s.Host, "/"); host != "" {
		if s.EventPath != pkgconfig.DefaultEventPath {
			cfg.EventEndpoint = host + s.EventPath
		}
		if s.PixelPath != pkgconfig.DefaultPixelPath {
			cfg.PixelEndpoint = host + s.PixelPath
		}
		if s.PageViewPath != pkgconfig.DefaultPageViewPath {
			cfg.PageViewEndpoint = host + s.PageViewPath
		}
	}
	return cfg
}

// DefaultConfig returns a Config for host with all defaults applied.
func DefaultConfig(host string) *Config {
	cfg := &Config{Host: host}
	cfg.ApplyDefaults()
	return cfg
}

// DevelopmentConfig returns a Config tuned for local development: debug
// logging, a short flush interval and an idle warning.
func DevelopmentConfig(host string) *Config {
	cfg := &Config{
		Host:                host,
		Debug:               true,
		FlushInterval:       time.Second,
		IdleWarningDuration: 5 * time.Minute,
	}
	cfg.ApplyDefaults()
	return cfg
}
