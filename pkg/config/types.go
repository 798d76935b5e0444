// Package config holds the collector defaults and the loaders that read
// collector settings from the environment and from config files.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	// MaxBatch is the largest number of events sent in one request.
	MaxBatch = 10

	// DefaultFlushInterval is the period of the non-forced flush timer.
	DefaultFlushInterval = 5 * time.Second

	// DefaultKeepaliveLimit is the payload size, in bytes, below which a
	// forced flush may use the keepalive transport.
	DefaultKeepaliveLimit = 60000

	// DefaultTimeout is the HTTP client timeout for the standard transport.
	DefaultTimeout = 10 * time.Second

	// DefaultKeepaliveTimeout bounds a keepalive request, which outlives
	// the page context it was started from.
	DefaultKeepaliveTimeout = 30 * time.Second

	// DefaultShutdownTimeout is the default budget for Close.
	DefaultShutdownTimeout = 15 * time.Second

	// DefaultQueueSoftCapacity is the depth against which the queue
	// monitor computes its warning levels. It is not enforced.
	DefaultQueueSoftCapacity = 1000

	// MinFlushInterval is the minimum allowed flush interval.
	MinFlushInterval = 10 * time.Millisecond

	// MaxKeepaliveLimit mirrors the browser keepalive body quota.
	MaxKeepaliveLimit = 64 * 1024
)

// Endpoint paths relative to the collection host.
const (
	DefaultEventPath    = "/bvsdt"
	DefaultPixelPath    = "/bvsdt.gif"
	DefaultPageViewPath = "/bvsarea.gif"
)

// Codec names.
const (
	CodecJSON = "json"
	CodecCBOR = "cbor"
)

// Duration is a time.Duration that reads from "5s"-style strings in env
// vars, YAML and JSON.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Settings is the serializable subset of the collector configuration.
// Zero values mean "use the default".
type Settings struct {
	Host              string   `yaml:"host" json:"host" env:"HOST"`
	EventPath         string   `yaml:"event_path" json:"event_path" env:"EVENT_PATH"`
	PixelPath         string   `yaml:"pixel_path" json:"pixel_path" env:"PIXEL_PATH"`
	PageViewPath      string   `yaml:"page_view_path" json:"page_view_path" env:"PAGE_VIEW_PATH"`
	FlushInterval     Duration `yaml:"flush_interval" json:"flush_interval" env:"FLUSH_INTERVAL"`
	KeepaliveLimit    int      `yaml:"keepalive_limit" json:"keepalive_limit" env:"KEEPALIVE_LIMIT"`
	Timeout           Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	QueueSoftCapacity int      `yaml:"queue_soft_capacity" json:"queue_soft_capacity" env:"QUEUE_SOFT_CAPACITY"`
	Codec             string   `yaml:"codec" json:"codec" env:"CODEC"`
	Gzip              bool     `yaml:"gzip" json:"gzip" env:"GZIP"`
	SessionDB         string   `yaml:"session_db" json:"session_db" env:"SESSION_DB"`
	Debug             bool     `yaml:"debug" json:"debug" env:"DEBUG"`
}

// ApplyDefaults fills zero fields with defaults.
func (s *Settings) ApplyDefaults() {
	if s.EventPath == "" {
		s.EventPath = DefaultEventPath
	}
	if s.PixelPath == "" {
		s.PixelPath = DefaultPixelPath
	}
	if s.PageViewPath == "" {
		s.PageViewPath = DefaultPageViewPath
	}
	if s.FlushInterval.Duration == 0 {
		s.FlushInterval.Duration = DefaultFlushInterval
	}
	if s.KeepaliveLimit == 0 {
		s.KeepaliveLimit = DefaultKeepaliveLimit
	}
	if s.Timeout.Duration == 0 {
		s.Timeout.Duration = DefaultTimeout
	}
	if s.ShutdownTimeout.Duration == 0 {
		s.ShutdownTimeout.Duration = DefaultShutdownTimeout
	}
	if s.QueueSoftCapacity == 0 {
		s.QueueSoftCapacity = DefaultQueueSoftCapacity
	}
	if s.Codec == "" {
		s.Codec = CodecJSON
	}
}
