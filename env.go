package pagetrack

import (
	pkgconfig "github.com/jdziat/pagetrack-go/pkg/config"
)

// Environment variable names, re-exported from pkg/config.
const (
	EnvHost          = pkgconfig.EnvHost
	EnvFlushInterval = pkgconfig.EnvFlushInterval
	EnvCodec         = pkgconfig.EnvCodec
	EnvGzip          = pkgconfig.EnvGzip
	EnvSessionDB     = pkgconfig.EnvSessionDB
	EnvDebug         = pkgconfig.EnvDebug
	EnvDisabled      = pkgconfig.EnvDisabled
)

// NewFromEnv creates a collector configured from PAGETRACK_* environment
// variables. Explicit options are applied on top of the environment.
// It returns ErrDisabled when PAGETRACK_DISABLED is true.
//
//	c, err := pagetrack.NewFromEnv(pagetrack.WithActiveTime(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close(context.Background())
func NewFromEnv(opts ...Option) (*Collector, error) {
	if pkgconfig.IsDisabled() {
		return nil, ErrDisabled
	}
	s, err := pkgconfig.FromEnv()
	if err != nil {
		return nil, err
	}
	return newFromSettings(s, opts)
}

// NewFromFile creates a collector from a YAML or JSONC config file with
// environment overrides. An empty path searches upward from the working
// directory for .pagetrack.yaml, .pagetrack.yml, .pagetrack.jsonc or
// .pagetrack.json.
func NewFromFile(path string, opts ...Option) (*Collector, error) {
	if pkgconfig.IsDisabled() {
		return nil, ErrDisabled
	}
	s, _, err := pkgconfig.Load(path)
	if err != nil {
		return nil, err
	}
	return newFromSettings(s, opts)
}

func newFromSettings(s pkgconfig.Settings, opts []Option) (*Collector, error) {
	cfg := ConfigFromSettings(s)
	for _, opt := range opts {
		opt(cfg)
	}
	return NewWithConfig(cfg)
}
