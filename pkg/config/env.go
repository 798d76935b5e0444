package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable read by ParseEnv.
const EnvPrefix = "PAGETRACK_"

// Environment variable names.
const (
	EnvHost          = EnvPrefix + "HOST"
	EnvFlushInterval = EnvPrefix + "FLUSH_INTERVAL"
	EnvCodec         = EnvPrefix + "CODEC"
	EnvGzip          = EnvPrefix + "GZIP"
	EnvSessionDB     = EnvPrefix + "SESSION_DB"
	EnvDebug         = EnvPrefix + "DEBUG"
	EnvDisabled      = EnvPrefix + "DISABLED"
)

// ParseEnv overlays PAGETRACK_* environment variables onto s.
// Unset variables leave the corresponding field untouched.
func ParseEnv(s *Settings) error {
	if err := env.ParseWithOptions(s, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// FromEnv returns settings read from the environment only.
func FromEnv() (Settings, error) {
	var s Settings
	if err := ParseEnv(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// IsDisabled reports whether collection is disabled through PAGETRACK_DISABLED.
func IsDisabled() bool {
	var flags struct {
		Disabled bool `env:"DISABLED"`
	}
	if err := env.ParseWithOptions(&flags, env.Options{Prefix: EnvPrefix}); err != nil {
		return false
	}
	return flags.Disabled
}
