package pagetrack

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewFromEnv(t *testing.T) {
	t.Setenv(EnvHost, "http://127.0.0.1:9")
	t.Setenv(EnvFlushInterval, "2s")
	t.Setenv(EnvCodec, "cbor")
	t.Setenv(EnvGzip, "true")

	c, err := NewFromEnv(WithActiveTime(false))
	if err != nil {
		t.Fatalf("NewFromEnv() error = %v", err)
	}
	defer c.Close(context.Background())

	if c.config.EventEndpoint != "http://127.0.0.1:9/bvsdt" {
		t.Errorf("EventEndpoint = %q", c.config.EventEndpoint)
	}
	if c.config.FlushInterval != 2*time.Second {
		t.Errorf("FlushInterval = %v, want 2s", c.config.FlushInterval)
	}
	if c.config.Codec != "cbor" || !c.config.Gzip {
		t.Errorf("Codec = %q Gzip = %t", c.config.Codec, c.config.Gzip)
	}
}

func TestNewFromEnv_OptionsOverrideEnv(t *testing.T) {
	t.Setenv(EnvHost, "http://127.0.0.1:9")
	t.Setenv(EnvCodec, "cbor")

	c, err := NewFromEnv(WithCodec("json"), WithHost("http://127.0.0.1:10"))
	if err != nil {
		t.Fatalf("NewFromEnv() error = %v", err)
	}
	defer c.Close(context.Background())

	if c.config.Codec != "json" {
		t.Errorf("Codec = %q, want json", c.config.Codec)
	}
	if c.config.EventEndpoint != "http://127.0.0.1:10/bvsdt" {
		t.Errorf("EventEndpoint = %q", c.config.EventEndpoint)
	}
}

func TestNewFromEnv_Disabled(t *testing.T) {
	t.Setenv(EnvHost, "http://127.0.0.1:9")
	t.Setenv(EnvDisabled, "true")

	c, err := NewFromEnv()
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("NewFromEnv() error = %v, want ErrDisabled", err)
	}
	if c != nil {
		t.Error("collector should be nil when disabled")
	}
}

func TestNewFromEnv_MissingHost(t *testing.T) {
	t.Setenv(EnvHost, "")
	if _, err := NewFromEnv(); !errors.Is(err, ErrMissingEndpoint) {
		t.Errorf("NewFromEnv() error = %v, want ErrMissingEndpoint", err)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".pagetrack.yaml")
	content := "host: http://127.0.0.1:9\nflush_interval: 3s\nevent_path: /events\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile() error = %v", err)
	}
	defer c.Close(context.Background())

	if c.config.EventEndpoint != "http://127.0.0.1:9/events" {
		t.Errorf("EventEndpoint = %q", c.config.EventEndpoint)
	}
	if c.config.PixelEndpoint != "http://127.0.0.1:9/bvsdt.gif" {
		t.Errorf("PixelEndpoint = %q", c.config.PixelEndpoint)
	}
	if c.config.FlushInterval != 3*time.Second {
		t.Errorf("FlushInterval = %v, want 3s", c.config.FlushInterval)
	}
}
