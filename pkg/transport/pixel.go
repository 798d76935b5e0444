package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	pterrors "github.com/jdziat/pagetrack-go/pkg/errors"
	"github.com/jdziat/pagetrack-go/pkg/event"
)

// PixelConfig configures a Pixel.
type PixelConfig struct {
	// Client performs the GET. Its cookie jar is ignored.
	Client *http.Client

	// Timeout bounds each pixel request. Default: 10s.
	Timeout time.Duration

	// Logger, when set, receives pixel failures.
	Logger Logger

	// Metrics, when set, counts pixels fired and failed.
	Metrics Metrics

	// OnError is called with each failure. Pixel results are otherwise
	// discarded.
	OnError func(err error)
}

// Pixel fires image-beacon style GET requests. Fire never blocks and
// never reports a result to its caller.
type Pixel struct {
	client  *http.Client
	timeout time.Duration
	logger  Logger
	metrics Metrics
	onError func(error)

	wg sync.WaitGroup
}

// NewPixel creates a pixel transport.
func NewPixel(cfg PixelConfig) *Pixel {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	if client.Jar != nil {
		stripped := *client
		stripped.Jar = nil
		client = &stripped
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Pixel{
		client:  client,
		timeout: timeout,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		onError: cfg.OnError,
	}
}

// Name returns "pixel".
func (p *Pixel) Name() string { return NamePixel }

// Fire requests rawURL in the background. The request is detached from
// ctx so it survives page teardown, and is bounded by the pixel timeout.
func (p *Pixel) Fire(ctx context.Context, rawURL string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)

	if p.metrics != nil {
		p.metrics.IncrementCounter("pagetrack.pixel.fired", 1)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()

		start := time.Now()
		err := p.get(ctx, rawURL)
		if p.metrics != nil {
			p.metrics.RecordDuration("pagetrack.pixel.duration", time.Since(start))
		}
		if err == nil {
			return
		}

		err = &pterrors.TransportError{Transport: NamePixel, Err: err}
		if p.metrics != nil {
			p.metrics.IncrementCounter("pagetrack.pixel.errors", 1)
		}
		if p.logger != nil {
			p.logger.Printf("pagetrack: pixel request failed: %v", err)
		}
		if p.onError != nil {
			p.onError(err)
		}
	}()
}

func (p *Pixel) get(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	return nil
}

// Wait blocks until every fired pixel has finished.
func (p *Pixel) Wait() {
	p.wg.Wait()
}

// FallbackURL builds the fallback pixel URL carrying an encoded batch:
//
//	<base>?d=<base64url(payload)>&_=<ms>
//
// The "_" parameter defeats caches.
func FallbackURL(base string, payload []byte, now time.Time) string {
	return appendQuery(base,
		"d", base64.RawURLEncoding.EncodeToString(payload),
		"_", strconv.FormatInt(event.Millis(now), 10),
	)
}

// PageViewURL builds the page-view pixel URL:
//
//	<base>?n=<session>&p=<path>&s=<search>&r=<referrer>&_=<ms>
func PageViewURL(base, sessionID string, page event.Page, now time.Time) string {
	return appendQuery(base,
		"n", sessionID,
		"p", page.Path,
		"s", page.Search,
		"r", page.Referrer,
		"_", strconv.FormatInt(event.Millis(now), 10),
	)
}

// appendQuery adds key/value pairs to base in the order given.
// url.Values would sort the keys.
func appendQuery(base string, kv ...string) string {
	var b strings.Builder
	b.WriteString(base)
	sep := byte('?')
	if strings.Contains(base, "?") {
		sep = '&'
	}
	for i := 0; i+1 < len(kv); i += 2 {
		b.WriteByte(sep)
		b.WriteString(kv[i])
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[i+1]))
		sep = '&'
	}
	return b.String()
}
