package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	pterrors "github.com/jdziat/pagetrack-go/pkg/errors"
)

// maxDrain bounds how much of a response body is read before closing it.
// The body is never inspected; reading it lets the connection be reused.
const maxDrain = 64 << 10

// HTTPConfig configures an HTTP batch transport.
type HTTPConfig struct {
	// Endpoint is the absolute URL batches are POSTed to.
	Endpoint string

	// Client is the underlying HTTP client. Its cookie jar is ignored:
	// batch requests never carry credentials.
	// Default: a client with Timeout.
	Client *http.Client

	// Timeout is used when Client is nil.
	Timeout time.Duration

	// Gzip compresses request bodies and sets Content-Encoding.
	Gzip bool

	// Hook observes or decorates requests.
	Hook HTTPHook

	// Breaker, when set, fails requests fast while the endpoint is down.
	// An open circuit is reported as a transport error.
	Breaker *CircuitBreaker

	// UserAgent is sent as the User-Agent header.
	UserAgent string
}

// HTTP is a batch transport that POSTs to an endpoint.
type HTTP struct {
	name      string
	endpoint  string
	client    *http.Client
	gzip      bool
	hook      HTTPHook
	breaker   *CircuitBreaker
	userAgent string

	// detach runs requests on a context that outlives the caller's.
	detach        bool
	detachTimeout time.Duration
}

// NewStandard returns the standard transport. Requests are bound to the
// context passed to Send.
func NewStandard(cfg HTTPConfig) *HTTP {
	return newHTTP(NameStandard, cfg)
}

// NewKeepalive returns the persistent transport. Requests run on a
// context detached from the one passed to Send and bounded by timeout,
// so cancelling the page context does not abort them.
func NewKeepalive(cfg HTTPConfig, timeout time.Duration) *HTTP {
	t := newHTTP(NameKeepalive, cfg)
	t.detach = true
	t.detachTimeout = timeout
	return t
}

func newHTTP(name string, cfg HTTPConfig) *HTTP {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if client.Jar != nil {
		stripped := *client
		stripped.Jar = nil
		client = &stripped
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "pagetrack-go"
	}
	return &HTTP{
		name:      name,
		endpoint:  cfg.Endpoint,
		client:    client,
		gzip:      cfg.Gzip,
		hook:      cfg.Hook,
		breaker:   cfg.Breaker,
		userAgent: ua,
	}
}

// Name implements Transport.
func (t *HTTP) Name() string { return t.name }

// Endpoint returns the URL batches are sent to.
func (t *HTTP) Endpoint() string { return t.endpoint }

// Send implements Transport.
func (t *HTTP) Send(ctx context.Context, req Request) (Response, error) {
	resp := Response{Transport: t.name, RequestID: uuid.NewString()}

	if t.detach {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), t.detachTimeout)
		defer cancel()
	}

	if t.breaker != nil && !t.breaker.Allow() {
		return resp, t.fail(resp.RequestID, ErrCircuitOpen)
	}

	start := time.Now()
	status, err := t.do(ctx, req, resp.RequestID)
	resp.Duration = time.Since(start)
	resp.StatusCode = status

	if t.breaker != nil {
		t.breaker.Record(err)
	}
	if err != nil {
		return resp, t.fail(resp.RequestID, err)
	}
	return resp, nil
}

func (t *HTTP) do(ctx context.Context, req Request, requestID string) (int, error) {
	body := req.Body
	if t.gzip {
		compressed, err := gzipBytes(body)
		if err != nil {
			return 0, fmt.Errorf("compress body: %w", err)
		}
		body = compressed
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", req.ContentType)
	httpReq.Header.Set("User-Agent", t.userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if t.gzip {
		httpReq.Header.Set("Content-Encoding", "gzip")
	}

	if t.hook != nil {
		if err := t.hook.BeforeRequest(ctx, httpReq); err != nil {
			return 0, err
		}
	}

	start := time.Now()
	httpResp, err := t.client.Do(httpReq)
	if t.hook != nil {
		t.hook.AfterResponse(ctx, httpReq, httpResp, time.Since(start), err)
	}
	if err != nil {
		return 0, err
	}
	defer httpResp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, maxDrain))

	return httpResp.StatusCode, nil
}

func (t *HTTP) fail(requestID string, err error) error {
	return &pterrors.TransportError{Transport: t.name, RequestID: requestID, Err: err}
}

var gzipWriters = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzipWriters.Get().(*gzip.Writer)
	defer gzipWriters.Put(zw)

	zw.Reset(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
