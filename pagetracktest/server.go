package pagetracktest

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/jdziat/pagetrack-go/pkg/codec"
	"github.com/jdziat/pagetrack-go/pkg/config"
	"github.com/jdziat/pagetrack-go/pkg/event"
)

// MockServer is a collection endpoint for tests. It records batch POSTs,
// fallback pixels and page-view pixels, and can be scripted to fail.
type MockServer struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []*RecordedRequest
	batches   []*RecordedBatch
	pixels    []*RecordedPixel
	pageViews []url.Values
	changed   chan struct{}

	// script, consumed front to back before falling back to status.
	script []Response
	status int
	delay  time.Duration
}

// Response is one scripted reply to a batch POST.
type Response struct {
	// Status is the HTTP status to write. Zero means 200.
	Status int
	// Drop closes the connection without a response, which the collector
	// sees as a transport failure.
	Drop bool
}

// RecordedRequest is any request the server received.
type RecordedRequest struct {
	Method          string
	Path            string
	Query           url.Values
	Header          http.Header
	Body            []byte
	ContentType     string
	ContentEncoding string
}

// RecordedBatch is a decoded batch POST.
type RecordedBatch struct {
	Batch     event.Batch
	RequestID string
	Codec     string
	Gzipped   bool
	// Dropped is true when the server was scripted to drop the connection.
	Dropped bool
	Err     error
}

// RecordedPixel is a decoded fallback pixel.
type RecordedPixel struct {
	Payload []byte
	Batch   event.Batch
	Cache   string
	Err     error
}

// NewMockServer starts a server answering on the default paths.
func NewMockServer() *MockServer {
	ms := &MockServer{
		status:  http.StatusOK,
		changed: make(chan struct{}, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+config.DefaultEventPath, ms.handleBatch)
	mux.HandleFunc("GET "+config.DefaultPixelPath, ms.handlePixel)
	mux.HandleFunc("GET "+config.DefaultPageViewPath, ms.handlePageView)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ms.record(r, nil)
		http.NotFound(w, r)
	})
	ms.Server = httptest.NewServer(mux)
	return ms
}

// EventURL returns the batch endpoint URL.
func (ms *MockServer) EventURL() string { return ms.URL + config.DefaultEventPath }

// PixelURL returns the fallback pixel URL.
func (ms *MockServer) PixelURL() string { return ms.URL + config.DefaultPixelPath }

// PageViewURL returns the page-view pixel URL.
func (ms *MockServer) PageViewURL() string { return ms.URL + config.DefaultPageViewPath }

func (ms *MockServer) handleBatch(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	req := ms.record(r, body)

	reply := ms.nextResponse()
	rb := decodeBatch(req)
	rb.Dropped = reply.Drop

	ms.mu.Lock()
	delay := ms.delay
	ms.batches = append(ms.batches, rb)
	ms.mu.Unlock()
	ms.notify()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if reply.Drop {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
				return
			}
		}
		panic(http.ErrAbortHandler)
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (ms *MockServer) handlePixel(w http.ResponseWriter, r *http.Request) {
	ms.record(r, nil)
	q := r.URL.Query()
	px := &RecordedPixel{Cache: q.Get("_")}
	px.Payload, px.Err = base64.RawURLEncoding.DecodeString(q.Get("d"))
	if px.Err == nil {
		px.Batch, _, px.Err = decodeAny(px.Payload)
	}

	ms.mu.Lock()
	ms.pixels = append(ms.pixels, px)
	ms.mu.Unlock()
	ms.notify()
	writeGIF(w)
}

func (ms *MockServer) handlePageView(w http.ResponseWriter, r *http.Request) {
	ms.record(r, nil)
	ms.mu.Lock()
	ms.pageViews = append(ms.pageViews, r.URL.Query())
	ms.mu.Unlock()
	ms.notify()
	writeGIF(w)
}

// transparentGIF is a 1x1 transparent GIF.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

func writeGIF(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(transparentGIF)
}

func (ms *MockServer) record(r *http.Request, body []byte) *RecordedRequest {
	req := &RecordedRequest{
		Method:          r.Method,
		Path:            r.URL.Path,
		Query:           r.URL.Query(),
		Header:          r.Header.Clone(),
		Body:            body,
		ContentType:     r.Header.Get("Content-Type"),
		ContentEncoding: r.Header.Get("Content-Encoding"),
	}
	ms.mu.Lock()
	ms.requests = append(ms.requests, req)
	ms.mu.Unlock()
	return req
}

func (ms *MockServer) nextResponse() Response {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(ms.script) > 0 {
		r := ms.script[0]
		ms.script = ms.script[1:]
		return r
	}
	return Response{Status: ms.status}
}

func (ms *MockServer) notify() {
	select {
	case ms.changed <- struct{}{}:
	default:
	}
}

func decodeBatch(req *RecordedRequest) *RecordedBatch {
	rb := &RecordedBatch{
		RequestID: req.Header.Get("X-Request-ID"),
		Gzipped:   req.ContentEncoding == "gzip",
	}
	body := req.Body
	if rb.Gzipped {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			rb.Err = fmt.Errorf("gzip: %w", err)
			return rb
		}
		defer zr.Close()
		if body, err = io.ReadAll(zr); err != nil {
			rb.Err = fmt.Errorf("gzip: %w", err)
			return rb
		}
	}

	var c codec.Codec = codec.JSON{}
	if strings.HasPrefix(req.ContentType, codec.CBOR{}.ContentType()) {
		c = codec.CBOR{}
	}
	rb.Codec = c.Name()
	rb.Err = c.Decode(body, &rb.Batch)
	return rb
}

// decodeAny tries JSON, then CBOR. Pixel payloads carry no content type.
func decodeAny(data []byte) (event.Batch, string, error) {
	var b event.Batch
	if err := (codec.JSON{}).Decode(data, &b); err == nil {
		return b, codec.JSON{}.Name(), nil
	}
	b = event.Batch{}
	if err := (codec.CBOR{}).Decode(data, &b); err != nil {
		return event.Batch{}, "", fmt.Errorf("payload is neither JSON nor CBOR: %w", err)
	}
	return b, codec.CBOR{}.Name(), nil
}

// RespondWithStatus answers every unscripted batch POST with status.
func (ms *MockServer) RespondWithStatus(status int) {
	ms.mu.Lock()
	ms.status = status
	ms.mu.Unlock()
}

// Script queues replies for the next batch POSTs, in order.
func (ms *MockServer) Script(responses ...Response) {
	ms.mu.Lock()
	ms.script = append(ms.script, responses...)
	ms.mu.Unlock()
}

// FailNext drops the connection for the next n batch POSTs.
func (ms *MockServer) FailNext(n int) {
	for i := 0; i < n; i++ {
		ms.Script(Response{Drop: true})
	}
}

// SetDelay delays every batch reply, to hold attempts in flight.
func (ms *MockServer) SetDelay(d time.Duration) {
	ms.mu.Lock()
	ms.delay = d
	ms.mu.Unlock()
}

// Requests returns all recorded requests.
func (ms *MockServer) Requests() []*RecordedRequest {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]*RecordedRequest{}, ms.requests...)
}

// RequestCount returns the number of recorded requests.
func (ms *MockServer) RequestCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.requests)
}

// Batches returns every batch POST received, including dropped ones.
func (ms *MockServer) Batches() []*RecordedBatch {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]*RecordedBatch{}, ms.batches...)
}

// BatchCount returns the number of batch POSTs received.
func (ms *MockServer) BatchCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.batches)
}

// Events returns the events of every answered batch, in arrival order.
func (ms *MockServer) Events() []event.Event {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	var out []event.Event
	for _, b := range ms.batches {
		if !b.Dropped {
			out = append(out, b.Batch.Events...)
		}
	}
	return out
}

// Pixels returns the fallback pixels received.
func (ms *MockServer) Pixels() []*RecordedPixel {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]*RecordedPixel{}, ms.pixels...)
}

// PageViews returns the query of each page-view pixel received.
func (ms *MockServer) PageViews() []url.Values {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]url.Values{}, ms.pageViews...)
}

// Delivered returns the events that reached the server either in an
// answered batch or through a fallback pixel.
func (ms *MockServer) Delivered() []event.Event {
	out := ms.Events()
	for _, px := range ms.Pixels() {
		out = append(out, px.Batch.Events...)
	}
	return out
}

// WaitFor polls cond until it returns true or timeout elapses.
func (ms *MockServer) WaitFor(timeout time.Duration, cond func(*MockServer) bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(5 * time.Millisecond)
	defer poll.Stop()
	for {
		if cond(ms) {
			return true
		}
		select {
		case <-deadline.C:
			return cond(ms)
		case <-ms.changed:
		case <-poll.C:
		}
	}
}

// WaitForEvents waits until at least n events have been delivered.
func (ms *MockServer) WaitForEvents(n int, timeout time.Duration) bool {
	return ms.WaitFor(timeout, func(ms *MockServer) bool {
		return len(ms.Delivered()) >= n
	})
}

// Reset clears recordings and scripted responses.
func (ms *MockServer) Reset() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.requests = nil
	ms.batches = nil
	ms.pixels = nil
	ms.pageViews = nil
	ms.script = nil
	ms.status = http.StatusOK
	ms.delay = 0
}
