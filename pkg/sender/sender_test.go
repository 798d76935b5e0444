package sender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jdziat/pagetrack-go/pkg/codec"
	pterrors "github.com/jdziat/pagetrack-go/pkg/errors"
	"github.com/jdziat/pagetrack-go/pkg/event"
	"github.com/jdziat/pagetrack-go/pkg/queue"
	"github.com/jdziat/pagetrack-go/pkg/transport"
)

type fakeTransport struct {
	name  string
	err   error
	block chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32

	mu     sync.Mutex
	bodies [][]byte
}

func newFakeTransport(name string) *fakeTransport {
	return &fakeTransport{name: name}
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Send(ctx context.Context, req transport.Request) (transport.Response, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		cur := f.maxActive.Load()
		if n <= cur || f.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	f.bodies = append(f.bodies, bytes.Clone(req.Body))
	f.mu.Unlock()

	if f.err != nil {
		return transport.Response{Transport: f.name, RequestID: "req"}, &pterrors.TransportError{Transport: f.name, Err: f.err}
	}
	return transport.Response{Transport: f.name, StatusCode: 204, RequestID: "req"}, nil
}

func (f *fakeTransport) batches(t *testing.T) []event.Batch {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]event.Batch, 0, len(f.bodies))
	for _, body := range f.bodies {
		var b event.Batch
		require.NoError(t, codec.JSON{}.Decode(body, &b))
		out = append(out, b)
	}
	return out
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

type fakePixel struct {
	mu   sync.Mutex
	urls []string
}

func (p *fakePixel) Fire(_ context.Context, rawURL string) {
	p.mu.Lock()
	p.urls = append(p.urls, rawURL)
	p.mu.Unlock()
}

func (p *fakePixel) fired() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.urls...)
}

type sizedCodec struct{ size int }

func (sizedCodec) Name() string        { return "sized" }
func (sizedCodec) ContentType() string { return "application/octet-stream" }
func (c sizedCodec) Encode(event.Batch) ([]byte, error) {
	return bytes.Repeat([]byte("x"), c.size), nil
}
func (sizedCodec) Decode([]byte, *event.Batch) error { return nil }

type failingCodec struct{}

func (failingCodec) Name() string        { return "failing" }
func (failingCodec) ContentType() string { return "application/json" }
func (failingCodec) Encode(event.Batch) ([]byte, error) {
	return nil, errors.New("unsupported value")
}
func (failingCodec) Decode([]byte, *event.Batch) error { return nil }

type harness struct {
	q         *queue.Queue
	standard  *fakeTransport
	keepalive *fakeTransport
	pixel     *fakePixel
	sender    *Sender

	mu      sync.Mutex
	results []Result
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		q:         queue.New(nil),
		standard:  newFakeTransport(transport.NameStandard),
		keepalive: newFakeTransport(transport.NameKeepalive),
		pixel:     &fakePixel{},
	}
	cfg := Config{
		Queue:       h.q,
		Standard:    h.standard,
		Keepalive:   h.keepalive,
		Pixel:       h.pixel,
		FallbackURL: "https://collect.example.com/bvsdt.gif",
		OnBatch: func(r Result) {
			h.mu.Lock()
			h.results = append(h.results, r)
			h.mu.Unlock()
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	h.sender = s
	return h
}

func (h *harness) enqueue(n int) {
	for i := 0; i < n; i++ {
		h.q.Enqueue(event.Event{Timestamp: int64(i), Type: fmt.Sprintf("e%02d", i)})
	}
}

func (h *harness) getResults() []Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Result(nil), h.results...)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Standard: newFakeTransport("s")})
	assert.ErrorIs(t, err, pterrors.ErrInvalidConfig)

	_, err = New(Config{Queue: queue.New(nil)})
	assert.ErrorIs(t, err, pterrors.ErrInvalidConfig)
}

func TestTrySend_EmptyQueueIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	assert.False(t, h.sender.TrySend(context.Background(), false))
	assert.False(t, h.sender.InFlight())
	assert.Equal(t, 0, h.standard.calls())
	assert.Empty(t, h.getResults())
}

func TestTrySend_BatchesOfTenInOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.enqueue(25)

	for i := 0; i < 3; i++ {
		require.True(t, h.sender.TrySend(context.Background(), false))
		h.sender.Wait()
	}
	assert.False(t, h.sender.TrySend(context.Background(), false))

	batches := h.standard.batches(t)
	require.Len(t, batches, 3)
	assert.Equal(t, 10, batches[0].Len())
	assert.Equal(t, 10, batches[1].Len())
	assert.Equal(t, 5, batches[2].Len())

	next := 0
	for _, b := range batches {
		for _, e := range b.Events {
			assert.Equal(t, fmt.Sprintf("e%02d", next), e.Type)
			next++
		}
	}
	assert.Equal(t, 0, h.keepalive.calls())
	assert.True(t, h.q.IsEmpty())

	stats := h.sender.Stats()
	assert.Equal(t, int64(3), stats.Attempts)
	assert.Equal(t, int64(3), stats.BatchesSent)
	assert.Equal(t, int64(25), stats.EventsSent)
}

func TestTrySend_SingleFlight(t *testing.T) {
	h := newHarness(t, nil)
	h.standard.block = make(chan struct{})
	h.keepalive.block = make(chan struct{})
	h.enqueue(30)

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.sender.TrySend(context.Background(), i%2 == 0) {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), started.Load())
	assert.True(t, h.sender.InFlight())
	assert.Equal(t, 20, h.q.Len())

	close(h.standard.block)
	close(h.keepalive.block)
	h.sender.Wait()
	assert.False(t, h.sender.InFlight())
	assert.Equal(t, int32(1), h.standard.maxActive.Load()+h.keepalive.maxActive.Load())
}

func TestTrySend_ForceDeferredBehindInFlight(t *testing.T) {
	turns := make(chan bool, 4)
	m := &countingMetrics{}
	h := newHarness(t, func(c *Config) {
		c.Continue = func(force bool) { turns <- force }
		c.Metrics = m
	})
	h.standard.block = make(chan struct{})
	h.enqueue(12)

	require.True(t, h.sender.TrySend(context.Background(), false))
	assert.False(t, h.sender.TrySend(context.Background(), true), "forced call does not start a second attempt")
	assert.Equal(t, int64(1), m.get("pagetrack.sender.force_deferred"))

	close(h.standard.block)
	h.sender.Wait()

	var force bool
	select {
	case force = <-turns:
	case <-time.After(time.Second):
		t.Fatal("expected a continuation")
	}
	require.True(t, h.sender.TrySend(context.Background(), force))
	h.sender.Wait()

	results := h.getResults()
	require.Len(t, results, 2)
	assert.False(t, results[0].Forced)
	assert.Equal(t, transport.NameStandard, results[0].Transport)
	assert.Equal(t, 10, results[0].EventCount)
	assert.True(t, results[1].Forced, "deferred forced request applies to the next attempt")
	assert.Equal(t, transport.NameKeepalive, results[1].Transport)
	assert.Equal(t, 2, results[1].EventCount)

	h.enqueue(1)
	require.True(t, h.sender.TrySend(context.Background(), false))
	h.sender.Wait()
	assert.False(t, h.getResults()[2].Forced, "the deferred request is consumed once")
}

func TestTrySend_KeepaliveSelection(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		force bool
		want  string
	}{
		{"forced small", 59999, true, transport.NameKeepalive},
		{"forced at limit", 60000, true, transport.NameStandard},
		{"forced over limit", 60001, true, transport.NameStandard},
		{"not forced small", 100, false, transport.NameStandard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(c *Config) { c.Codec = sizedCodec{size: tt.size} })
			h.enqueue(1)

			require.True(t, h.sender.TrySend(context.Background(), tt.force))
			h.sender.Wait()

			results := h.getResults()
			require.Len(t, results, 1)
			assert.Equal(t, tt.want, results[0].Transport)
			assert.Equal(t, tt.size, results[0].Bytes)
			assert.Equal(t, tt.force, results[0].Forced)
		})
	}
}

// jsonEventOfSize returns an event whose single-event JSON batch encodes
// to exactly size bytes.
func jsonEventOfSize(t *testing.T, now time.Time, size int) event.Event {
	t.Helper()
	e := event.Event{Timestamp: 1, Type: event.TypeElementClick, Data: ""}
	base, err := codec.JSON{}.Encode(event.NewBatch(now, []event.Event{e}))
	require.NoError(t, err)
	require.Less(t, len(base), size)
	e.Data = strings.Repeat("a", size-len(base))
	return e
}

func TestTrySend_KeepaliveBoundaryWithJSON(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	for _, tc := range []struct {
		size int
		want string
	}{
		{59999, transport.NameKeepalive},
		{60001, transport.NameStandard},
	} {
		t.Run(fmt.Sprint(tc.size), func(t *testing.T) {
			h := newHarness(t, func(c *Config) { c.Now = func() time.Time { return now } })
			h.q.Enqueue(jsonEventOfSize(t, now, tc.size))

			require.True(t, h.sender.TrySend(context.Background(), true))
			h.sender.Wait()

			results := h.getResults()
			require.Len(t, results, 1)
			assert.Equal(t, tc.size, results[0].Bytes)
			assert.Equal(t, tc.want, results[0].Transport)
		})
	}
}

func TestTrySend_FallbackOncePerFailedBatch(t *testing.T) {
	handler := pterrors.NewAsyncErrorHandler(&pterrors.AsyncErrorConfig{BufferSize: 10})
	h := newHarness(t, func(c *Config) { c.Errors = handler })
	h.standard.err = errors.New("connection refused")
	h.enqueue(25)

	for !h.q.IsEmpty() {
		h.sender.TrySend(context.Background(), false)
		h.sender.Wait()
	}

	fired := h.pixel.fired()
	require.Len(t, fired, 3)
	assert.Equal(t, 3, h.standard.calls())

	u, err := url.Parse(fired[0])
	require.NoError(t, err)
	assert.Equal(t, "/bvsdt.gif", u.Path)
	assert.NotEmpty(t, u.Query().Get("d"))
	assert.NotEmpty(t, u.Query().Get("_"))

	for _, r := range h.getResults() {
		assert.True(t, r.Fallback)
		assert.True(t, pterrors.IsTransport(r.Err))
	}
	assert.Equal(t, int64(3), handler.ErrorsByOperation(pterrors.AsyncOpSend))
	assert.Equal(t, int64(3), h.sender.Stats().Fallbacks)
	assert.Equal(t, int64(0), h.sender.Stats().BatchesSent)
}

func TestTrySend_NoPixelDropsBatch(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Pixel = nil })
	h.standard.err = errors.New("offline")
	h.enqueue(3)

	h.sender.TrySend(context.Background(), false)
	h.sender.Wait()

	assert.True(t, h.q.IsEmpty())
	assert.Equal(t, int64(1), h.sender.Stats().BatchesDropped)
	assert.False(t, h.getResults()[0].Fallback)
}

func TestTrySend_EncodeErrorDropsBatch(t *testing.T) {
	handler := pterrors.NewAsyncErrorHandler(nil)
	h := newHarness(t, func(c *Config) {
		c.Codec = failingCodec{}
		c.Errors = handler
	})
	h.enqueue(12)

	assert.True(t, h.sender.TrySend(context.Background(), false))
	assert.False(t, h.sender.InFlight())
	assert.Equal(t, 2, h.q.Len())
	assert.Equal(t, 0, h.standard.calls())
	assert.Empty(t, h.pixel.fired())

	results := h.getResults()
	require.Len(t, results, 1)
	var encErr *pterrors.EncodeError
	require.ErrorAs(t, results[0].Err, &encErr)
	assert.Equal(t, "failing", encErr.Codec)
	assert.Equal(t, int64(1), handler.ErrorsByOperation(pterrors.AsyncOpEncode))
	assert.Equal(t, int64(1), h.sender.Stats().EncodeErrors)
}

func TestTrySend_ContinuationWhenEventsRemain(t *testing.T) {
	calls := make(chan bool, 4)
	h := newHarness(t, func(c *Config) {
		c.Continue = func(force bool) { calls <- force }
	})
	h.enqueue(15)

	h.sender.TrySend(context.Background(), true)
	h.sender.Wait()
	select {
	case force := <-calls:
		assert.True(t, force, "continuation keeps the force flag")
	default:
		t.Fatal("expected a continuation")
	}

	h.sender.TrySend(context.Background(), false)
	h.sender.Wait()
	select {
	case <-calls:
		t.Fatal("no continuation once the queue is empty")
	default:
	}
}

func TestTrySend_ContinuationDrainsQueue(t *testing.T) {
	turns := make(chan bool, 16)
	h := newHarness(t, func(c *Config) {
		c.Continue = func(force bool) { turns <- force }
	})
	h.enqueue(35)

	h.sender.TrySend(context.Background(), false)
	h.sender.Wait()
	for len(turns) > 0 {
		h.sender.TrySend(context.Background(), <-turns)
		h.sender.Wait()
	}

	assert.True(t, h.q.IsEmpty())
	assert.Len(t, h.standard.batches(t), 4)
}

func TestTrySend_DuplicatesAreSent(t *testing.T) {
	h := newHarness(t, nil)
	h.q.Enqueue(event.Event{Type: event.TypeScroll25})
	h.q.Enqueue(event.Event{Type: event.TypeScroll25})

	h.sender.TrySend(context.Background(), false)
	h.sender.Wait()

	batches := h.standard.batches(t)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Events, 2)
	assert.Equal(t, event.TypeScroll25, batches[0].Events[0].Type)
	assert.Equal(t, event.TypeScroll25, batches[0].Events[1].Type)
}

func TestTrySend_StampsSendTime(t *testing.T) {
	now := time.UnixMilli(1700000000999)
	h := newHarness(t, func(c *Config) { c.Now = func() time.Time { return now } })
	h.enqueue(1)

	h.sender.TrySend(context.Background(), false)
	h.sender.Wait()

	batches := h.standard.batches(t)
	require.Len(t, batches, 1)
	assert.Equal(t, int64(1700000000999), batches[0].SentAt)
}

func TestTrySend_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	h := newHarness(t, func(c *Config) { c.Tracer = tp.Tracer(TracerName) })
	h.enqueue(2)
	h.sender.TrySend(context.Background(), false)
	h.sender.Wait()

	h.standard.err = errors.New("reset by peer")
	h.enqueue(1)
	h.sender.TrySend(context.Background(), false)
	h.sender.Wait()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "pagetrack.send", spans[0].Name)

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, int64(2), attrs["pagetrack.batch.events"])
	assert.Equal(t, transport.NameStandard, attrs["pagetrack.transport"])
	assert.Equal(t, int64(204), attrs["http.response.status_code"])

	assert.Equal(t, "Error", spans[1].Status.Code.String())
	assert.NotEmpty(t, spans[1].Events, "error recorded as span event")
}

type countingMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (m *countingMetrics) IncrementCounter(name string, v int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]int64{}
	}
	m.counters[name] += v
}
func (m *countingMetrics) RecordDuration(string, time.Duration) {}
func (m *countingMetrics) SetGauge(string, float64)             {}

func (m *countingMetrics) get(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func TestTrySend_Metrics(t *testing.T) {
	m := &countingMetrics{}
	h := newHarness(t, func(c *Config) {
		c.Metrics = m
		c.Codec = sizedCodec{size: 70000}
	})
	h.enqueue(1)
	h.sender.TrySend(context.Background(), true)
	h.sender.Wait()

	assert.Equal(t, int64(1), m.get("pagetrack.sender.oversize_forced"))
	assert.Equal(t, int64(1), m.get("pagetrack.sender.batches_sent"))
	assert.Equal(t, int64(1), h.sender.Stats().OversizeForced)
}
