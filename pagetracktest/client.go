package pagetracktest

import (
	"context"
	"time"

	"github.com/jdziat/pagetrack-go"
)

// TestingT is an interface that matches *testing.T and *testing.B.
type TestingT interface {
	Fatalf(format string, args ...any)
	Cleanup(func())
	Helper()
}

// TestPage is the page context NewTestCollector stamps on events.
var TestPage = pagetrack.Page{Path: "/test", Search: "?q=1", Referrer: "https://referrer.example/"}

// NewTestCollector creates a collector pointed at a fresh MockServer.
// The timer flush is effectively disabled so tests control when sends
// happen; Track still attempts a send immediately. Both are cleaned up
// when the test ends.
func NewTestCollector(t TestingT, opts ...pagetrack.Option) (*pagetrack.Collector, *MockServer) {
	t.Helper()

	server := NewMockServer()

	baseOpts := []pagetrack.Option{
		pagetrack.WithEventEndpoint(server.EventURL()),
		pagetrack.WithPixelEndpoint(server.PixelURL()),
		pagetrack.WithPageViewEndpoint(server.PageViewURL()),
		pagetrack.WithFlushInterval(time.Hour),
		pagetrack.WithShutdownTimeout(10 * time.Second),
		pagetrack.WithTimeout(5 * time.Second),
		pagetrack.WithPage(TestPage),
		pagetrack.WithStructuredLogger(pagetrack.NopLogger{}),
	}

	c, err := pagetrack.New(append(baseOpts, opts...)...)
	if err != nil {
		server.Close()
		t.Fatalf("Failed to create test collector: %v", err)
		return nil, nil
	}

	t.Cleanup(func() {
		c.Close(context.Background())
		server.Close()
	})
	return c, server
}
