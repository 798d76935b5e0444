// Package pagetrack collects page interaction events and relays them to a
// remote collection endpoint in small batches.
//
// Producers (page load, scroll depth, clicks, element visibility, active
// time; see pkg/producer) call Collector.Track. Each event is stamped with
// the time, the session identifier and the current page, appended to an
// in-memory queue, and a send is attempted immediately. At most one
// attempt is in flight at a time; it drains up to ten events, encodes
// them, and POSTs them to the event endpoint.
//
// # Quick Start
//
//	c, err := pagetrack.New(
//	    pagetrack.WithHost("https://collect.example.com"),
//	    pagetrack.WithPage(pagetrack.Page{Path: "/areas/niagara"}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close(context.Background())
//
//	producer.PageLoad(c, 1280, 720)
//
//	scroll := producer.NewScrollDepth(c)
//	scroll.Observe(900, 800, 2400) // scroll_25, scroll_50
//
// # Flushing
//
// A send is attempted on every Track, every FlushInterval (5s by
// default), and when the previous attempt finishes with events still
// queued. VisibilityChanged(true) and PageHide force a flush: a forced
// payload under KeepaliveLimit bytes goes through the keepalive transport,
// whose request is detached from the page lifecycle so teardown cannot
// abort it. Larger forced payloads fall back to the standard transport.
//
// # Delivery
//
// Delivery is best effort. Any HTTP response counts as delivered; the
// status is not inspected. When the request itself fails, the payload is
// fired once as a GET to the fallback pixel endpoint and the batch is
// considered handled. Nothing is retried, and failures never reach Track
// callers; they are reported through WithErrorHandler, the logger, and
// Collector.Errors.
//
// # Configuration
//
// Options configure a collector directly. NewFromEnv reads PAGETRACK_*
// variables and NewFromFile reads .pagetrack.yaml or .pagetrack.jsonc:
//
//	c, err := pagetrack.NewFromFile("",
//	    pagetrack.WithStructuredLogger(pagetrack.NewSlogAdapter(slog.Default())),
//	    pagetrack.WithOpenTelemetry(),
//	)
//
// # Thread Safety
//
// A Collector is safe for concurrent use. Close must be called once the
// page goes away; it sends what is left and stops the flush timer.
package pagetrack
