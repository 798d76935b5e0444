// Package pagetracktest provides testing utilities for code that uses a
// pagetrack Collector.
//
// # Mock Server
//
// MockServer is a collection endpoint that decodes what it receives:
//
//	server := pagetracktest.NewMockServer()
//	defer server.Close()
//
//	c, _ := pagetrack.New(
//	    pagetrack.WithEventEndpoint(server.EventURL()),
//	    pagetrack.WithPixelEndpoint(server.PixelURL()),
//	)
//	c.Track("scroll_25", nil)
//	c.Flush(ctx)
//
//	events := server.Events()
//
// Batch replies can be scripted. A dropped connection is a transport
// failure, so the collector fires the fallback pixel:
//
//	server.FailNext(1)
//	server.Script(pagetracktest.Response{Status: 503})
//
// # Test Collector
//
// NewTestCollector wires a collector to a fresh server and closes both
// when the test ends:
//
//	func TestMyFeature(t *testing.T) {
//	    c, server := pagetracktest.NewTestCollector(t)
//	    c.Track("page_load", nil)
//	    if !server.WaitForEvents(1, time.Second) {
//	        t.Fatal("event not delivered")
//	    }
//	}
//
// # Mock Metrics and Logger
//
// MockMetrics and MockLogger record what the collector reports:
//
//	metrics := pagetracktest.NewMockMetrics()
//	c, server := pagetracktest.NewTestCollector(t, pagetrack.WithMetrics(metrics))
//	...
//	metrics.GetCounter("pagetrack.sender.batches_sent")
package pagetracktest
