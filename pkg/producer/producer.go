// Package producer turns raw page signals into tracked events.
//
// Producers hold the small amount of state needed to decide whether a
// signal is worth an event (scroll marks already reached, content already
// seen) and report through a Tracker. They never talk to the queue or the
// network directly.
package producer

import "github.com/jdziat/pagetrack-go/pkg/event"

// Tracker records an event. *pagetrack.Collector implements it.
type Tracker interface {
	Track(eventType string, data any)
}

// TrackerFunc adapts a function to Tracker.
type TrackerFunc func(eventType string, data any)

// Track implements Tracker.
func (f TrackerFunc) Track(eventType string, data any) {
	f(eventType, data)
}

// Viewport is the payload of page_load.
type Viewport struct {
	Width  int `json:"viewport_width"`
	Height int `json:"viewport_height"`
}

// Content is the payload of click and visibility events. An element
// without a content id produces an empty object.
type Content struct {
	Content string `json:"content,omitempty"`
}

// SessionEnd is the payload of session_end.
type SessionEnd struct {
	DurationSec int64 `json:"duration_sec"`
}

// PageLoad records page_load with the viewport size.
func PageLoad(t Tracker, width, height int) {
	t.Track(event.TypePageLoad, Viewport{Width: width, Height: height})
}
