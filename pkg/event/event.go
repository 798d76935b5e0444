// Package event defines the telemetry records the collector queues and
// the batch envelope it puts on the wire.
package event

import "time"

// Event types emitted by the built-in producers.
const (
	TypePageLoad       = "page_load"
	TypeScroll25       = "scroll_25"
	TypeScroll50       = "scroll_50"
	TypeScroll75       = "scroll_75"
	TypeSessionStart   = "session_start"
	TypeSessionEnd     = "session_end"
	TypeActiveTimeTick = "active_time_tick"
	TypeElementClick   = "element_click"
	TypeMapClick       = "map_click"
)

// Event is one recorded user or page signal.
// Events are values; once built they are never modified. Data is owned by
// the event; callers pass a copy (see CloneData) when they keep the original.
type Event struct {
	Timestamp  int64  `json:"timestamp" cbor:"timestamp"`
	Type       string `json:"event_type" cbor:"event_type"`
	SessionID  string `json:"session_id" cbor:"session_id"`
	PagePath   string `json:"page_path" cbor:"page_path"`
	PageSearch string `json:"page_search" cbor:"page_search"`
	Referrer   string `json:"referrer" cbor:"referrer"`
	Data       any    `json:"data" cbor:"data"`
}

// Page is the page context stamped on every event.
type Page struct {
	Path     string `json:"path" yaml:"path"`
	Search   string `json:"search" yaml:"search"`
	Referrer string `json:"referrer" yaml:"referrer"`
}

// New builds an event for the given page and session at time t.
func New(t time.Time, eventType, sessionID string, page Page, data any) Event {
	return Event{
		Timestamp:  Millis(t),
		Type:       eventType,
		SessionID:  sessionID,
		PagePath:   page.Path,
		PageSearch: page.Search,
		Referrer:   page.Referrer,
		Data:       data,
	}
}

// Time returns the event timestamp as a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Batch is the request envelope for one send attempt.
// It is built at send time and discarded after the attempt.
type Batch struct {
	SentAt int64   `json:"t" cbor:"t"`
	Events []Event `json:"events" cbor:"events"`
}

// NewBatch stamps events with the send time t.
func NewBatch(t time.Time, events []Event) Batch {
	return Batch{SentAt: Millis(t), Events: events}
}

// Len returns the number of events in the batch.
func (b Batch) Len() int {
	return len(b.Events)
}

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
