package producer

import (
	"sync"

	"github.com/jdziat/pagetrack-go/pkg/event"
)

var scrollMarks = []struct {
	fraction  float64
	eventType string
}{
	{0.25, event.TypeScroll25},
	{0.50, event.TypeScroll50},
	{0.75, event.TypeScroll75},
}

// ScrollDepth records scroll_25, scroll_50 and scroll_75 the first time
// the bottom of the viewport passes each quarter of the document.
type ScrollDepth struct {
	tracker Tracker

	mu      sync.Mutex
	reached map[float64]bool
}

// NewScrollDepth creates a scroll depth producer.
func NewScrollDepth(t Tracker) *ScrollDepth {
	return &ScrollDepth{tracker: t, reached: make(map[float64]bool)}
}

// Observe handles a scroll position. It returns the events emitted.
func (s *ScrollDepth) Observe(scrollY, viewportHeight, documentHeight float64) []string {
	if documentHeight <= 0 {
		return nil
	}
	scrolled := (scrollY + viewportHeight) / documentHeight

	s.mu.Lock()
	var emit []string
	for _, m := range scrollMarks {
		if scrolled >= m.fraction && !s.reached[m.fraction] {
			s.reached[m.fraction] = true
			emit = append(emit, m.eventType)
		}
	}
	s.mu.Unlock()

	for _, eventType := range emit {
		s.tracker.Track(eventType, nil)
	}
	return emit
}

// Reached returns the marks reached so far, as percentages.
func (s *ScrollDepth) Reached() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, m := range scrollMarks {
		if s.reached[m.fraction] {
			out = append(out, int(m.fraction*100))
		}
	}
	return out
}
