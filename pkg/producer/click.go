package producer

import (
	"sync"

	"github.com/jdziat/pagetrack-go/pkg/event"
)

// ClickAttr marks elements whose clicks are tracked:
//
//	<a href="/areas/niagara" data-click="click" data-contentid="niagara">
const ClickAttr = "click"

// Clicks records element_click for clicks on or inside a marked element.
type Clicks struct {
	tracker Tracker
}

// NewClicks creates a click producer.
func NewClicks(t Tracker) *Clicks {
	return &Clicks{tracker: t}
}

// Click handles a click on target. It reports whether an event was emitted.
func (c *Clicks) Click(target *Element) bool {
	el := target.Closest(ClickAttr)
	if el == nil {
		return false
	}
	c.tracker.Track(event.TypeElementClick, Content{Content: el.ContentID()})
	return true
}

// MapElementID is the id of the map element.
const MapElementID = "map"

// MapInteraction records map_click for the first pointer-down inside the
// map element and then stops listening.
type MapInteraction struct {
	tracker Tracker
	lookup  func() *Element

	mu    sync.Mutex
	fired bool
}

// NewMapInteraction creates the producer. lookup returns the map element,
// or nil when the page has none.
func NewMapInteraction(t Tracker, lookup func() *Element) *MapInteraction {
	return &MapInteraction{tracker: t, lookup: lookup}
}

// PointerDown handles a pointer-down on target. It reports whether an
// event was emitted.
func (m *MapInteraction) PointerDown(target *Element) bool {
	m.mu.Lock()
	if m.fired {
		m.mu.Unlock()
		return false
	}
	mapEl := m.lookup()
	if mapEl == nil || !mapEl.Contains(target) {
		m.mu.Unlock()
		return false
	}
	m.fired = true
	m.mu.Unlock()

	m.tracker.Track(event.TypeMapClick, Content{Content: target.ContentID()})
	return true
}

// Fired reports whether the map interaction was recorded.
func (m *MapInteraction) Fired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fired
}
