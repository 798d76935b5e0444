package producer

import "sync"

// ObserveAttr names the event an element emits when it becomes visible:
//
//	<section id="map" data-observe="map_view" data-contentid="map">
const ObserveAttr = "observe"

// VisibilityThreshold is the intersection ratio at which an element
// counts as seen.
const VisibilityThreshold = 0.5

// Entry is one intersection observation.
type Entry struct {
	Target *Element
	Ratio  float64
}

// Visibility emits an element's observe event the first time at least
// half of it is on screen. Each content id fires once; an element stops
// being observed after it fires.
type Visibility struct {
	tracker Tracker

	mu       sync.Mutex
	observed map[*Element]bool
	fired    map[string]bool
}

// NewVisibility creates the producer.
func NewVisibility(t Tracker) *Visibility {
	return &Visibility{
		tracker:  t,
		observed: make(map[*Element]bool),
		fired:    make(map[string]bool),
	}
}

// Observe starts watching the elements that carry ObserveAttr.
func (v *Visibility) Observe(elements ...*Element) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, el := range elements {
		if _, ok := el.Attr(ObserveAttr); ok {
			v.observed[el] = true
			n++
		}
	}
	return n
}

// Observed returns the number of elements still being watched.
func (v *Visibility) Observed() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.observed)
}

// Intersect handles a set of observations. It returns the number of
// events emitted.
func (v *Visibility) Intersect(entries ...Entry) int {
	type emit struct {
		name    string
		content string
	}
	var out []emit

	v.mu.Lock()
	for _, e := range entries {
		if !v.observed[e.Target] || e.Ratio < VisibilityThreshold {
			continue
		}
		name, _ := e.Target.Attr(ObserveAttr)
		content := e.Target.ContentID()
		if name == "" || v.fired[content] {
			continue
		}
		v.fired[content] = true
		delete(v.observed, e.Target)
		out = append(out, emit{name: name, content: content})
	}
	v.mu.Unlock()

	for _, e := range out {
		v.tracker.Track(e.name, Content{Content: e.content})
	}
	return len(out)
}
