package producer

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/pagetrack-go/pkg/event"
)

type tracked struct {
	eventType string
	data      any
}

type recorder struct {
	mu     sync.Mutex
	events []tracked
}

func (r *recorder) Track(eventType string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, tracked{eventType, data})
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.eventType)
	}
	return out
}

func (r *recorder) last() tracked {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func jsonOf(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestPageLoad(t *testing.T) {
	r := &recorder{}
	PageLoad(r, 1280, 720)

	got := r.last()
	assert.Equal(t, event.TypePageLoad, got.eventType)
	assert.JSONEq(t, `{"viewport_width":1280,"viewport_height":720}`, jsonOf(t, got.data))
}

func TestTrackerFunc(t *testing.T) {
	var got string
	TrackerFunc(func(eventType string, _ any) { got = eventType }).Track("x", nil)
	assert.Equal(t, "x", got)
}

func TestScrollDepth_EachMarkOnce(t *testing.T) {
	r := &recorder{}
	s := NewScrollDepth(r)

	assert.Empty(t, s.Observe(0, 100, 1000))
	assert.Equal(t, []string{event.TypeScroll25}, s.Observe(150, 100, 1000))
	assert.Empty(t, s.Observe(160, 100, 1000), "25% already reached")
	assert.Equal(t, []string{event.TypeScroll50, event.TypeScroll75}, s.Observe(700, 100, 1000))
	assert.Empty(t, s.Observe(0, 100, 1000))
	assert.Empty(t, s.Observe(900, 100, 1000))

	assert.Equal(t, []string{event.TypeScroll25, event.TypeScroll50, event.TypeScroll75}, r.types())
	assert.Equal(t, []int{25, 50, 75}, s.Reached())
}

func TestScrollDepth_ShortPageReachesAllAtOnce(t *testing.T) {
	r := &recorder{}
	s := NewScrollDepth(r)
	assert.Len(t, s.Observe(0, 800, 600), 3)
	assert.Empty(t, s.Observe(0, 100, 0), "zero document height is ignored")
}

func TestScrollDepth_ConcurrentObserversDedup(t *testing.T) {
	r := &recorder{}
	s := NewScrollDepth(r)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Observe(300, 100, 1000)
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{event.TypeScroll25}, r.types())
}

func TestElement_ClosestAndContains(t *testing.T) {
	root := &Element{ID: "root"}
	link := &Element{Data: map[string]string{"click": "click", "contentid": "niagara"}, Parent: root}
	span := &Element{Parent: link}

	assert.Same(t, link, span.Closest("click"))
	assert.Same(t, link, link.Closest("click"))
	assert.Nil(t, root.Closest("click"))
	assert.Nil(t, (*Element)(nil).Closest("click"))

	assert.True(t, root.Contains(span))
	assert.True(t, link.Contains(link))
	assert.False(t, span.Contains(root))
	assert.False(t, (*Element)(nil).Contains(span))
}

func TestClicks(t *testing.T) {
	r := &recorder{}
	c := NewClicks(r)

	link := &Element{Data: map[string]string{"click": "click", "contentid": "niagara"}}
	icon := &Element{Parent: link}
	plain := &Element{}
	unnamed := &Element{Data: map[string]string{"click": ""}}

	assert.True(t, c.Click(icon))
	assert.JSONEq(t, `{"content":"niagara"}`, jsonOf(t, r.last().data))

	assert.False(t, c.Click(plain))

	assert.True(t, c.Click(unnamed))
	assert.JSONEq(t, `{}`, jsonOf(t, r.last().data), "missing content id encodes as empty object")

	assert.Equal(t, []string{event.TypeElementClick, event.TypeElementClick}, r.types())
}

func TestMapInteraction_FirstOnly(t *testing.T) {
	r := &recorder{}
	mapEl := &Element{ID: MapElementID}
	marker := &Element{Data: map[string]string{"contentid": "trail-7"}, Parent: mapEl}
	outside := &Element{}

	m := NewMapInteraction(r, func() *Element { return mapEl })

	assert.False(t, m.PointerDown(outside))
	assert.False(t, m.Fired())
	assert.True(t, m.PointerDown(marker))
	assert.False(t, m.PointerDown(marker), "detached after first interaction")
	assert.True(t, m.Fired())

	assert.Equal(t, []string{event.TypeMapClick}, r.types())
	assert.JSONEq(t, `{"content":"trail-7"}`, jsonOf(t, r.last().data))
}

func TestMapInteraction_NoMapElement(t *testing.T) {
	r := &recorder{}
	m := NewMapInteraction(r, func() *Element { return nil })
	assert.False(t, m.PointerDown(&Element{}))
	assert.Empty(t, r.types())
}

func TestVisibility_OncePerContent(t *testing.T) {
	r := &recorder{}
	v := NewVisibility(r)

	mapSection := &Element{ID: "map", Data: map[string]string{"observe": "section_view", "contentid": "map"}}
	form := &Element{ID: "subscribe", Data: map[string]string{"observe": "form_view", "contentid": "subscribe_form"}}
	twin := &Element{Data: map[string]string{"observe": "section_view", "contentid": "map"}}
	plain := &Element{}

	assert.Equal(t, 3, v.Observe(mapSection, form, twin, plain))

	assert.Equal(t, 0, v.Intersect(Entry{Target: mapSection, Ratio: 0.49}))
	assert.Equal(t, 1, v.Intersect(Entry{Target: mapSection, Ratio: 0.5}))
	assert.Equal(t, 0, v.Intersect(Entry{Target: mapSection, Ratio: 1}), "unobserved after firing")
	assert.Equal(t, 0, v.Intersect(Entry{Target: twin, Ratio: 1}), "content id already seen")
	assert.Equal(t, 0, v.Intersect(Entry{Target: plain, Ratio: 1}), "never observed")
	assert.Equal(t, 1, v.Intersect(Entry{Target: form, Ratio: 0.8}))

	assert.Equal(t, []string{"section_view", "form_view"}, r.types())
	assert.JSONEq(t, `{"content":"subscribe_form"}`, jsonOf(t, r.last().data))
	assert.Equal(t, 1, v.Observed(), "twin is still observed")
}

func TestActiveTime_StartEnd(t *testing.T) {
	r := &recorder{}
	now := time.Unix(1000, 0)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	a := NewActiveTime(r, WithClock(clock), WithTickInterval(time.Hour))

	assert.True(t, a.Start())
	assert.False(t, a.Start(), "already active")
	assert.True(t, a.Active())

	mu.Lock()
	now = now.Add(90*time.Second + 600*time.Millisecond)
	mu.Unlock()

	a.VisibilityChanged(true)
	assert.False(t, a.Active())
	assert.JSONEq(t, `{"duration_sec":91}`, jsonOf(t, r.last().data))

	a.PageHide()
	assert.Equal(t, []string{event.TypeSessionStart, event.TypeSessionEnd}, r.types(), "no second session_end")

	a.VisibilityChanged(false)
	assert.True(t, a.Active())
	a.Stop()
	assert.False(t, a.Active())
	assert.Equal(t, event.TypeSessionStart, r.last().eventType, "Stop records nothing")
}

func TestActiveTime_Ticks(t *testing.T) {
	r := &recorder{}
	a := NewActiveTime(r, WithTickInterval(10*time.Millisecond))
	a.Start()

	require.Eventually(t, func() bool {
		n := 0
		for _, typ := range r.types() {
			if typ == event.TypeActiveTimeTick {
				n++
			}
		}
		return n >= 2
	}, 2*time.Second, 5*time.Millisecond)

	a.End()
	count := len(r.types())
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, count, len(r.types()), "ticks stop with the session")
	assert.Equal(t, event.TypeSessionEnd, r.last().eventType)
}

func TestActiveTime_Defaults(t *testing.T) {
	a := NewActiveTime(&recorder{}, WithTickInterval(0))
	assert.Equal(t, DefaultTickInterval, a.interval)
	a.Stop()
}
