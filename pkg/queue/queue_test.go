package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/pagetrack-go/pkg/event"
)

func numbered(i int) event.Event {
	return event.Event{Timestamp: int64(i), Type: fmt.Sprintf("e%d", i)}
}

func TestQueue_DrainFIFO(t *testing.T) {
	q := New(nil)
	for i := 0; i < 5; i++ {
		q.Enqueue(numbered(i))
	}

	first := q.Drain(3)
	require.Len(t, first, 3)
	for i, e := range first {
		assert.Equal(t, int64(i), e.Timestamp)
	}

	rest := q.Drain(10)
	require.Len(t, rest, 2)
	assert.Equal(t, int64(3), rest[0].Timestamp)
	assert.Equal(t, int64(4), rest[1].Timestamp)
	assert.True(t, q.IsEmpty())
}

func TestQueue_DrainNeverExceedsMax(t *testing.T) {
	q := New(nil)
	for i := 0; i < 37; i++ {
		q.Enqueue(numbered(i))
	}

	var sizes []int
	for !q.IsEmpty() {
		batch := q.Drain(10)
		require.LessOrEqual(t, len(batch), 10)
		sizes = append(sizes, len(batch))
	}
	assert.Equal(t, []int{10, 10, 10, 7}, sizes)
}

func TestQueue_DrainEdgeCases(t *testing.T) {
	q := New(nil)
	assert.Nil(t, q.Drain(10), "empty queue")

	q.Enqueue(numbered(1))
	assert.Nil(t, q.Drain(0), "zero max")
	assert.Nil(t, q.Drain(-1), "negative max")
	assert.Equal(t, 1, q.Len())
}

func TestQueue_KeepsDuplicates(t *testing.T) {
	q := New(nil)
	q.Enqueue(event.Event{Type: event.TypeScroll25})
	q.Enqueue(event.Event{Type: event.TypeScroll25})

	got := q.Drain(10)
	require.Len(t, got, 2)
	assert.Equal(t, event.TypeScroll25, got[0].Type)
	assert.Equal(t, event.TypeScroll25, got[1].Type)
}

func TestQueue_ConcurrentDrainsNeverDuplicate(t *testing.T) {
	const producers, perProducer = 8, 250
	q := New(nil)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(numbered(p*perProducer + i))
			}
		}(p)
	}

	var (
		mu   sync.Mutex
		seen = make(map[int64]int)
		done = make(chan struct{})
	)
	var drainers sync.WaitGroup
	for d := 0; d < 4; d++ {
		drainers.Add(1)
		go func() {
			defer drainers.Done()
			for {
				batch := q.Drain(10)
				mu.Lock()
				for _, e := range batch {
					seen[e.Timestamp]++
				}
				mu.Unlock()
				if len(batch) == 0 {
					select {
					case <-done:
						return
					default:
					}
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	drainers.Wait()

	// Drainers may exit before a final drain; pick up the remainder.
	for _, e := range q.Drain(producers * perProducer) {
		seen[e.Timestamp]++
	}

	assert.Len(t, seen, producers*perProducer)
	for ts, n := range seen {
		if n != 1 {
			t.Fatalf("event %d drained %d times", ts, n)
		}
	}

	stats := q.Stats()
	assert.Equal(t, uint64(producers*perProducer), stats.Enqueued)
	assert.Equal(t, uint64(producers*perProducer), stats.Drained)
	assert.Equal(t, 0, stats.Depth)
}

func TestQueue_GrowsMonotonicallyWithoutDrains(t *testing.T) {
	q := New(nil)
	prev := 0
	for i := 0; i < 100; i++ {
		q.Enqueue(numbered(i))
		require.Greater(t, q.Len(), prev)
		prev = q.Len()
	}
}
