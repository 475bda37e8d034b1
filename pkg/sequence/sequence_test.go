package sequence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 1; i <= 3; i++ {
		q.Enqueue(i)
	}
	assert.Equal(t, 3, q.Len())

	v, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	var seen []int
	n := q.Drain(func(v int) { seen = append(seen, v) })
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{2, 3}, seen)
	assert.True(t, q.IsEmpty())

	_, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestQueueDrainDefersReentrantItems(t *testing.T) {
	q := NewQueue[func()]()
	ran := 0
	q.Enqueue(func() {
		ran++
		q.Enqueue(func() { ran++ })
	})

	assert.Equal(t, 1, q.Drain(func(f func()) { f() }))
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, q.Len())

	q.Drain(func(f func()) { f() })
	assert.Equal(t, 2, ran)
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue[int]()
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Enqueue(i)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, q.Len())
}

func TestIteratorChain(t *testing.T) {
	it := From([]int{1, 2, 3, 4, 5}).Filter(func(v int) bool { return v%2 == 1 })
	assert.Equal(t, []int{1, 3, 5}, it.Collect())
	assert.Equal(t, 3, it.Count())
	assert.True(t, it.Any(func(v int) bool { return v == 5 }))
	assert.False(t, it.Any(func(v int) bool { return v == 2 }))

	doubled := Map(it, func(v int) int { return v * 2 }).Collect()
	assert.Equal(t, []int{2, 6, 10}, doubled)

	set := ToSet(From([]string{"a", "b", "a"}))
	assert.Len(t, set, 2)
}
