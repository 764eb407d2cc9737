package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFOOrder(t *testing.T) {
	q := New[int]()
	for i := 1; i <= 5; i++ {
		q.Push(i)
	}

	assert.Equal(t, 5, q.Len())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, q.Drain())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_Pop(t *testing.T) {
	q := New[string]()
	q.Push("a")
	q.Push("b")

	item, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", item)

	item, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", item)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueue_DrainEmpty(t *testing.T) {
	q := New[int]()
	assert.Nil(t, q.Drain())
}

func TestQueue_Requeue(t *testing.T) {
	q := New[int]()
	q.Push(4)
	q.Push(5)
	q.Requeue([]int{1, 2, 3})

	assert.Equal(t, []int{1, 2, 3, 4, 5}, q.Drain())
}

func TestQueue_ZeroValueUsable(t *testing.T) {
	var q Queue[int]
	q.Push(1)
	item, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, item)
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(j)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, q.Len())
}
