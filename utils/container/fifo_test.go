package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/container"
)

func TestQueueEmpty(t *testing.T) {
	q := container.NewQueue[int]()
	assert.Equal(t, 0, q.Len())
	_, ok := q.Front()
	assert.False(t, ok)
	v, ok := q.PopFront()
	assert.False(t, ok)
	assert.Equal(t, 0, v)
	assert.Equal(t, 0, q.Len())
}

func TestQueueFIFO(t *testing.T) {
	q := container.NewQueue[int]()
	for i := range 100 {
		q.PushBack(i)
	}
	for i := range 60 {
		v, ok := q.PopFront()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 40, q.Len())
	q.PushBack(100)
	front, _ := q.Front()
	assert.Equal(t, 60, front)
	values := q.Values()
	assert.Len(t, values, 41)
	assert.Equal(t, 60, values[0])
	assert.Equal(t, 100, values[40])
}
