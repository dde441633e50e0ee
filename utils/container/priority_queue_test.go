package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/container"
)

func TestPriorityQueueOrder(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	q.Push("b", 2)
	q.Push("a", 1)
	q.Push("c", 3)
	q.Heapify()
	assert.Equal(t, "a", q.First())
	assert.Equal(t, []string{"a", "b", "c"}, q.Drain())
	assert.Equal(t, 0, q.Len())
}

func TestPriorityQueueMaxHeapByNegation(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	for k, v := range map[string]float64{"north": 4, "south": 9, "east": 1, "west": 7} {
		q.HeapPush(k, -v)
	}
	v, p := q.HeapPop()
	assert.Equal(t, "south", v)
	assert.Equal(t, -9.0, p)
}

func TestPriorityQueueTiesFollowInsertionOrder(t *testing.T) {
	// 重复多次，避免偶然通过
	for range 20 {
		q := container.NewPriorityQueue[int]()
		for i := range 8 {
			q.Push(i, 0)
		}
		q.Heapify()
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, q.Drain())
	}

	q := container.NewPriorityQueue[string]()
	q.HeapPush("first", -5)
	q.HeapPush("other", -1)
	q.HeapPush("second", -5)
	assert.Equal(t, []string{"first", "second", "other"}, q.Drain())
}
