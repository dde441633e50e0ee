package container

// Queue 先进先出队列
// 功能：基于切片的FIFO队列，出队时移动头指针，空间在积累到一定程度后回收
// 说明：非线程安全，由持有者负责同步
type Queue[T any] struct {
	data []T
	head int
}

// NewQueue 创建FIFO队列
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{data: make([]T, 0)}
}

// Len 当前元素数量，O(1)
func (q *Queue[T]) Len() int {
	return len(q.data) - q.head
}

// PushBack 队尾加入元素
func (q *Queue[T]) PushBack(v T) {
	q.data = append(q.data, v)
}

// Front 查看队首元素
// 返回：队首元素与是否存在
func (q *Queue[T]) Front() (v T, ok bool) {
	if q.Len() == 0 {
		return v, false
	}
	return q.data[q.head], true
}

// PopFront 弹出队首元素
// 返回：队首元素与是否存在，空队列时返回零值与false
func (q *Queue[T]) PopFront() (v T, ok bool) {
	if q.Len() == 0 {
		return v, false
	}
	var zero T
	v = q.data[q.head]
	q.data[q.head] = zero // 避免内存泄漏
	q.head++
	// 已出队部分超过一半时压缩底层数组
	if q.head > 16 && q.head*2 >= len(q.data) {
		q.data = append(q.data[:0:0], q.data[q.head:]...)
		q.head = 0
	}
	return v, true
}

// Values 按队首到队尾的顺序复制全部元素
func (q *Queue[T]) Values() []T {
	out := make([]T, q.Len())
	copy(out, q.data[q.head:])
	return out
}
