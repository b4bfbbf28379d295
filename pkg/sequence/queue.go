package sequence

// Queue is an unbounded FIFO queue backed by a growable ring buffer.
// It is not safe for concurrent use.
type Queue[T any] struct {
	buf   []T
	head  int
	tail  int
	count int
}

const minQueueCapacity = 16

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{buf: make([]T, minQueueCapacity)}
}

func (q *Queue[T]) Len() int {
	return q.count
}

func (q *Queue[T]) IsEmpty() bool {
	return q.count == 0
}

func (q *Queue[T]) Enqueue(v T) {
	if q.count == len(q.buf) {
		q.grow()
	}
	q.buf[q.tail] = v
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
}

func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero // avoid memory leak
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return v, true
}

// Drain dequeues every element into a fresh slice, leaving the queue empty.
// Elements enqueued by the callbacks of a consumer iterating the returned
// slice land in the next drain, not this one.
func (q *Queue[T]) Drain() []T {
	if q.count == 0 {
		return nil
	}
	out := make([]T, 0, q.count)
	for {
		v, ok := q.Dequeue()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

func (q *Queue[T]) grow() {
	next := make([]T, len(q.buf)*2)
	for i := 0; i < q.count; i++ {
		next[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = next
	q.head = 0
	q.tail = q.count
}
