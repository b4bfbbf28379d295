package sequence

import "container/heap"

// PriorityQueue orders elements by a caller-supplied less function; Dequeue
// returns the smallest element first. It is not safe for concurrent use.
type PriorityQueue[T any] struct {
	pq innerHeap[T]
}

type innerHeap[T any] struct {
	items []T
	less  func(a, b T) bool
}

func (h *innerHeap[T]) Len() int           { return len(h.items) }
func (h *innerHeap[T]) Less(i, j int) bool { return h.less(h.items[i], h.items[j]) }
func (h *innerHeap[T]) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *innerHeap[T]) Push(x any) {
	h.items = append(h.items, x.(T))
}

func (h *innerHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	var zero T
	old[n-1] = zero // avoid memory leak
	h.items = old[:n-1]
	return item
}

func NewPriorityQueue[T any](less func(a, b T) bool) *PriorityQueue[T] {
	pq := &PriorityQueue[T]{pq: innerHeap[T]{less: less}}
	heap.Init(&pq.pq)
	return pq
}

func (pq *PriorityQueue[T]) Enqueue(value T) {
	heap.Push(&pq.pq, value)
}

func (pq *PriorityQueue[T]) Dequeue() (T, bool) {
	if pq.pq.Len() == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(&pq.pq).(T), true
}

func (pq *PriorityQueue[T]) Peek() (T, bool) {
	if pq.pq.Len() == 0 {
		var zero T
		return zero, false
	}
	return pq.pq.items[0], true
}

func (pq *PriorityQueue[T]) Len() int {
	return pq.pq.Len()
}

func (pq *PriorityQueue[T]) IsEmpty() bool {
	return pq.pq.Len() == 0
}
