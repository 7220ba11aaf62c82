package scheduler

import "container/heap"

// jobHeap orders queued jobs by (higher priority first, then lower seq
// first) per spec §4.D's "higher priority, then FIFO within equal
// priority." It implements container/heap.Interface over *Job pointers
// so a priority mutation can re-heapify in place.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) {
	*h = append(*h, x.(*Job))
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*jobHeap)(nil)
