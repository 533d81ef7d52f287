// Package order implements the transport-ordering structure: a keyed min-heap
// of pool handles used to stage hits in merge-key order before encoding them
// into wire messages, and to merge batches arriving in arbitrary order on the
// master side.
package order

import (
	"container/heap"

	"github.com/hupe1980/hitmerge/hit"
	"github.com/hupe1980/hitmerge/pool"
)

// Compile time check to ensure Heap satisfies the heap interface.
var _ heap.Interface = (*Heap)(nil)

// Heap holds pool handles ordered by the configured merge key. It stores no
// record data of its own; payloads stay in their pool slots, so moving a hit
// between a hit list, a heap and a wire message never copies the record.
type Heap struct {
	pool    *pool.Pool[hit.Record]
	key     hit.MergeKey
	handles []pool.Handle
}

// NewHeap creates an empty heap over p, ordered by key.
func NewHeap(p *pool.Pool[hit.Record], key hit.MergeKey, capacity int) *Heap {
	if capacity < 0 {
		capacity = 0
	}
	return &Heap{
		pool:    p,
		key:     key,
		handles: make([]pool.Handle, 0, capacity),
	}
}

// Len returns the number of staged handles.
func (h *Heap) Len() int { return len(h.handles) }

// Less reports whether the handle at index i sorts before the one at j.
func (h *Heap) Less(i, j int) bool {
	return h.key.Less(h.pool.At(h.handles[i]), h.pool.At(h.handles[j]))
}

// Swap swaps the handles at indexes i and j.
func (h *Heap) Swap(i, j int) {
	h.handles[i], h.handles[j] = h.handles[j], h.handles[i]
}

// Push adds x to the heap. Use PushHandle instead of calling this directly.
func (h *Heap) Push(x any) {
	hd, _ := x.(pool.Handle)
	h.handles = append(h.handles, hd)
}

// Pop removes and returns the last handle. Use PopMin instead of calling
// this directly.
func (h *Heap) Pop() any {
	n := len(h.handles)
	hd := h.handles[n-1]
	h.handles = h.handles[:n-1]
	return hd
}

// PushHandle stages hd, restoring heap order.
func (h *Heap) PushHandle(hd pool.Handle) {
	heap.Push(h, hd)
}

// PopMin removes and returns the handle with the smallest merge key.
// The second return is false when the heap is empty.
func (h *Heap) PopMin() (pool.Handle, bool) {
	if len(h.handles) == 0 {
		return pool.None, false
	}
	return heap.Pop(h).(pool.Handle), true
}

// PeekMin returns the handle with the smallest merge key without removing it.
func (h *Heap) PeekMin() (pool.Handle, bool) {
	if len(h.handles) == 0 {
		return pool.None, false
	}
	return h.handles[0], true
}

// Handles returns a copy of the staged handles in heap (not sorted) order.
// Intended for diagnostics walks that must not disturb the heap.
func (h *Heap) Handles() []pool.Handle {
	out := make([]pool.Handle, len(h.handles))
	copy(out, h.handles)
	return out
}

// Reset discards all staged handles without releasing them.
func (h *Heap) Reset() {
	h.handles = h.handles[:0]
}
