// Package pool provides a fixed-capacity, preallocated node pool with
// intrusive doubly linked index links.
//
// All storage is allocated once in New; Acquire and Release only move the
// free-list head, so the scanning hot path never allocates. Nodes are
// addressed by Handle (a slot index), and the prev/next links live inside the
// slots, which lets callers splice runs of nodes in O(1) without raw pointer
// juggling.
//
// # Concurrency Model
//
// A Pool is NOT internally synchronized. The contract is single-consumer:
// exactly one goroutine may call Acquire/Release at a time unless the caller
// adds its own exclusion around those calls. Reading or writing the payload
// and links of a handle you own is always safe, concurrent with other
// goroutines touching handles they own.
package pool

import (
	"errors"
	"fmt"
)

// Handle identifies a slot in a Pool. Handles are stable for the lifetime of
// the pool and double as intrusive list links.
type Handle = int32

// None is the null handle, used to terminate intrusive lists.
const None Handle = -1

// ErrExhausted is returned by Acquire when the pool has no free node. Pool
// capacity is a deployment parameter; running out is an operator-sizing
// failure, not a condition the hot path should retry.
var ErrExhausted = errors.New("pool: exhausted")

type node[T any] struct {
	payload T
	next    Handle
	prev    Handle
}

// Pool is a fixed-capacity free list of reusable nodes.
type Pool[T any] struct {
	nodes []node[T]
	free  Handle
	inUse int
}

// New builds a pool of n preallocated nodes linked as a free list.
// No allocation occurs after New returns.
func New[T any](n int) *Pool[T] {
	if n <= 0 {
		n = 1
	}
	p := &Pool[T]{
		nodes: make([]node[T], n),
		free:  0,
	}
	for i := range p.nodes {
		p.nodes[i].next = Handle(i + 1) //nolint:gosec // n is bounded by slice length
		p.nodes[i].prev = None
	}
	p.nodes[n-1].next = None
	return p
}

// Acquire returns the next free node, advancing the free-list head.
// Returns ErrExhausted when the pool is empty.
func (p *Pool[T]) Acquire() (Handle, error) {
	h := p.free
	if h == None {
		return None, fmt.Errorf("%w (capacity %d)", ErrExhausted, len(p.nodes))
	}
	p.free = p.nodes[h].next
	p.nodes[h].next = None
	p.nodes[h].prev = None
	p.inUse++
	return h, nil
}

// Release returns a node to the free list. The payload is left as-is;
// it is overwritten on the next Acquire/use cycle.
func (p *Pool[T]) Release(h Handle) {
	p.nodes[h].prev = None
	p.nodes[h].next = p.free
	p.free = h
	p.inUse--
}

// At returns the payload of h. The pointer is valid for the pool's lifetime
// but must not be used after h is released.
func (p *Pool[T]) At(h Handle) *T {
	return &p.nodes[h].payload
}

// Next returns the successor link of h.
func (p *Pool[T]) Next(h Handle) Handle { return p.nodes[h].next }

// Prev returns the predecessor link of h.
func (p *Pool[T]) Prev(h Handle) Handle { return p.nodes[h].prev }

// SetNext sets the successor link of h.
func (p *Pool[T]) SetNext(h, next Handle) { p.nodes[h].next = next }

// SetPrev sets the predecessor link of h.
func (p *Pool[T]) SetPrev(h, prev Handle) { p.nodes[h].prev = prev }

// Cap returns the pool's fixed capacity.
func (p *Pool[T]) Cap() int { return len(p.nodes) }

// InUse returns the number of acquired nodes.
func (p *Pool[T]) InUse() int { return p.inUse }

// Free returns the number of available nodes.
func (p *Pool[T]) Free() int { return len(p.nodes) - p.inUse }
