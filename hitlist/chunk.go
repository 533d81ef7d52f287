package hitlist

import (
	"fmt"

	"github.com/hupe1980/hitmerge/hit"
	"github.com/hupe1980/hitmerge/pool"
)

// Chunk is a maximal run of entries produced by one worker scanning one
// region, contiguous in the shared list once spliced. Entries inside a chunk
// are strictly ascending by object ID with no duplicates.
//
// A Chunk is built by a single goroutine with no locking; the list lock is
// only taken when the finished chunk is published via List.InsertChunk.
type Chunk struct {
	start, end     pool.Handle
	startID, endID uint64
	n              int
}

// NewChunk returns an empty chunk.
func NewChunk() *Chunk {
	return &Chunk{start: pool.None, end: pool.None}
}

// Append links the entry h to the end of the chunk in O(1).
//
// Precondition: the record at h has an object ID strictly greater than the
// chunk's current end ID. Violations return ErrNonMonotonic and leave the
// chunk unchanged.
func (c *Chunk) Append(p *pool.Pool[hit.Record], h pool.Handle) error {
	id := p.At(h).ObjectID

	if c.end == pool.None {
		p.SetPrev(h, pool.None)
		p.SetNext(h, pool.None)
		c.start, c.end = h, h
		c.startID, c.endID = id, id
		c.n = 1
		return nil
	}

	if id <= c.endID {
		return fmt.Errorf("%w: id %d after end %d", ErrNonMonotonic, id, c.endID)
	}

	p.SetPrev(h, c.end)
	p.SetNext(h, pool.None)
	p.SetNext(c.end, h)
	c.end = h
	c.endID = id
	c.n++

	return nil
}

// Len returns the number of entries in the chunk.
func (c *Chunk) Len() int { return c.n }

// Empty reports whether the chunk holds no entries.
func (c *Chunk) Empty() bool { return c.n == 0 }

// StartID returns the object ID of the first entry. Undefined when empty.
func (c *Chunk) StartID() uint64 { return c.startID }

// EndID returns the object ID of the last entry. Undefined when empty.
func (c *Chunk) EndID() uint64 { return c.endID }

// Release returns every entry in the chunk to p and empties the chunk.
// Used when a rejected or abandoned chunk will never be spliced.
func (c *Chunk) Release(p *pool.Pool[hit.Record], release func(pool.Handle)) int {
	n := 0
	for h := c.start; h != pool.None; {
		next := p.Next(h)
		release(h)
		h = next
		n++
	}
	*c = Chunk{start: pool.None, end: pool.None}
	return n
}
