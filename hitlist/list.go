// Package hitlist maintains the per-node sorted hit collection: a doubly
// linked run of entries ascending by object ID, plus the parallel sequence of
// chunks that produced them. Entries live in a shared pool and are linked by
// index, so splicing a finished chunk into the list is O(1) pointer work once
// the position is known.
package hitlist

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/hupe1980/hitmerge/hit"
	"github.com/hupe1980/hitmerge/pool"
)

// List owns the full entry sequence of one node and the chunk sequence that
// partitions it. All mutation goes through the list's lock; chunk building
// stays lock-free because it happens before publication.
type List struct {
	mu   sync.Mutex
	pool *pool.Pool[hit.Record]

	head, tail     pool.Handle
	startID, endID uint64

	// chunks is kept sorted by start ID. Insertion position is found by
	// binary search; the entry splice itself stays O(1).
	chunks []*Chunk

	hits int

	validateOnInsert bool
}

// ListOption configures a List.
type ListOption func(*List)

// WithValidateOnInsert walks the full structure after every InsertChunk and
// fails the insert if any invariant is broken. Linear cost per insert:
// diagnostics and tests only, never production.
func WithValidateOnInsert(v bool) ListOption {
	return func(l *List) {
		l.validateOnInsert = v
	}
}

// NewList creates an empty list over the entry pool p.
func NewList(p *pool.Pool[hit.Record], opts ...ListOption) *List {
	l := &List{
		pool: p,
		head: pool.None,
		tail: pool.None,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// InsertChunk splices c into the list. The chunk's ID range must not
// intersect any chunk already present; on violation an *OverlapError is
// returned and the list is observably unchanged. Empty chunks are a no-op.
//
// Sibling scanners on one node satisfy non-overlap by construction (disjoint
// regions); chunks merged from independent machines do not, which is why the
// check runs unconditionally. Once the check passes the splice runs to
// completion under the lock.
func (l *List) InsertChunk(c *Chunk) error {
	if c == nil || c.n == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	i := sort.Search(len(l.chunks), func(i int) bool {
		return l.chunks[i].startID > c.startID
	})

	if i > 0 {
		if prev := l.chunks[i-1]; prev.endID >= c.startID {
			return &OverlapError{
				StartID: c.startID, EndID: c.endID,
				ExistingStartID: prev.startID, ExistingEndID: prev.endID,
			}
		}
	}
	if i < len(l.chunks) {
		if next := l.chunks[i]; next.startID <= c.endID {
			return &OverlapError{
				StartID: c.startID, EndID: c.endID,
				ExistingStartID: next.startID, ExistingEndID: next.endID,
			}
		}
	}

	// Splice the entry run between the neighboring chunks' boundary entries.
	pred, succ := pool.None, pool.None
	if i > 0 {
		pred = l.chunks[i-1].end
	}
	if i < len(l.chunks) {
		succ = l.chunks[i].start
	}

	l.pool.SetPrev(c.start, pred)
	if pred != pool.None {
		l.pool.SetNext(pred, c.start)
	} else {
		l.head = c.start
	}
	l.pool.SetNext(c.end, succ)
	if succ != pool.None {
		l.pool.SetPrev(succ, c.end)
	} else {
		l.tail = c.end
	}

	l.chunks = append(l.chunks, nil)
	copy(l.chunks[i+1:], l.chunks[i:])
	l.chunks[i] = c

	l.startID = l.chunks[0].startID
	l.endID = l.chunks[len(l.chunks)-1].endID
	l.hits += c.n

	if l.validateOnInsert {
		if err := l.validateLocked(); err != nil {
			return err
		}
	}

	return nil
}

// Drain removes every entry from the list in ascending order, handing each
// handle to visit. Ownership of the handles transfers to the caller; the
// list is left empty. Typically visit stages handles in a transport-ordering
// heap before encoding.
func (l *List) Drain(visit func(pool.Handle)) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for h := l.head; h != pool.None; {
		next := l.pool.Next(h)
		visit(h)
		h = next
		n++
	}
	l.resetLocked()
	return n
}

// Destroy releases every entry back to the pool and empties the list.
// It returns the number of entries and chunks released. Shard-owned buffers
// referenced by the records are untouched: records hold value handles only.
// Destroy is a teardown operation and must not race other list users.
func (l *List) Destroy() (entries, chunks int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for h := l.head; h != pool.None; {
		next := l.pool.Next(h)
		l.pool.Release(h)
		h = next
		entries++
	}
	chunks = len(l.chunks)
	l.resetLocked()
	return entries, chunks
}

func (l *List) resetLocked() {
	l.head, l.tail = pool.None, pool.None
	l.startID, l.endID = 0, 0
	l.chunks = l.chunks[:0]
	l.hits = 0
}

// Len returns the number of entries in the list.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hits
}

// Chunks returns the number of chunks in the list.
func (l *List) Chunks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.chunks)
}

// Bounds returns the cached global start and end object IDs.
// Both are zero when the list is empty.
func (l *List) Bounds() (startID, endID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startID, l.endID
}

// Validate walks the full structure and checks every invariant: entries
// globally ascending and duplicate-free, chunks sorted and non-overlapping,
// chunk ranges partitioning exactly the entry sequence, cached bounds
// consistent. Linear cost; diagnostics only.
func (l *List) Validate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.validateLocked()
}

func (l *List) validateLocked() error {
	if len(l.chunks) == 0 {
		if l.head != pool.None || l.tail != pool.None || l.hits != 0 {
			return &CorruptionError{Detail: "empty chunk sequence but entries present"}
		}
		return nil
	}

	if l.head != l.chunks[0].start {
		return &CorruptionError{Detail: "head does not match first chunk start"}
	}
	if l.tail != l.chunks[len(l.chunks)-1].end {
		return &CorruptionError{Detail: "tail does not match last chunk end"}
	}
	if l.startID != l.chunks[0].startID || l.endID != l.chunks[len(l.chunks)-1].endID {
		return &CorruptionError{Detail: "cached bounds inconsistent with chunk sequence"}
	}

	total := 0
	cursor := l.head
	var lastID uint64
	for ci, c := range l.chunks {
		if ci > 0 {
			prev := l.chunks[ci-1]
			if prev.endID >= c.startID {
				return &CorruptionError{Detail: fmt.Sprintf(
					"chunk %d [%d, %d] overlaps predecessor [%d, %d]",
					ci, c.startID, c.endID, prev.startID, prev.endID)}
			}
		}
		if cursor != c.start {
			return &CorruptionError{Detail: fmt.Sprintf("chunk %d start not contiguous with entry sequence", ci)}
		}
		seen := 0
		for h := c.start; ; h = l.pool.Next(h) {
			if h == pool.None {
				return &CorruptionError{Detail: fmt.Sprintf("chunk %d entry run ends before chunk end", ci)}
			}
			id := l.pool.At(h).ObjectID
			if total+seen > 0 && id <= lastID {
				return &CorruptionError{Detail: fmt.Sprintf("object ID %d not ascending after %d", id, lastID)}
			}
			lastID = id
			seen++
			if h == c.end {
				break
			}
		}
		if seen != c.n {
			return &CorruptionError{Detail: fmt.Sprintf("chunk %d holds %d entries, expected %d", ci, seen, c.n)}
		}
		if l.pool.At(c.start).ObjectID != c.startID || l.pool.At(c.end).ObjectID != c.endID {
			return &CorruptionError{Detail: fmt.Sprintf("chunk %d cached IDs do not match boundary entries", ci)}
		}
		total += seen
		cursor = l.pool.Next(c.end)
	}
	if cursor != pool.None {
		return &CorruptionError{Detail: "entries present beyond last chunk"}
	}
	if total != l.hits {
		return &CorruptionError{Detail: fmt.Sprintf("entry count %d does not match cached count %d", total, l.hits)}
	}
	return nil
}

// Dump renders the list as ordered text on w: one summary line, then one line
// per hit in ascending object-ID order. Diagnostics only.
func (l *List) Dump(w io.Writer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := fmt.Fprintf(w, "hitlist: %d hits in %d chunks, range [%d, %d]\n",
		l.hits, len(l.chunks), l.startID, l.endID); err != nil {
		return err
	}
	for h := l.head; h != pool.None; h = l.pool.Next(h) {
		rec := l.pool.At(h)
		if _, err := fmt.Fprintf(w, "%d\t%g\t%s\n", rec.ObjectID, rec.Score, rec.Name); err != nil {
			return err
		}
	}
	return nil
}
