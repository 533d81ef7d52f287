package hitmerge

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/hitmerge/codec"
	"github.com/hupe1980/hitmerge/hit"
	"github.com/hupe1980/hitmerge/order"
	"github.com/hupe1980/hitmerge/pool"
	"github.com/hupe1980/hitmerge/transport"
)

// MasterNode aggregates the batches sent by all worker nodes. Batches are
// internally ordered but arrive in arbitrary order relative to each other;
// each decoded hit is staged in the master's ordering heap, and the final
// walk produces output and recycles nodes in one pass.
//
// A MasterNode is the single consumer of its pool, matching the pool
// contract: all methods must be called from one goroutine.
type MasterNode struct {
	opts options
	pool *pool.Pool[hit.Record]
	heap *order.Heap
	dec  *codec.Decoder
	tr   transport.Transport

	// seen tracks every object ID received so duplicates across machine
	// boundaries are detected, not silently coalesced.
	seen *roaring64.Bitmap

	hits int
}

// NewMasterNode creates a master node able to hold up to poolSize hits at a
// time. poolSize <= 0 selects DefaultPoolSize; size it for the sum of all
// workers' in-flight batches.
func NewMasterNode(poolSize int, tr transport.Transport, opts ...Option) (*MasterNode, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	dec, err := codec.NewDecoder()
	if err != nil {
		return nil, err
	}

	p := pool.New[hit.Record](poolSize)
	return &MasterNode{
		opts: o,
		pool: p,
		heap: order.NewHeap(p, o.mergeKey, poolSize),
		dec:  dec,
		tr:   tr,
		seen: roaring64.New(),
	}, nil
}

// Gather receives and consumes the given number of wire messages, decoding each hit into
// a freshly acquired pool node and staging it in the ordering heap. Returns
// the number of hits received. Transport failures surface as a
// *transport.Error; a repeated object ID surfaces as a *DuplicateError and
// stops the gather with the offending message partially consumed.
func (m *MasterNode) Gather(ctx context.Context, messages int) (int, error) {
	total := 0
	for i := 0; i < messages; i++ {
		frame, err := m.tr.Recv(ctx)
		if err != nil {
			return total, err
		}
		n, err := m.Consume(frame)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Consume decodes one wire message into the master's heap. Exposed so
// deployments with their own receive loop can feed frames directly.
func (m *MasterNode) Consume(frame []byte) (int, error) {
	n, err := m.dec.Decode(frame, m.pool, func(h pool.Handle) error {
		rec := m.pool.At(h)
		if m.seen.Contains(rec.ObjectID) {
			m.opts.metrics.DuplicateDetected()
			m.pool.Release(h)
			return &DuplicateError{ObjectID: rec.ObjectID}
		}
		m.seen.Add(rec.ObjectID)
		m.heap.PushHandle(h)
		return nil
	})
	m.hits += n
	if err != nil {
		return n, err
	}
	m.opts.metrics.MessageReceived(n, len(frame))
	m.opts.logger.Debug("message consumed", "hits", n, "bytes", len(frame))
	return n, nil
}

// Hits returns the number of hits currently staged.
func (m *MasterNode) Hits() int { return m.hits }

// WriteResults walks the heap in merge-key order, writes one line per hit to
// w, and returns every visited node to the pool in the same walk. Output
// production and resource reclamation are deliberately one pass: after
// WriteResults the master is empty and its pool is full. Returns the number
// of hits written.
func (m *MasterNode) WriteResults(w io.Writer) (int, error) {
	n := 0
	for {
		h, ok := m.heap.PopMin()
		if !ok {
			break
		}
		rec := m.pool.At(h)
		_, err := fmt.Fprintf(w, "%d\t%g\t%s\n", rec.ObjectID, rec.Score, rec.Name)
		m.pool.Release(h)
		if err != nil {
			return n, err
		}
		n++
	}
	m.hits = 0
	m.seen = roaring64.New()
	return n, nil
}

// Dump renders the staged hits as ordered text without disturbing the heap
// or recycling anything. Diagnostics only.
func (m *MasterNode) Dump(w io.Writer) error {
	handles := m.heap.Handles()
	sort.Slice(handles, func(i, j int) bool {
		return m.opts.mergeKey.Less(m.pool.At(handles[i]), m.pool.At(handles[j]))
	})
	if _, err := fmt.Fprintf(w, "master: %d hits staged\n", len(handles)); err != nil {
		return err
	}
	for _, h := range handles {
		rec := m.pool.At(h)
		if _, err := fmt.Fprintf(w, "%d\t%g\t%s\n", rec.ObjectID, rec.Score, rec.Name); err != nil {
			return err
		}
	}
	return nil
}
