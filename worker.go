package hitmerge

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/hitmerge/codec"
	"github.com/hupe1980/hitmerge/hit"
	"github.com/hupe1980/hitmerge/hitlist"
	"github.com/hupe1980/hitmerge/order"
	"github.com/hupe1980/hitmerge/pool"
	"github.com/hupe1980/hitmerge/transport"
)

// Region is one share of the work split: a private, disjoint range of
// ascending object IDs scanned by one goroutine.
type Region struct {
	Start uint64
	End   uint64
}

// lockedPool adds the exclusion the pool contract leaves to the caller:
// scanner goroutines acquire concurrently and the encoder recycles
// concurrently with late scanners, so free-list mutation is serialized here.
// Payload access needs no lock; handles are owned by exactly one party.
type lockedPool struct {
	mu sync.Mutex
	p  *pool.Pool[hit.Record]
}

var _ codec.NodePool = (*lockedPool)(nil)

func (lp *lockedPool) Acquire() (pool.Handle, error) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.p.Acquire()
}

func (lp *lockedPool) Release(h pool.Handle) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.p.Release(h)
}

func (lp *lockedPool) At(h pool.Handle) *hit.Record {
	return lp.p.At(h)
}

// WorkerNode owns one worker's aggregation state: the shared entry pool, the
// node's hit list, the transport-ordering heap staged for sending, and the
// encoder/transport pair that moves finished batches to the master.
type WorkerNode struct {
	opts    options
	pool    *pool.Pool[hit.Record]
	lp      *lockedPool
	list    *hitlist.List
	heap    *order.Heap
	enc     *codec.Encoder
	tr      transport.Transport
	limiter *rate.Limiter

	// flushMu serializes Flush calls; scanners may keep publishing chunks
	// while a flush is in flight.
	flushMu sync.Mutex
}

// NewWorkerNode creates a worker node with a pool of poolSize entry nodes.
// poolSize <= 0 selects DefaultPoolSize.
func NewWorkerNode(poolSize int, tr transport.Transport, opts ...Option) (*WorkerNode, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	p := pool.New[hit.Record](poolSize)
	lp := &lockedPool{p: p}

	enc, err := codec.NewEncoder(lp, o.messageLimit, o.compression)
	if err != nil {
		return nil, err
	}

	var listOpts []hitlist.ListOption
	if o.validateOnInsert {
		listOpts = append(listOpts, hitlist.WithValidateOnInsert(true))
	}

	w := &WorkerNode{
		opts: o,
		pool: p,
		lp:   lp,
		list: hitlist.NewList(p, listOpts...),
		heap: order.NewHeap(p, o.mergeKey, poolSize),
		enc:  enc,
		tr:   tr,
	}
	if o.sendRateBytes > 0 {
		burst := o.sendRateBytes
		if burst < o.messageLimit*2 {
			burst = o.messageLimit * 2
		}
		w.limiter = rate.NewLimiter(rate.Limit(o.sendRateBytes), burst)
	}
	return w, nil
}

// Scanner returns a fresh scanner for one scanning goroutine. Scanners share
// nothing but the pool; chunk accumulation is lock-free.
func (w *WorkerNode) Scanner() *Scanner {
	return &Scanner{w: w, chunk: hitlist.NewChunk()}
}

// Scanner accumulates hits from one ascending region scan into a private
// chunk. Not safe for concurrent use; create one per goroutine.
type Scanner struct {
	w     *WorkerNode
	chunk *hitlist.Chunk
}

// Add appends one hit to the scanner's current chunk. Hits must arrive in
// strictly ascending object-ID order within a region; violations return
// ErrNonMonotonic. A full pool returns ErrPoolExhausted.
func (s *Scanner) Add(rec hit.Record) error {
	h, err := s.w.lp.Acquire()
	if err != nil {
		return err
	}
	*s.w.pool.At(h) = rec
	if err := s.chunk.Append(s.w.pool, h); err != nil {
		s.w.lp.Release(h)
		return err
	}
	return nil
}

// Len returns the number of hits accumulated in the current region.
func (s *Scanner) Len() int { return s.chunk.Len() }

// FinishRegion publishes the accumulated chunk into the node's shared hit
// list and starts a new chunk. On an overlap rejection the chunk's entries
// are recycled and the error reported upward; the list is unchanged.
func (s *Scanner) FinishRegion() error {
	if s.chunk.Empty() {
		return nil
	}
	c := s.chunk
	s.chunk = hitlist.NewChunk()

	if err := s.w.list.InsertChunk(c); err != nil {
		var oe *hitlist.OverlapError
		if errors.As(err, &oe) {
			s.w.opts.metrics.OverlapRejected()
			s.w.opts.logger.Warn("chunk rejected",
				"start_id", oe.StartID, "end_id", oe.EndID,
				"existing_start_id", oe.ExistingStartID, "existing_end_id", oe.ExistingEndID,
			)
			c.Release(s.w.pool, s.w.lp.Release)
		}
		return err
	}

	s.w.opts.metrics.ChunkInserted(c.Len())
	s.w.opts.logger.Debug("chunk inserted",
		"hits", c.Len(), "start_id", c.StartID(), "end_id", c.EndID(),
	)
	return nil
}

// Discard recycles the accumulated chunk without publishing it, for aborted
// region scans.
func (s *Scanner) Discard() {
	s.chunk.Release(s.w.pool, s.w.lp.Release)
}

// RunRegions scans regions concurrently, each on its own Scanner, bounded by
// the configured scan concurrency. scan must report hits in ascending
// object-ID order within its region; RunRegions publishes each finished
// region's chunk. The first error cancels the remaining scans.
func (w *WorkerNode) RunRegions(ctx context.Context, regions []Region, scan func(ctx context.Context, r Region, s *Scanner) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.scanConcurrency)

	for _, r := range regions {
		g.Go(func() error {
			s := w.Scanner()
			if err := scan(ctx, r, s); err != nil {
				s.Discard()
				return err
			}
			return s.FinishRegion()
		})
	}
	return g.Wait()
}

// Flush drains the hit list into the transport-ordering heap, encodes the
// staged hits into one or more wire messages and sends them to dest,
// recycling every node into the pool as its bytes are copied out. Returns
// the number of hits sent. Send failures surface as a *transport.Error; the
// caller decides whether to retry the batch or abort the job.
func (w *WorkerNode) Flush(ctx context.Context, dest string) (int, error) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.list.Drain(w.heap.PushHandle)

	hits, err := w.enc.EncodeAll(w.heap, func(frame []byte) error {
		if w.limiter != nil {
			if err := w.limiter.WaitN(ctx, len(frame)); err != nil {
				return &transport.Error{Op: "send", Dest: dest, Err: err}
			}
		}
		if err := w.tr.Send(ctx, dest, frame); err != nil {
			return err
		}
		w.opts.metrics.MessageSent(len(frame))
		return nil
	})
	if err != nil {
		return hits, err
	}

	w.opts.logger.WithDest(dest).Debug("flushed hits", "hits", hits)
	return hits, nil
}

// Hits returns the number of hits currently held in the node's list.
func (w *WorkerNode) Hits() int { return w.list.Len() }

// Validate runs the full structural check on the node's list.
// Diagnostics only.
func (w *WorkerNode) Validate() error { return w.list.Validate() }

// Dump renders the node's list as ordered text. Diagnostics only.
func (w *WorkerNode) Dump(out io.Writer) error { return w.list.Dump(out) }

// Destroy releases every entry still held by the list back to the pool and
// returns the released entry and chunk counts. Teardown only.
func (w *WorkerNode) Destroy() (entries, chunks int) { return w.list.Destroy() }
