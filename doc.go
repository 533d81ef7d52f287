// Package hitmerge implements the hit-aggregation core of a distributed
// sequence-search service: the structures that merge per-goroutine,
// per-worker-node partial result sets into one globally ordered result set,
// and the bounded-size message protocol that moves results from worker nodes
// to the master node.
//
// # Data Flow
//
// Scanner goroutines on a worker node search disjoint, ascending object-ID
// regions and accumulate hits into private chunks with no shared state. When
// a region completes, the chunk is spliced into the node's shared hit list
// under the list lock. When the node's work is done (or periodically), the
// list is drained into a transport-ordering heap, encoded into one or more
// wire messages, and sent to the master; each encoded node is recycled into
// the sender's pool as its bytes are copied out. The master decodes each
// message into its own pool and heap, then walks the heap in merge-key order
// to produce the final output, recycling every node during the walk.
//
// # Basic Usage
//
// Worker side:
//
//	hub := transport.NewMailbox(16)
//	w, err := hitmerge.NewWorkerNode(hitmerge.DefaultPoolSize, hub.Endpoint("worker-0"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = w.RunRegions(ctx, regions, func(ctx context.Context, r hitmerge.Region, s *hitmerge.Scanner) error {
//	    // score objects in [r.Start, r.End] in ascending ID order
//	    return s.Add(hit.Record{ObjectID: id, Score: score, Name: name})
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := w.Flush(ctx, "master"); err != nil {
//	    log.Fatal(err)
//	}
//
// Master side:
//
//	m, err := hitmerge.NewMasterNode(capacity, hub.Endpoint("master"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := m.Gather(ctx, expectedMessages); err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := m.WriteResults(os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
//
// # Package Structure
//
//   - hit: record payload, non-owning shard handle, merge-key selector
//   - pool: fixed-capacity preallocated node pool with intrusive index links
//   - hitlist: per-node sorted hit collection and the chunk splice algorithm
//   - order: transport-ordering heap staged before encoding
//   - codec: bounded-size wire messages with checksums and compression
//   - transport: point-to-point frame channel (mailbox, framed streams)
package hitmerge
