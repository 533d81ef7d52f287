package hitmerge

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hitmerge/codec"
	"github.com/hupe1980/hitmerge/hit"
	"github.com/hupe1980/hitmerge/transport"
)

func TestEndToEnd(t *testing.T) {
	for _, comp := range []codec.Compression{codec.CompressionNone, codec.CompressionZstd, codec.CompressionLZ4} {
		t.Run(comp.String(), func(t *testing.T) {
			const (
				workers          = 3
				regionsPerWorker = 4
				hitsPerRegion    = 50
			)
			ctx := context.Background()
			hub := transport.NewMailbox(64)
			metrics := NewAtomicMetrics()

			master, err := NewMasterNode(workers*regionsPerWorker*hitsPerRegion, hub.Endpoint("master"),
				WithMetrics(metrics))
			require.NoError(t, err)

			for wi := 0; wi < workers; wi++ {
				w, err := NewWorkerNode(regionsPerWorker*hitsPerRegion, hub.Endpoint(fmt.Sprintf("worker-%d", wi)),
					WithMetrics(metrics),
					WithMessageLimit(700),
					WithCompression(comp),
					WithValidateOnInsert(true),
				)
				require.NoError(t, err)

				// Each worker owns a disjoint global stripe of object IDs.
				regions := make([]Region, 0, regionsPerWorker)
				base := uint64(wi*regionsPerWorker*hitsPerRegion + 1)
				for r := 0; r < regionsPerWorker; r++ {
					start := base + uint64(r*hitsPerRegion)
					regions = append(regions, Region{Start: start, End: start + hitsPerRegion - 1})
				}

				err = w.RunRegions(ctx, regions, func(_ context.Context, r Region, s *Scanner) error {
					for id := r.Start; id <= r.End; id++ {
						if err := s.Add(hit.Record{
							ObjectID: id,
							Score:    float64(id) / 2,
							Name:     fmt.Sprintf("seq-%d", id),
						}); err != nil {
							return err
						}
					}
					return nil
				})
				require.NoError(t, err)
				require.NoError(t, w.Validate())
				require.Equal(t, regionsPerWorker*hitsPerRegion, w.Hits())

				sent, err := w.Flush(ctx, "master")
				require.NoError(t, err)
				require.Equal(t, regionsPerWorker*hitsPerRegion, sent)
				require.Equal(t, 0, w.Hits(), "flush must leave the worker list empty")
			}

			snap := metrics.Snapshot()
			require.Greater(t, snap.MessagesSent, uint64(workers), "small limit should split each worker's batch")

			got, err := master.Gather(ctx, int(snap.MessagesSent)) //nolint:gosec // test counter
			require.NoError(t, err)

			total := workers * regionsPerWorker * hitsPerRegion
			require.Equal(t, total, got)
			require.Equal(t, total, master.Hits())

			var out bytes.Buffer
			written, err := master.WriteResults(&out)
			require.NoError(t, err)
			require.Equal(t, total, written)
			require.Equal(t, 0, master.Hits())

			// Output is globally ascending by object ID with no duplicates,
			// regardless of worker count or arrival interleaving.
			scanner := bufio.NewScanner(&out)
			want := uint64(1)
			for scanner.Scan() {
				fields := strings.SplitN(scanner.Text(), "\t", 3)
				require.Len(t, fields, 3)
				id, err := strconv.ParseUint(fields[0], 10, 64)
				require.NoError(t, err)
				require.Equal(t, want, id)
				require.Equal(t, "seq-"+fields[0], fields[2])
				want++
			}
			require.NoError(t, scanner.Err())
			require.Equal(t, uint64(total+1), want)

			recvSnap := metrics.Snapshot()
			require.Equal(t, uint64(total), recvSnap.HitsReceived)
			require.Equal(t, recvSnap.MessagesSent, recvSnap.MessagesReceived)
			require.Zero(t, recvSnap.DuplicatesDetected)
			require.Zero(t, recvSnap.OverlapsRejected)
		})
	}
}

func TestMasterNode_DuplicateDetection(t *testing.T) {
	ctx := context.Background()
	hub := transport.NewMailbox(8)
	metrics := NewAtomicMetrics()

	master, err := NewMasterNode(64, hub.Endpoint("master"), WithMetrics(metrics))
	require.NoError(t, err)

	send := func(name string, ids ...uint64) {
		w, err := NewWorkerNode(16, hub.Endpoint(name))
		require.NoError(t, err)
		s := w.Scanner()
		for _, id := range ids {
			require.NoError(t, s.Add(hit.Record{ObjectID: id}))
		}
		require.NoError(t, s.FinishRegion())
		_, err = w.Flush(ctx, "master")
		require.NoError(t, err)
	}

	// Chunks from independent machines are not disjoint by construction.
	send("worker-0", 1, 2, 42)
	send("worker-1", 40, 42, 50)

	_, err = master.Gather(ctx, 2)
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, uint64(42), dup.ObjectID)
	require.Equal(t, uint64(1), metrics.Snapshot().DuplicatesDetected)
}

func TestScanner_Errors(t *testing.T) {
	hub := transport.NewMailbox(1)

	t.Run("non-monotonic add", func(t *testing.T) {
		w, err := NewWorkerNode(8, hub.Endpoint("w"))
		require.NoError(t, err)
		s := w.Scanner()
		require.NoError(t, s.Add(hit.Record{ObjectID: 10}))
		err = s.Add(hit.Record{ObjectID: 10})
		require.ErrorIs(t, err, ErrNonMonotonic)
		// The failed add must not leak its node.
		require.Equal(t, 1, s.Len())
		s.Discard()
		require.Equal(t, 8, w.pool.Free())
	})

	t.Run("pool exhausted", func(t *testing.T) {
		w, err := NewWorkerNode(2, hub.Endpoint("w2"))
		require.NoError(t, err)
		s := w.Scanner()
		require.NoError(t, s.Add(hit.Record{ObjectID: 1}))
		require.NoError(t, s.Add(hit.Record{ObjectID: 2}))
		require.ErrorIs(t, s.Add(hit.Record{ObjectID: 3}), ErrPoolExhausted)
	})

	t.Run("overlapping regions rejected", func(t *testing.T) {
		w, err := NewWorkerNode(16, hub.Endpoint("w3"), WithMetrics(NewAtomicMetrics()))
		require.NoError(t, err)

		s1 := w.Scanner()
		require.NoError(t, s1.Add(hit.Record{ObjectID: 5}))
		require.NoError(t, s1.Add(hit.Record{ObjectID: 9}))
		require.NoError(t, s1.FinishRegion())

		s2 := w.Scanner()
		require.NoError(t, s2.Add(hit.Record{ObjectID: 9}))
		err = s2.FinishRegion()
		require.Error(t, err)
		// The rejected chunk's entries were recycled; the list kept its state.
		require.Equal(t, 2, w.Hits())
		require.Equal(t, 16-2, w.pool.Free())
		require.NoError(t, w.Validate())
	})
}

func TestWorkerNode_FlushRateLimited(t *testing.T) {
	ctx := context.Background()
	hub := transport.NewMailbox(16)

	w, err := NewWorkerNode(32, hub.Endpoint("w"),
		WithSendRateLimit(1<<20), // generous: pacing must not change results
		WithMessageLimit(256),
	)
	require.NoError(t, err)

	s := w.Scanner()
	for id := uint64(1); id <= 20; id++ {
		require.NoError(t, s.Add(hit.Record{ObjectID: id, Name: "padding-padding-padding"}))
	}
	require.NoError(t, s.FinishRegion())

	sent, err := w.Flush(ctx, "sink")
	require.NoError(t, err)
	require.Equal(t, 20, sent)
	require.Equal(t, 32, w.pool.Free())
}

func TestWorkerNode_DestroyReleasesAll(t *testing.T) {
	hub := transport.NewMailbox(1)
	w, err := NewWorkerNode(32, hub.Endpoint("w"))
	require.NoError(t, err)

	for r := 0; r < 3; r++ {
		s := w.Scanner()
		base := uint64(r*10 + 1)
		for id := base; id < base+5; id++ {
			require.NoError(t, s.Add(hit.Record{ObjectID: id}))
		}
		require.NoError(t, s.FinishRegion())
	}

	entries, chunks := w.Destroy()
	require.Equal(t, 15, entries)
	require.Equal(t, 3, chunks)
	require.Equal(t, 32, w.pool.Free())
}
