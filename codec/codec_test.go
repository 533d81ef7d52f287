package codec

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hitmerge/hit"
	"github.com/hupe1980/hitmerge/order"
	"github.com/hupe1980/hitmerge/pool"
)

func stageHits(t *testing.T, p *pool.Pool[hit.Record], h *order.Heap, recs []hit.Record) {
	t.Helper()
	for _, rec := range recs {
		hd, err := p.Acquire()
		require.NoError(t, err)
		*p.At(hd) = rec
		h.PushHandle(hd)
	}
}

func randomHits(n int, seed int64) []hit.Record {
	rng := rand.New(rand.NewSource(seed))
	recs := make([]hit.Record, n)
	for i := range recs {
		recs[i] = hit.Record{
			ObjectID: uint64(i)*3 + 1,
			Score:    rng.Float64() * 100,
			Name:     fmt.Sprintf("seq-%06d", i),
			Shard: hit.ShardRef{
				Shard:  uint32(rng.Intn(16)), //nolint:gosec // test data
				Offset: rng.Uint64(),
				Length: uint32(rng.Intn(4096)), //nolint:gosec // test data
			},
		}
	}
	rng.Shuffle(n, func(i, j int) { recs[i], recs[j] = recs[j], recs[i] })
	return recs
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(comp.String(), func(t *testing.T) {
			const n = 500
			src := randomHits(n, 11)

			sendPool := pool.New[hit.Record](n)
			sendHeap := order.NewHeap(sendPool, hit.KeyObjectID, n)
			stageHits(t, sendPool, sendHeap, src)

			enc, err := NewEncoder(sendPool, 2048, comp)
			require.NoError(t, err)

			var frames [][]byte
			hits, err := enc.EncodeAll(sendHeap, func(frame []byte) error {
				frames = append(frames, frame)
				return nil
			})
			require.NoError(t, err)
			require.Equal(t, n, hits)
			require.Greater(t, len(frames), 1, "a 2048-byte limit should split %d hits", n)

			// Send and recycle are one step: the sender retains nothing.
			require.Equal(t, n, sendPool.Free())
			require.Equal(t, 0, sendHeap.Len())

			recvPool := pool.New[hit.Record](n)
			recvHeap := order.NewHeap(recvPool, hit.KeyObjectID, n)
			dec, err := NewDecoder()
			require.NoError(t, err)

			total := 0
			for _, frame := range frames {
				got, err := dec.Decode(frame, recvPool, func(h pool.Handle) error {
					recvHeap.PushHandle(h)
					return nil
				})
				require.NoError(t, err)
				total += got
			}
			require.Equal(t, n, total)

			// The decoded multiset matches the original, and the heap walk
			// yields it in merge-key order.
			byID := make(map[uint64]hit.Record, n)
			for _, rec := range src {
				byID[rec.ObjectID] = rec
			}
			var last uint64
			for i := 0; i < n; i++ {
				h, ok := recvHeap.PopMin()
				require.True(t, ok)
				rec := recvPool.At(h)
				require.Greater(t, rec.ObjectID, last)
				last = rec.ObjectID
				require.Equal(t, byID[rec.ObjectID], *rec)
				delete(byID, rec.ObjectID)
				recvPool.Release(h)
			}
			require.Empty(t, byID)
		})
	}
}

func TestCodec_MessageSizeBound(t *testing.T) {
	const (
		n     = 300
		limit = 1000
	)
	src := randomHits(n, 23)

	maxRecord := 0
	for i := range src {
		if s := RecordSize(&src[i]); s > maxRecord {
			maxRecord = s
		}
	}

	p := pool.New[hit.Record](n)
	h := order.NewHeap(p, hit.KeyObjectID, n)
	stageHits(t, p, h, src)

	enc, err := NewEncoder(p, limit, CompressionNone)
	require.NoError(t, err)

	_, err = enc.EncodeAll(h, func(frame []byte) error {
		payload := len(frame) - headerLen
		require.LessOrEqual(t, payload, limit+maxRecord-1,
			"message payload must not exceed limit + max record size - 1")
		return nil
	})
	require.NoError(t, err)
}

func TestCodec_DecodeErrors(t *testing.T) {
	src := randomHits(10, 31)

	p := pool.New[hit.Record](10)
	h := order.NewHeap(p, hit.KeyObjectID, 10)
	stageHits(t, p, h, src)

	enc, err := NewEncoder(p, 0, CompressionNone)
	require.NoError(t, err)

	var frame []byte
	_, err = enc.EncodeAll(h, func(f []byte) error {
		frame = f
		return nil
	})
	require.NoError(t, err)

	dec, err := NewDecoder()
	require.NoError(t, err)

	noPush := func(hd pool.Handle) error {
		p.Release(hd)
		return nil
	}

	t.Run("short frame", func(t *testing.T) {
		_, err := dec.Decode(frame[:headerLen-1], p, noPush)
		require.ErrorIs(t, err, ErrShortMessage)
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[0] ^= 0xff
		_, err := dec.Decode(bad, p, noPush)
		require.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("corrupt payload", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[len(bad)-1] ^= 0xff
		_, err := dec.Decode(bad, p, noPush)
		require.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, err := dec.Decode(frame[:len(frame)-5], p, noPush)
		require.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("receiver pool exhausted", func(t *testing.T) {
		tiny := pool.New[hit.Record](3)
		pushed := 0
		_, err := dec.Decode(frame, tiny, func(pool.Handle) error {
			pushed++
			return nil
		})
		require.ErrorIs(t, err, pool.ErrExhausted)
		require.Equal(t, 3, pushed)
	})

	t.Run("push error stops decode", func(t *testing.T) {
		stop := errors.New("stop")
		big := pool.New[hit.Record](10)
		n, err := dec.Decode(frame, big, func(pool.Handle) error {
			return stop
		})
		require.ErrorIs(t, err, stop)
		require.Equal(t, 0, n)
	})
}

func TestCodec_EmptyHeap(t *testing.T) {
	p := pool.New[hit.Record](1)
	h := order.NewHeap(p, hit.KeyObjectID, 1)

	enc, err := NewEncoder(p, 0, CompressionNone)
	require.NoError(t, err)

	hits, err := enc.EncodeAll(h, func([]byte) error {
		t.Fatal("no frame should be emitted for an empty batch")
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, hits)
}
