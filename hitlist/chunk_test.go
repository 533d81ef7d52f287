package hitlist

import (
	"errors"
	"testing"

	"github.com/hupe1980/hitmerge/hit"
	"github.com/hupe1980/hitmerge/pool"
)

func appendHit(t *testing.T, p *pool.Pool[hit.Record], c *Chunk, id uint64) pool.Handle {
	t.Helper()
	h, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	*p.At(h) = hit.Record{ObjectID: id}
	if err := c.Append(p, h); err != nil {
		t.Fatalf("Append(%d) failed: %v", id, err)
	}
	return h
}

func TestChunk_Append(t *testing.T) {
	p := pool.New[hit.Record](16)
	c := NewChunk()

	if !c.Empty() {
		t.Fatal("new chunk should be empty")
	}

	appendHit(t, p, c, 10)
	appendHit(t, p, c, 11)
	appendHit(t, p, c, 20)

	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
	if c.StartID() != 10 || c.EndID() != 20 {
		t.Errorf("bounds = [%d, %d], want [10, 20]", c.StartID(), c.EndID())
	}
}

func TestChunk_AppendNonMonotonic(t *testing.T) {
	p := pool.New[hit.Record](16)
	c := NewChunk()

	appendHit(t, p, c, 10)

	for _, id := range []uint64{10, 9} {
		h, err := p.Acquire()
		if err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		*p.At(h) = hit.Record{ObjectID: id}
		if err := c.Append(p, h); !errors.Is(err, ErrNonMonotonic) {
			t.Fatalf("Append(%d) = %v, want ErrNonMonotonic", id, err)
		}
		p.Release(h)
	}

	if c.Len() != 1 || c.EndID() != 10 {
		t.Error("failed append must leave chunk unchanged")
	}
}

func TestChunk_Release(t *testing.T) {
	p := pool.New[hit.Record](8)
	c := NewChunk()

	for id := uint64(1); id <= 5; id++ {
		appendHit(t, p, c, id)
	}
	if p.Free() != 3 {
		t.Fatalf("Free() = %d, want 3", p.Free())
	}

	n := c.Release(p, p.Release)
	if n != 5 {
		t.Errorf("Release returned %d, want 5", n)
	}
	if p.Free() != 8 {
		t.Errorf("Free() = %d after release, want 8", p.Free())
	}
	if !c.Empty() {
		t.Error("released chunk should be empty")
	}
}
