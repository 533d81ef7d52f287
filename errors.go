package hitmerge

import (
	"fmt"

	"github.com/hupe1980/hitmerge/hitlist"
	"github.com/hupe1980/hitmerge/pool"
)

// Re-exported sentinels so callers can errors.Is against the root package
// without importing the structural subpackages.
var (
	// ErrPoolExhausted is returned when a node pool has no free slot.
	// Pool capacity is a deployment parameter; this is fatal/operational.
	ErrPoolExhausted = pool.ErrExhausted

	// ErrNonMonotonic is returned when a scanner reports hits out of
	// ascending object-ID order within one region.
	ErrNonMonotonic = hitlist.ErrNonMonotonic
)

// DuplicateError is returned by the master when a decoded hit carries an
// object ID already received from some batch. Batches from independent
// machines are not guaranteed disjoint; duplicates are detected and reported
// upward, never silently coalesced.
type DuplicateError struct {
	ObjectID uint64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("hitmerge: duplicate hit for object %d", e.ObjectID)
}
