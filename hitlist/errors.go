package hitlist

import (
	"errors"
	"fmt"
)

// ErrNonMonotonic is returned by Chunk.Append when the appended hit's object
// ID does not strictly exceed the chunk's current end ID. Chunks are built
// from a single ascending region scan, so discovery order is the caller's
// guarantee.
var ErrNonMonotonic = errors.New("hitlist: object ID not strictly ascending within chunk")

// OverlapError indicates that an inserted chunk's ID range intersects a chunk
// already in the list. The merge is rejected rather than partially applied:
// silent resolution could drop or duplicate hits.
type OverlapError struct {
	StartID, EndID                 uint64
	ExistingStartID, ExistingEndID uint64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("hitlist: chunk [%d, %d] overlaps existing chunk [%d, %d]",
		e.StartID, e.EndID, e.ExistingStartID, e.ExistingEndID)
}

// CorruptionError is returned by Validate when a structural invariant does
// not hold. It should never occur outside of diagnostics on a buggy build.
type CorruptionError struct {
	Detail string
}

func (e *CorruptionError) Error() string {
	return "hitlist: structure corrupt: " + e.Detail
}
