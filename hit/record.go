// Package hit defines the payload types shared by the aggregation structures:
// the hit record itself, the non-owning handle into shard storage, and the
// merge-key selector used to order records.
package hit

// ShardRef is a value handle into shard-owned storage. It locates the raw
// sequence data backing a hit without owning it: releasing a Record can never
// free shard memory because there is nothing here to free.
type ShardRef struct {
	Shard  uint32
	Offset uint64
	Length uint32
}

// Record describes one match found by the scoring engine. ObjectID is the
// ascending, globally meaningful identifier of the searched object and the
// default ordering key for all aggregation structures.
type Record struct {
	ObjectID uint64
	Score    float64
	Name     string
	Shard    ShardRef
}

// Reset clears the record for reuse when its node is recycled.
func (r *Record) Reset() {
	*r = Record{}
}

// MergeKey selects the ordering key for hit aggregation structures.
type MergeKey uint8

const (
	// KeyObjectID orders hits by ascending object ID (positional merge).
	// This is the default: it matches the order chunks are produced in and
	// keeps the final walk aligned with the source database.
	KeyObjectID MergeKey = iota

	// KeyScore orders hits by descending score, breaking ties by ascending
	// object ID so the order stays deterministic.
	KeyScore
)

// Less reports whether a sorts before b under the key.
func (k MergeKey) Less(a, b *Record) bool {
	if k == KeyScore {
		if a.Score != b.Score {
			return a.Score > b.Score
		}
	}
	return a.ObjectID < b.ObjectID
}
