// Package index implements the polymorphic index capability set over the
// {flat, kd-tree, HNSW} variants (§3 "Index"). All variants support
// insert, soft-delete, and k-nearest-neighbor search by internal id, and
// must remain consistent with the owning collection's record vector after
// every insert/delete.
package index

import "github.com/gigavector/gigavector/kernel"

// Type identifies an index variant, matching §6's index_type enum
// (FLAT=0, KDTREE=1, HNSW=2).
type Type int

const (
	Flat Type = iota
	KDTree
	HNSW
)

func (t Type) String() string {
	switch t {
	case Flat:
		return "flat"
	case KDTree:
		return "kdtree"
	case HNSW:
		return "hnsw"
	default:
		return "unknown"
	}
}

// Candidate is one result of a k-nearest-neighbor search: an internal id
// and its distance from the query under the search's metric.
type Candidate struct {
	ID       uint64
	Distance float32
}

// Stats reports index-variant diagnostics (§ supplemented features:
// index statistics), reported through Collection.Info.
type Stats struct {
	NodeCount      int
	TombstoneCount int
	MaxLayer       int     // HNSW only; 0 for other variants
	AvgDegree      float64 // HNSW only; 0 for other variants
}

// Index is the capability set every index variant implements. The index
// references records by internal id and keeps its own copy of every
// inserted vector.
type Index interface {
	// Insert adds id with a copy of its vector data.
	Insert(id uint64, vector []float32) error
	// Remove soft-deletes id so it is excluded from future Search results.
	// Removing an absent or already-removed id is a no-op.
	Remove(id uint64)
	// Search returns up to k candidates ordered by ascending distance
	// under metric.
	Search(query []float32, k int, metric kernel.Metric) ([]Candidate, error)
	// Rebuild discards tombstoned entries and reconstructs internal
	// structures from the remaining live entries, given the full set of
	// currently-live (id, vector) pairs.
	Rebuild(live []LiveEntry) error
	// Size returns the number of non-tombstoned entries.
	Size() int
	// Stats reports diagnostic counters for this index instance.
	Stats() Stats
}

// LiveEntry is a (id, vector) pair passed to Rebuild.
type LiveEntry struct {
	ID     uint64
	Vector []float32
}
