package index

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/gigavector/gigavector/kernel"
)

// kdLeafSize bounds the number of entries stored in a KD-tree leaf before
// it is split; small leaves are scanned linearly, which is cheaper than
// recursing further once a node holds only a handful of points.
const kdLeafSize = 16

// kdEntry is one stored (id, vector) pair.
type kdEntry struct {
	id     uint64
	vector []float32
}

// kdNode is either an interior split node (splitDim/splitVal, left/right)
// or a leaf holding up to kdLeafSize entries.
type kdNode struct {
	entries  []kdEntry
	splitDim int
	splitVal float32
	left     *kdNode
	right    *kdNode
}

func (n *kdNode) isLeaf() bool { return n.left == nil && n.right == nil }

// KDTreeIndex is a balanced k-d tree over median splits, suited to
// low/medium dimensionality (§3 "Index" variants). Deletes are handled by
// tombstone; the tree is rebuilt from every stored entry on each Insert and
// on Rebuild, and Remove leaves its structure unchanged.
type KDTreeIndex struct {
	mu         sync.RWMutex
	root       *kdNode
	dimension  int
	tombstoned map[uint64]bool
	live       map[uint64][]float32 // id -> vector, for Rebuild and Size bookkeeping
}

// NewKDTree creates an empty KD-tree index for vectors of the given
// dimension.
func NewKDTree(dimension int) *KDTreeIndex {
	return &KDTreeIndex{
		dimension:  dimension,
		tombstoned: make(map[uint64]bool),
		live:       make(map[uint64][]float32),
	}
}

func (t *KDTreeIndex) Insert(id uint64, vector []float32) error {
	if len(vector) != t.dimension {
		return &kernel.DimensionMismatchError{A: t.dimension, B: len(vector)}
	}
	v := make([]float32, len(vector))
	copy(v, vector)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.live[id] = v
	delete(t.tombstoned, id)
	t.root = buildKDTree(entriesOf(t.live))
	return nil
}

func entriesOf(live map[uint64][]float32) []kdEntry {
	entries := make([]kdEntry, 0, len(live))
	for id, v := range live {
		entries = append(entries, kdEntry{id: id, vector: v})
	}
	return entries
}

// buildKDTree recursively splits entries on the dimension of greatest
// spread at the median, producing a balanced tree.
func buildKDTree(entries []kdEntry) *kdNode {
	if len(entries) <= kdLeafSize {
		return &kdNode{entries: entries}
	}

	dim := widestDimension(entries)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].vector[dim] < entries[j].vector[dim]
	})
	mid := len(entries) / 2

	return &kdNode{
		splitDim: dim,
		splitVal: entries[mid].vector[dim],
		left:     buildKDTree(entries[:mid]),
		right:    buildKDTree(entries[mid:]),
	}
}

func widestDimension(entries []kdEntry) int {
	if len(entries) == 0 || len(entries[0].vector) == 0 {
		return 0
	}
	dims := len(entries[0].vector)
	best, bestSpread := 0, float32(-1)
	for d := 0; d < dims; d++ {
		lo, hi := entries[0].vector[d], entries[0].vector[d]
		for _, e := range entries[1:] {
			if e.vector[d] < lo {
				lo = e.vector[d]
			}
			if e.vector[d] > hi {
				hi = e.vector[d]
			}
		}
		if spread := hi - lo; spread > bestSpread {
			best, bestSpread = d, spread
		}
	}
	return best
}

func (t *KDTreeIndex) Remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.live[id]; ok {
		t.tombstoned[id] = true
	}
}

func (t *KDTreeIndex) Search(query []float32, k int, metric kernel.Metric) ([]Candidate, error) {
	if k <= 0 {
		return nil, nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	h := &candidateMaxHeap{}
	heap.Init(h)

	var searchErr error
	var visit func(n *kdNode)
	visit = func(n *kdNode) {
		if n == nil || searchErr != nil {
			return
		}
		if n.isLeaf() {
			for _, e := range n.entries {
				if t.tombstoned[e.id] {
					continue
				}
				d, err := kernel.Distance(metric, query, e.vector)
				if err != nil {
					searchErr = err
					return
				}
				pushBounded(h, Candidate{ID: e.id, Distance: d}, k)
			}
			return
		}

		near, far := n.left, n.right
		if query[n.splitDim] > n.splitVal {
			near, far = n.right, n.left
		}
		visit(near)

		// Best-first pruning: only descend into far if the current worst
		// kept distance could still be beaten by something on the other
		// side of the split plane.
		axisGap := query[n.splitDim] - n.splitVal
		if axisGap < 0 {
			axisGap = -axisGap
		}
		if h.Len() < k || float32(axisGap) < (*h)[0].Distance {
			visit(far)
		}
	}
	visit(t.root)
	if searchErr != nil {
		return nil, searchErr
	}

	out := make([]Candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Candidate)
	}
	return out, nil
}

func pushBounded(h *candidateMaxHeap, c Candidate, k int) {
	if h.Len() < k {
		heap.Push(h, c)
		return
	}
	if c.Distance < (*h)[0].Distance {
		heap.Pop(h)
		heap.Push(h, c)
	}
}

func (t *KDTreeIndex) Rebuild(live []LiveEntry) error {
	m := make(map[uint64][]float32, len(live))
	for _, e := range live {
		v := make([]float32, len(e.Vector))
		copy(v, e.Vector)
		m[e.ID] = v
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.live = m
	t.tombstoned = make(map[uint64]bool)
	t.root = buildKDTree(entriesOf(t.live))
	return nil
}

func (t *KDTreeIndex) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for id := range t.live {
		if !t.tombstoned[id] {
			n++
		}
	}
	return n
}

func (t *KDTreeIndex) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tomb := 0
	for _, v := range t.tombstoned {
		if v {
			tomb++
		}
	}
	return Stats{NodeCount: len(t.live), TombstoneCount: tomb}
}
