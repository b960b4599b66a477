package index

import (
	"container/heap"
	"sync"

	"github.com/gigavector/gigavector/kernel"
)

// FlatIndex is the linear-scan ANN baseline (§3 "Index" variants): exact
// search at O(n) per query, no build cost.
type FlatIndex struct {
	mu         sync.RWMutex
	vectors    map[uint64][]float32
	tombstoned map[uint64]bool
	dimension  int
}

// NewFlat creates an empty flat index for vectors of the given dimension.
func NewFlat(dimension int) *FlatIndex {
	return &FlatIndex{
		vectors:    make(map[uint64][]float32),
		tombstoned: make(map[uint64]bool),
		dimension:  dimension,
	}
}

func (f *FlatIndex) Insert(id uint64, vector []float32) error {
	if len(vector) != f.dimension {
		return &kernel.DimensionMismatchError{A: f.dimension, B: len(vector)}
	}
	v := make([]float32, len(vector))
	copy(v, vector)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[id] = v
	delete(f.tombstoned, id)
	return nil
}

func (f *FlatIndex) Remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.vectors[id]; ok {
		f.tombstoned[id] = true
	}
}

func (f *FlatIndex) Search(query []float32, k int, metric kernel.Metric) ([]Candidate, error) {
	if k <= 0 {
		return nil, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	h := &candidateMaxHeap{}
	heap.Init(h)

	for id, vec := range f.vectors {
		if f.tombstoned[id] {
			continue
		}
		d, err := kernel.Distance(metric, query, vec)
		if err != nil {
			return nil, err
		}
		if h.Len() < k {
			heap.Push(h, Candidate{ID: id, Distance: d})
		} else if top := (*h)[0]; d < top.Distance || (d == top.Distance && id < top.ID) {
			heap.Pop(h)
			heap.Push(h, Candidate{ID: id, Distance: d})
		}
	}

	out := make([]Candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Candidate)
	}
	return out, nil
}

func (f *FlatIndex) Rebuild(live []LiveEntry) error {
	vectors := make(map[uint64][]float32, len(live))
	for _, e := range live {
		v := make([]float32, len(e.Vector))
		copy(v, e.Vector)
		vectors[e.ID] = v
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = vectors
	f.tombstoned = make(map[uint64]bool)
	return nil
}

func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for id := range f.vectors {
		if !f.tombstoned[id] {
			n++
		}
	}
	return n
}

func (f *FlatIndex) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	tomb := 0
	for _, t := range f.tombstoned {
		if t {
			tomb++
		}
	}
	return Stats{NodeCount: len(f.vectors), TombstoneCount: tomb}
}

// candidateMaxHeap is a bounded max-heap over Candidate keyed by Distance,
// used to keep the k nearest neighbors seen so far (grounded on the
// teacher's flatMaxHeap in pkg/index/flat.go). Ties on Distance break on
// ID descending, so the root is always the single worst candidate by the
// same (Distance, ID) order the collection's final sort uses (§4.4 "tie-
// break by lower internal_id") — this keeps top-k selection deterministic
// regardless of the map iteration order Search visits candidates in.
type candidateMaxHeap []Candidate

func (h candidateMaxHeap) Len() int { return len(h) }
func (h candidateMaxHeap) Less(i, j int) bool {
	if h[i].Distance != h[j].Distance {
		return h[i].Distance > h[j].Distance
	}
	return h[i].ID > h[j].ID
}
func (h candidateMaxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *candidateMaxHeap) Push(x interface{}) { *h = append(*h, x.(Candidate)) }
func (h *candidateMaxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
