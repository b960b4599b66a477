package index

import (
	"container/heap"
	"math"
	"math/rand"
	"sync"

	"github.com/gigavector/gigavector/kernel"
)

// HNSWConfig carries the tunables of an HNSW graph (§3 "Index" variants).
type HNSWConfig struct {
	M              int // max bidirectional links per node above layer 0
	EfConstruction int // dynamic candidate list size used while building
	EfSearch       int // dynamic candidate list size used while searching
	Seed           int64
}

// DefaultHNSWConfig returns the conventional HNSW parameterization: M=16,
// efConstruction=200, efSearch=64.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{M: 16, EfConstruction: 200, EfSearch: 64, Seed: 1}
}

type hnswNode struct {
	id        uint64
	vector    []float32
	level     int
	neighbors [][]uint64
	deleted   bool
}

// HNSWIndex implements a Hierarchical Navigable Small World graph (§3
// "Index" variants): a multi-layer proximity graph offering sub-linear
// approximate search at the cost of build time and memory.
type HNSWIndex struct {
	mu             sync.RWMutex
	cfg            HNSWConfig
	maxM0          int // max links at layer 0 (2*M)
	mL             float64
	dimension      int
	nodes          map[uint64]*hnswNode
	entryPoint     uint64
	hasEntryPoint  bool
	rng            *rand.Rand
	tombstoneCount int
}

// NewHNSW creates an empty HNSW index for vectors of the given dimension.
func NewHNSW(dimension int, cfg HNSWConfig) *HNSWIndex {
	if cfg.M <= 0 {
		cfg = DefaultHNSWConfig()
	}
	return &HNSWIndex{
		cfg:       cfg,
		maxM0:     cfg.M * 2,
		mL:        1.0 / math.Log(float64(cfg.M)),
		dimension: dimension,
		nodes:     make(map[uint64]*hnswNode),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (h *HNSWIndex) selectLevel() int {
	level := 0
	for h.rng.Float64() < 1.0/math.E && level < 16 {
		level++
	}
	return level
}

func (h *HNSWIndex) dist(metric kernel.Metric, a []float32, nodeID uint64) (float32, error) {
	return kernel.Distance(metric, a, h.nodes[nodeID].vector)
}

func (h *HNSWIndex) Insert(id uint64, vector []float32) error {
	if len(vector) != h.dimension {
		return &kernel.DimensionMismatchError{A: h.dimension, B: len(vector)}
	}
	v := make([]float32, len(vector))
	copy(v, vector)

	h.mu.Lock()
	defer h.mu.Unlock()

	level := h.selectLevel()
	node := &hnswNode{id: id, vector: v, level: level, neighbors: make([][]uint64, level+1)}
	h.nodes[id] = node

	if !h.hasEntryPoint {
		h.entryPoint = id
		h.hasEntryPoint = true
		return nil
	}

	const metric = kernel.Euclidean
	entry := h.nodes[h.entryPoint]
	curr := []uint64{h.entryPoint}
	for lc := entry.level; lc > level; lc-- {
		nearest, err := h.searchLayer(v, curr, 1, lc, metric)
		if err != nil {
			return err
		}
		curr = nearest
	}

	for lc := level; lc >= 0; lc-- {
		m := h.cfg.M
		if lc == 0 {
			m = h.maxM0
		}

		candidates, err := h.searchLayer(v, curr, h.cfg.EfConstruction, lc, metric)
		if err != nil {
			return err
		}
		neighbors, err := h.selectNeighborsHeuristic(v, candidates, m, metric)
		if err != nil {
			return err
		}

		node.neighbors[lc] = neighbors
		for _, nb := range neighbors {
			h.addConnection(nb, id, lc)

			nbNode := h.nodes[nb]
			if lc >= len(nbNode.neighbors) {
				continue
			}
			maxConn := h.cfg.M
			if lc == 0 {
				maxConn = h.maxM0
			}
			if len(nbNode.neighbors[lc]) > maxConn {
				pruned, err := h.selectNeighborsHeuristic(nbNode.vector, nbNode.neighbors[lc], maxConn, metric)
				if err != nil {
					return err
				}
				nbNode.neighbors[lc] = pruned
			}
		}
		curr = neighbors
	}

	if level > h.nodes[h.entryPoint].level {
		h.entryPoint = id
	}
	return nil
}

func (h *HNSWIndex) addConnection(from, to uint64, layer int) {
	fromNode, ok := h.nodes[from]
	if !ok || layer >= len(fromNode.neighbors) {
		return
	}
	for _, nb := range fromNode.neighbors[layer] {
		if nb == to {
			return
		}
	}
	fromNode.neighbors[layer] = append(fromNode.neighbors[layer], to)
}

// searchLayer performs a greedy best-first search within a single layer,
// maintaining a bounded dynamic candidate list of size ef (grounded on the
// teacher's searchLayer in pkg/index/hnsw.go).
func (h *HNSWIndex) searchLayer(query []float32, entryPoints []uint64, ef int, layer int, metric kernel.Metric) ([]uint64, error) {
	visited := make(map[uint64]bool)
	candidates := &hnswMinHeap{}
	dynamic := &hnswMaxHeap{}
	heap.Init(candidates)
	heap.Init(dynamic)

	for _, p := range entryPoints {
		d, err := h.dist(metric, query, p)
		if err != nil {
			return nil, err
		}
		heap.Push(candidates, hnswHeapItem{id: p, dist: d})
		heap.Push(dynamic, hnswHeapItem{id: p, dist: d})
		visited[p] = true
	}

	for candidates.Len() > 0 {
		if dynamic.Len() > 0 && (*candidates)[0].dist > (*dynamic)[0].dist {
			break
		}
		current := heap.Pop(candidates).(hnswHeapItem)
		currentNode := h.nodes[current.id]
		if layer >= len(currentNode.neighbors) {
			continue
		}

		for _, nb := range currentNode.neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true

			d, err := h.dist(metric, query, nb)
			if err != nil {
				return nil, err
			}
			if dynamic.Len() < ef || d < (*dynamic)[0].dist {
				heap.Push(candidates, hnswHeapItem{id: nb, dist: d})
				heap.Push(dynamic, hnswHeapItem{id: nb, dist: d})
				if dynamic.Len() > ef {
					heap.Pop(dynamic)
				}
			}
		}
	}

	result := make([]uint64, dynamic.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(dynamic).(hnswHeapItem).id
	}
	return result, nil
}

// selectNeighborsHeuristic keeps the m closest of candidates to query by
// plain distance ranking (grounded on selectNeighborsHeuristic in the
// teacher's pkg/index/hnsw.go). It applies no diversity pruning: a
// candidate is kept even when an already-selected neighbor is closer to it
// than the query is.
func (h *HNSWIndex) selectNeighborsHeuristic(query []float32, candidates []uint64, m int, metric kernel.Metric) ([]uint64, error) {
	if len(candidates) <= m {
		return candidates, nil
	}

	type pair struct {
		id   uint64
		dist float32
	}
	pairs := make([]pair, len(candidates))
	for i, c := range candidates {
		d, err := h.dist(metric, query, c)
		if err != nil {
			return nil, err
		}
		pairs[i] = pair{id: c, dist: d}
	}
	for i := 0; i < len(pairs)-1; i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].dist < pairs[i].dist {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}

	out := make([]uint64, 0, m)
	for i := 0; i < m && i < len(pairs); i++ {
		out = append(out, pairs[i].id)
	}
	return out, nil
}

func (h *HNSWIndex) Remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	node, ok := h.nodes[id]
	if !ok || node.deleted {
		return
	}
	node.deleted = true
	h.tombstoneCount++

	if h.hasEntryPoint && h.entryPoint == id {
		h.hasEntryPoint = false
		for nid, n := range h.nodes {
			if !n.deleted {
				h.entryPoint = nid
				h.hasEntryPoint = true
				break
			}
		}
	}
}

func (h *HNSWIndex) Search(query []float32, k int, metric kernel.Metric) ([]Candidate, error) {
	if k <= 0 {
		return nil, nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.hasEntryPoint {
		return nil, nil
	}
	if len(query) != h.dimension {
		return nil, &kernel.DimensionMismatchError{A: h.dimension, B: len(query)}
	}

	entry := h.nodes[h.entryPoint]
	curr := []uint64{h.entryPoint}
	for layer := entry.level; layer > 0; layer-- {
		nearest, err := h.searchLayer(query, curr, 1, layer, metric)
		if err != nil {
			return nil, err
		}
		curr = nearest
	}

	ef := h.cfg.EfSearch
	if ef < k {
		ef = k
	}
	candidates, err := h.searchLayer(query, curr, ef, 0, metric)
	if err != nil {
		return nil, err
	}

	results := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		node := h.nodes[c]
		if node == nil || node.deleted {
			continue
		}
		d, err := h.dist(metric, query, c)
		if err != nil {
			return nil, err
		}
		results = append(results, Candidate{ID: c, Distance: d})
	}
	for i := 0; i < len(results)-1; i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].Distance < results[i].Distance {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Rebuild discards all graph structure and reinserts every live entry from
// scratch.
func (h *HNSWIndex) Rebuild(live []LiveEntry) error {
	fresh := NewHNSW(h.dimension, h.cfg)
	for _, e := range live {
		if err := fresh.Insert(e.ID, e.Vector); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes = fresh.nodes
	h.entryPoint = fresh.entryPoint
	h.hasEntryPoint = fresh.hasEntryPoint
	h.tombstoneCount = 0
	return nil
}

func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, node := range h.nodes {
		if !node.deleted {
			n++
		}
	}
	return n
}

func (h *HNSWIndex) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	active, edges, maxLevel := 0, 0, 0
	for _, node := range h.nodes {
		if node.deleted {
			continue
		}
		active++
		if node.level > maxLevel {
			maxLevel = node.level
		}
		for _, nbs := range node.neighbors {
			edges += len(nbs)
		}
	}
	avg := 0.0
	if active > 0 {
		avg = float64(edges) / float64(active)
	}
	return Stats{
		NodeCount:      len(h.nodes),
		TombstoneCount: h.tombstoneCount,
		MaxLayer:       maxLevel,
		AvgDegree:      avg,
	}
}

type hnswHeapItem struct {
	id   uint64
	dist float32
}

// hnswMinHeap orders by ascending distance (the candidate frontier).
type hnswMinHeap []hnswHeapItem

func (h hnswMinHeap) Len() int            { return len(h) }
func (h hnswMinHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h hnswMinHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hnswMinHeap) Push(x interface{}) { *h = append(*h, x.(hnswHeapItem)) }
func (h *hnswMinHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// hnswMaxHeap orders by descending distance (the bounded dynamic list).
type hnswMaxHeap []hnswHeapItem

func (h hnswMaxHeap) Len() int            { return len(h) }
func (h hnswMaxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h hnswMaxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hnswMaxHeap) Push(x interface{}) { *h = append(*h, x.(hnswHeapItem)) }
func (h *hnswMaxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
