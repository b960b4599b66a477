// Package collection implements the Collection (Database): a fixed-
// dimension set of vector records plus one active index, supporting
// add/search/delete (§4.4, §3 "Collection").
package collection

import (
	"sort"
	"sync"

	"github.com/gigavector/gigavector/errors"
	"github.com/gigavector/gigavector/filter"
	"github.com/gigavector/gigavector/index"
	"github.com/gigavector/gigavector/kernel"
	"github.com/gigavector/gigavector/logging"
	"github.com/gigavector/gigavector/vector"
	"golang.org/x/sync/errgroup"
)

// overfetchAlpha is the default overfetch multiplier for filtered search
// (§4.4: "overfetches α·k candidates, α=4 by default").
const overfetchAlpha = 4

// defaultCompactBatchSize is used when CompactTombstones is called with a
// non-positive batchSize.
const defaultCompactBatchSize = 1000

// Options configures a Collection at Open time.
type Options struct {
	Dimension int
	IndexType index.Type
	HNSWConfig index.HNSWConfig
	Logger    logging.Logger
}

// DefaultOptions returns sane defaults: a Flat index and no logging.
func DefaultOptions(dimension int) Options {
	return Options{
		Dimension:  dimension,
		IndexType:  index.Flat,
		HNSWConfig: index.DefaultHNSWConfig(),
		Logger:     logging.Nop(),
	}
}

// Result is one ranked search hit.
type Result struct {
	ID       uint64
	Distance float32
	Metadata map[string]string
}

// Info is a read-only diagnostic snapshot (supplemented feature,
// mirroring the teacher's StoreStats/CollectionStats).
type Info struct {
	Dimension    int
	IndexType    index.Type
	LiveCount    int
	DeletedCount int
	IndexStats   index.Stats
}

// Collection owns a vector of records keyed by internal_id, the active
// index, and lifecycle counters (§3 "Collection"). It is safe for
// concurrent use: a single writer (Add/Delete) at a time, any number of
// concurrent readers (Search), per §5's scheduling model.
type Collection struct {
	mu sync.RWMutex

	dimension int
	indexType index.Type
	hnswCfg   index.HNSWConfig
	active    index.Index
	log       logging.Logger

	records  map[uint64]*vector.Record
	nextID   uint64
	live     int
	deleted  int
}

// Open creates an empty in-memory collection. path is reserved for future
// persistence and is otherwise unused (§4.4).
func Open(path string, opts Options) (*Collection, error) {
	if opts.Dimension <= 0 {
		return nil, errors.New(errors.KindInvalidArgument, "collection.Open", nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	var active index.Index
	switch opts.IndexType {
	case index.Flat:
		active = index.NewFlat(opts.Dimension)
	case index.KDTree:
		active = index.NewKDTree(opts.Dimension)
	case index.HNSW:
		active = index.NewHNSW(opts.Dimension, opts.HNSWConfig)
	default:
		return nil, errors.New(errors.KindInvalidArgument, "collection.Open", nil)
	}

	c := &Collection{
		dimension: opts.Dimension,
		indexType: opts.IndexType,
		hnswCfg:   opts.HNSWConfig,
		active:    active,
		log:       opts.Logger,
		records:   make(map[uint64]*vector.Record),
		nextID:    1,
	}
	c.log.Info("collection opened", "dimension", opts.Dimension, "index_type", opts.IndexType.String())
	return c, nil
}

// AddVector allocates a new record, assigns the next internal id, inserts
// it into the active index, and returns the id. Fails DimensionMismatch
// if len(data) != c.dimension (§4.4).
func (c *Collection) AddVector(data []float32) (uint64, error) {
	return c.AddVectorWithMetadata(data, "", "")
}

// AddVectorWithMetadata is AddVector plus one initial metadata pair. Pass
// an empty key to omit the pair (§4.4).
func (c *Collection) AddVectorWithMetadata(data []float32, key, value string) (uint64, error) {
	if c == nil {
		return 0, errors.New(errors.KindInvalidArgument, "collection.AddVectorWithMetadata", nil)
	}
	if len(data) != c.dimension {
		return 0, errors.New(errors.KindDimensionMismatch, "collection.AddVectorWithMetadata",
			&kernel.DimensionMismatchError{A: c.dimension, B: len(data)})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++

	rec := vector.New(id, data)
	if key != "" {
		rec.SetMetadata(key, value)
	}

	if err := c.active.Insert(id, rec.Data); err != nil {
		return 0, errors.New(errors.KindInternal, "collection.AddVectorWithMetadata", err)
	}

	c.records[id] = rec
	c.live++
	return id, nil
}

// Search returns up to k candidates ordered by ascending distance, ties
// broken by ascending internal id (§4.4 "Result ordering").
func (c *Collection) Search(query []float32, k int, metric kernel.Metric) ([]Result, error) {
	return c.SearchWithFilterExpr(query, k, metric, "")
}

// SearchWithFilterExpr parses filterSrc once (empty string means "match
// everything"), overfetches α·k candidates from the index (capped at the
// live count), evaluates the filter and tombstone check against each,
// then truncates to k. If filtering rejects enough that fewer than k
// survive, it returns what it has rather than iterating expansion (§4.4).
func (c *Collection) SearchWithFilterExpr(query []float32, k int, metric kernel.Metric, filterSrc string) ([]Result, error) {
	if c == nil {
		return nil, errors.New(errors.KindInvalidArgument, "collection.SearchWithFilterExpr", nil)
	}
	if k <= 0 {
		return nil, nil
	}
	if len(query) != c.dimension {
		return nil, errors.New(errors.KindDimensionMismatch, "collection.SearchWithFilterExpr",
			&kernel.DimensionMismatchError{A: c.dimension, B: len(query)})
	}

	var f *filter.Filter
	if filterSrc != "" {
		parsed, err := filter.Parse(filterSrc)
		if err != nil {
			return nil, errors.New(errors.KindParseError, "collection.SearchWithFilterExpr", err)
		}
		f = parsed
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	fetchCount := overfetchAlpha * k
	if fetchCount > c.live {
		fetchCount = c.live
	}
	if fetchCount <= 0 {
		return nil, nil
	}

	candidates, err := c.active.Search(query, fetchCount, metric)
	if err != nil {
		return nil, errors.New(errors.KindInternal, "collection.SearchWithFilterExpr", err)
	}

	out := make([]Result, 0, k)
	for _, cand := range candidates {
		rec, ok := c.records[cand.ID]
		if !ok || !rec.IsLive() {
			continue
		}
		if !filter.Eval(f, rec.Metadata) {
			continue
		}
		out = append(out, Result{ID: cand.ID, Distance: cand.Distance, Metadata: rec.Metadata})
		if len(out) == k {
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteVectorByIndex sets id's tombstone, increments deleted_count, and
// asks the active index to soft-remove it. Idempotent: deleting an
// already-deleted or absent id is a no-op returning success (§4.4).
func (c *Collection) DeleteVectorByIndex(id uint64) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]
	if !ok || !rec.IsLive() {
		return nil
	}
	rec.MarkDeleted()
	c.active.Remove(id)
	c.live--
	c.deleted++
	return nil
}

// Close releases all resources owned by the collection. Safe on a nil
// receiver (§9 "destroy on a null handle is defined as a no-op").
func (c *Collection) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	c.active = nil
}

// Info returns a read-only diagnostic snapshot.
func (c *Collection) Info() Info {
	if c == nil {
		return Info{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var stats index.Stats
	if c.active != nil {
		stats = c.active.Stats()
	}
	return Info{
		Dimension:    c.dimension,
		IndexType:    c.indexType,
		LiveCount:    c.live,
		DeletedCount: c.deleted,
		IndexStats:   stats,
	}
}

// swapIndex atomically replaces the active index, used by vacuum and
// migration under their own coordination (§5 "synchronize... through a
// per-collection lock taken only around state-mutating splices").
func (c *Collection) swapIndex(newIndex index.Index, newType index.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = newIndex
	c.indexType = newType
}

// LiveEntries snapshots every non-tombstoned (id, vector) pair, the input
// a migration rebuilds from, so the rebuild does not hold the collection
// lock for the whole pass.
func (c *Collection) LiveEntries() []index.LiveEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]index.LiveEntry, 0, c.live)
	for id, rec := range c.records {
		if rec.IsLive() {
			out = append(out, index.LiveEntry{ID: id, Vector: rec.Data})
		}
	}
	return out
}

// FragmentationRatio returns deleted_count / (deleted_count + live_count),
// as used by the vacuum manager's SCANNING state (§4.5).
func (c *Collection) FragmentationRatio() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.live + c.deleted
	if total == 0 {
		return 0
	}
	return float64(c.deleted) / float64(total)
}

// DeletedCount and LiveCount expose the raw counters used by the vacuum
// manager's trigger threshold (min_deleted_count).
func (c *Collection) DeletedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deleted
}

func (c *Collection) LiveCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.live
}

// CompactTombstones drops every tombstoned record from the collection's
// record table and resets deleted_count to 0, leaving a sparse id mapping
// (§4.5: "reassigning a compact id space or leaving a sparse id mapping
// is an implementation choice"). The sweep and, when rebuild is true, the
// rebuild are both processed in chunks of batchSize records at a time
// (§4.5 "batch_size: records processed per pass"; non-positive falls back
// to defaultCompactBatchSize) rather than as one pass under a single
// held lock. When rebuilding, each chunk's inserts into the fresh index
// are fanned out concurrently via errgroup, the same pattern migration
// uses to build its target index (§4.6). Used exclusively by the vacuum
// manager's COMPACTING state.
func (c *Collection) CompactTombstones(rebuild bool, batchSize int) error {
	if c == nil {
		return nil
	}
	if batchSize <= 0 {
		batchSize = defaultCompactBatchSize
	}

	c.mu.Lock()
	tombstoned := make([]uint64, 0, c.deleted)
	for id, rec := range c.records {
		if !rec.IsLive() {
			tombstoned = append(tombstoned, id)
		}
	}
	c.mu.Unlock()

	for start := 0; start < len(tombstoned); start += batchSize {
		end := start + batchSize
		if end > len(tombstoned) {
			end = len(tombstoned)
		}
		c.mu.Lock()
		for _, id := range tombstoned[start:end] {
			delete(c.records, id)
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.deleted = 0
	c.mu.Unlock()

	if !rebuild {
		return nil
	}

	c.mu.RLock()
	live := make([]index.LiveEntry, 0, len(c.records))
	for id, rec := range c.records {
		live = append(live, index.LiveEntry{ID: id, Vector: rec.Data})
	}
	indexType := c.indexType
	hnswCfg := c.hnswCfg
	dimension := c.dimension
	c.mu.RUnlock()

	var fresh index.Index
	switch indexType {
	case index.Flat:
		fresh = index.NewFlat(dimension)
	case index.KDTree:
		fresh = index.NewKDTree(dimension)
	case index.HNSW:
		fresh = index.NewHNSW(dimension, hnswCfg)
	default:
		return errors.New(errors.KindInternal, "collection.CompactTombstones", nil)
	}

	for start := 0; start < len(live); start += batchSize {
		end := start + batchSize
		if end > len(live) {
			end = len(live)
		}
		chunk := live[start:end]

		g := new(errgroup.Group)
		for _, entry := range chunk {
			entry := entry
			g.Go(func() error {
				return fresh.Insert(entry.ID, entry.Vector)
			})
		}
		if err := g.Wait(); err != nil {
			return errors.New(errors.KindInternal, "collection.CompactTombstones", err)
		}
	}

	c.swapIndex(fresh, indexType)
	return nil
}

// ReplaceIndex atomically swaps in a newly built index and its type,
// under the collection lock, per §5's "state-mutating splices" model.
// The migration manager does not call it; a caller attaches the index
// returned by Migration.TakeIndex through it.
func (c *Collection) ReplaceIndex(newIndex index.Index, newType index.Type) {
	if c == nil {
		return
	}
	c.swapIndex(newIndex, newType)
}

// Dimension reports the collection's fixed vector dimension.
func (c *Collection) Dimension() int {
	return c.dimension
}

// IndexType reports the currently active index variant.
func (c *Collection) IndexType() index.Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexType
}
