// Package migration implements the online index migration manager: it
// rebuilds a collection's records into a new index type in the
// background without blocking readers of the old index (§4.6 "Migration
// manager").
package migration

import (
	"sync"
	"sync/atomic"

	"github.com/gigavector/gigavector/collection"
	"github.com/gigavector/gigavector/index"
	"github.com/gigavector/gigavector/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Status names a migration's lifecycle state (§4.6).
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusRunning:
		return "RUNNING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Config tunes a migration run.
type Config struct {
	ChunkSize int
	Workers   int
	Logger    logging.Logger
}

// DefaultConfig chunks in batches of 500 across up to 4 workers.
func DefaultConfig() Config {
	return Config{ChunkSize: 500, Workers: 4, Logger: logging.Nop()}
}

// Info is a point-in-time snapshot of a migration's progress.
type Info struct {
	ID               string
	Status           Status
	VectorsMigrated  int
	Total            int
	Progress         float64
	Err              error
}

// Migration drives one online rebuild of a collection into a new index
// type (§4.6). The zero value is not usable; construct with Start.
type Migration struct {
	id     string
	coll   *collection.Collection
	newType index.Type
	hnswCfg index.HNSWConfig
	cfg    Config
	log    logging.Logger

	mu       sync.Mutex
	status   Status
	migrated int32
	total    int
	err      error

	cancel   chan struct{}
	done     chan struct{}
	built    index.Index
	taken    bool
}

// Start begins an asynchronous migration of count dim-dimensional vectors
// (data) into a freshly built index of newIndexType, returning
// immediately with status PENDING (§4.6).
func Start(coll *collection.Collection, data []index.LiveEntry, dim int, newIndexType index.Type, cfg Config) *Migration {
	if cfg.ChunkSize <= 0 || cfg.Workers <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	m := &Migration{
		id:      uuid.NewString(),
		coll:    coll,
		newType: newIndexType,
		hnswCfg: index.DefaultHNSWConfig(),
		cfg:     cfg,
		log:     cfg.Logger,
		status:  StatusPending,
		total:   len(data),
		cancel:  make(chan struct{}),
		done:    make(chan struct{}),
	}

	go m.run(data, dim)
	return m
}

func (m *Migration) run(data []index.LiveEntry, dim int) {
	defer close(m.done)

	m.setStatus(StatusRunning)
	m.log.Info("migration running", "id", m.id, "total", len(data))

	var target index.Index
	switch m.newType {
	case index.Flat:
		target = index.NewFlat(dim)
	case index.KDTree:
		target = index.NewKDTree(dim)
	case index.HNSW:
		target = index.NewHNSW(dim, m.hnswCfg)
	default:
		m.fail(nil)
		return
	}

	for start := 0; start < len(data); start += m.cfg.ChunkSize {
		select {
		case <-m.cancel:
			m.mu.Lock()
			m.status = StatusCancelled
			m.mu.Unlock()
			m.log.Info("migration cancelled", "id", m.id, "migrated", atomic.LoadInt32(&m.migrated))
			return
		default:
		}

		end := start + m.cfg.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[start:end]

		g := new(errgroup.Group)
		g.SetLimit(m.cfg.Workers)
		for _, entry := range chunk {
			entry := entry
			g.Go(func() error {
				return target.Insert(entry.ID, entry.Vector)
			})
		}
		if err := g.Wait(); err != nil {
			m.fail(err)
			return
		}

		atomic.AddInt32(&m.migrated, int32(len(chunk)))
	}

	m.mu.Lock()
	m.status = StatusCompleted
	m.built = target
	m.mu.Unlock()
	m.log.Info("migration completed", "id", m.id, "migrated", atomic.LoadInt32(&m.migrated))
}

func (m *Migration) fail(err error) {
	m.mu.Lock()
	m.status = StatusFailed
	m.err = err
	m.mu.Unlock()
	m.log.Error("migration failed", "id", m.id, "error", err)
}

func (m *Migration) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// GetInfo returns a snapshot of the migration's current progress.
func (m *Migration) GetInfo() Info {
	if m == nil {
		return Info{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	migrated := int(atomic.LoadInt32(&m.migrated))
	progress := 0.0
	if m.total > 0 {
		progress = float64(migrated) / float64(m.total)
	} else {
		progress = 1.0
	}
	return Info{
		ID:              m.id,
		Status:          m.status,
		VectorsMigrated: migrated,
		Total:           m.total,
		Progress:        progress,
		Err:             m.err,
	}
}

// Wait blocks until the migration reaches a terminal state
// (COMPLETED/CANCELLED/FAILED).
func (m *Migration) Wait() {
	if m == nil {
		return
	}
	<-m.done
}

// Cancel requests termination at the next chunk boundary. If the
// migration has already reached a terminal state, Cancel is a no-op
// returning success (§4.6, and the Open Question decision in
// SPEC_FULL.md §4.1: this also covers PENDING, tightening spec.md's
// looser "all of PENDING/RUNNING/COMPLETED/CANCELLED acceptable").
func (m *Migration) Cancel() {
	if m == nil {
		return
	}
	m.mu.Lock()
	terminal := m.status == StatusCompleted || m.status == StatusCancelled || m.status == StatusFailed
	m.mu.Unlock()
	if terminal {
		return
	}
	select {
	case <-m.cancel:
	default:
		close(m.cancel)
	}
}

// TakeIndex returns the newly built index exactly once after COMPLETED;
// every subsequent call, and every call before completion, returns
// (nil, false) (§4.6 ownership transfer).
func (m *Migration) TakeIndex() (index.Index, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusCompleted || m.taken || m.built == nil {
		return nil, false
	}
	m.taken = true
	return m.built, true
}

// Destroy awaits the worker's exit and releases resources. Safe to call
// at any point, and safe on a nil Migration (§4.6, §9 null-safety
// contract).
func (m *Migration) Destroy() {
	if m == nil {
		return
	}
	m.Cancel()
	<-m.done
}
