// Package namespace implements the namespace manager: a concurrent
// name→collection mapping with quotas (§3 "Namespace", §12 "external
// collaborator"). GigaVector elects to implement it, persisting namespace
// configuration and quota limits in SQLite — the teacher's own storage
// backend — rather than leaving it purely in memory, since this is the
// one component spec.md explicitly scopes as carrying its own
// persistence concern.
package namespace

import (
	"database/sql"
	"sync"

	"github.com/gigavector/gigavector/collection"
	"github.com/gigavector/gigavector/errors"
	"github.com/gigavector/gigavector/index"
	"github.com/gigavector/gigavector/logging"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Config carries a namespace's declared shape and quotas (§6
// namespace_config_init defaults: name=none, dimension=0,
// index_type=HNSW, max_vectors=0, max_memory_bytes=0 — 0 means
// unbounded for both quota fields).
type Config struct {
	Name           string
	Dimension      int
	IndexType      index.Type
	MaxVectors     int64
	MaxMemoryBytes int64
}

// DefaultConfig returns §6's namespace_config_init defaults.
func DefaultConfig() Config {
	return Config{IndexType: index.HNSW}
}

// Info is a read-only snapshot of a namespace's identity and usage,
// mirroring §6's namespace_get_info/namespace_free_info pair (there is
// no separate free step in Go: Info is a plain value).
type Info struct {
	ID         string
	Name       string
	Dimension  int
	IndexType  index.Type
	VectorCount int64
	MaxVectors  int64
}

type entry struct {
	id    string
	cfg   Config
	coll  *collection.Collection
	mu    sync.Mutex // serializes quota check-reserve-insert in AddVector
	bytes int64
}

// Manager owns a set of named, isolated collections plus their quota
// bookkeeping. Each namespace's configuration is persisted to a SQLite
// table keyed by namespace id; vector data and byte usage are held in
// memory only.
type Manager struct {
	mu  sync.RWMutex
	db  *sql.DB
	log logging.Logger

	byName map[string]*entry
}

// NewManager opens (creating if absent) a SQLite-backed namespace store
// at dsn. Use ":memory:" for a purely in-process manager.
func NewManager(dsn string, log logging.Logger) (*Manager, error) {
	if log == nil {
		log = logging.Nop()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.New(errors.KindInternal, "namespace.NewManager", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS namespaces (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		dimension INTEGER NOT NULL,
		index_type INTEGER NOT NULL,
		max_vectors INTEGER NOT NULL,
		max_memory_bytes INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.New(errors.KindInternal, "namespace.NewManager", err)
	}

	m := &Manager{db: db, log: log, byName: make(map[string]*entry)}
	if err := m.loadExisting(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) loadExisting() error {
	rows, err := m.db.Query(`SELECT id, name, dimension, index_type, max_vectors, max_memory_bytes FROM namespaces`)
	if err != nil {
		return errors.New(errors.KindInternal, "namespace.loadExisting", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e entry
		var it int
		if err := rows.Scan(&e.id, &e.cfg.Name, &e.cfg.Dimension, &it, &e.cfg.MaxVectors, &e.cfg.MaxMemoryBytes); err != nil {
			return errors.New(errors.KindInternal, "namespace.loadExisting", err)
		}
		e.cfg.IndexType = index.Type(it)
		coll, err := collection.Open("", collection.Options{Dimension: e.cfg.Dimension, IndexType: e.cfg.IndexType})
		if err != nil {
			return errors.New(errors.KindInternal, "namespace.loadExisting", err)
		}
		e.coll = coll
		m.byName[e.cfg.Name] = &e
	}
	return rows.Err()
}

// Create registers a new namespace under cfg.Name, persisting its
// configuration, and returns its generated id (§6 namespace_create).
func (m *Manager) Create(cfg Config) (string, error) {
	if cfg.Name == "" || cfg.Dimension <= 0 {
		return "", errors.New(errors.KindInvalidArgument, "namespace.Create", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byName[cfg.Name]; exists {
		return "", errors.New(errors.KindInvalidArgument, "namespace.Create", nil)
	}

	coll, err := collection.Open("", collection.Options{Dimension: cfg.Dimension, IndexType: cfg.IndexType})
	if err != nil {
		return "", errors.New(errors.KindInternal, "namespace.Create", err)
	}

	id := uuid.NewString()
	_, err = m.db.Exec(
		`INSERT INTO namespaces (id, name, dimension, index_type, max_vectors, max_memory_bytes) VALUES (?, ?, ?, ?, ?, ?)`,
		id, cfg.Name, cfg.Dimension, int(cfg.IndexType), cfg.MaxVectors, cfg.MaxMemoryBytes,
	)
	if err != nil {
		return "", errors.New(errors.KindInternal, "namespace.Create", err)
	}

	m.byName[cfg.Name] = &entry{id: id, cfg: cfg, coll: coll}
	m.log.Info("namespace created", "name", cfg.Name, "id", id)
	return id, nil
}

// Exists reports whether name is registered (§6 namespace_exists).
func (m *Manager) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byName[name]
	return ok
}

// GetDB returns the namespace's isolated Collection (§6 namespace_get_db).
func (m *Manager) GetDB(name string) (*collection.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byName[name]
	if !ok {
		return nil, errors.New(errors.KindNotFound, "namespace.GetDB", nil)
	}
	return e.coll, nil
}

// Count returns the live vector count within name (§6 namespace_count).
func (m *Manager) Count(name string) (int, error) {
	m.mu.RLock()
	e, ok := m.byName[name]
	m.mu.RUnlock()
	if !ok {
		return 0, errors.New(errors.KindNotFound, "namespace.Count", nil)
	}
	return e.coll.LiveCount(), nil
}

// GetInfo returns a read-only snapshot of the namespace (§6
// namespace_get_info).
func (m *Manager) GetInfo(name string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byName[name]
	if !ok {
		return Info{}, errors.New(errors.KindNotFound, "namespace.GetInfo", nil)
	}
	return Info{
		ID:          e.id,
		Name:        e.cfg.Name,
		Dimension:   e.cfg.Dimension,
		IndexType:   e.cfg.IndexType,
		VectorCount: int64(e.coll.LiveCount()),
		MaxVectors:  e.cfg.MaxVectors,
	}, nil
}

// List returns every registered namespace name (§6 namespace_list).
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.byName))
	for name := range m.byName {
		names = append(names, name)
	}
	return names
}

// Delete removes a namespace and its collection (§6 namespace_delete).
// Idempotent: deleting an absent name is a no-op returning success.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byName[name]
	if !ok {
		return nil
	}
	if _, err := m.db.Exec(`DELETE FROM namespaces WHERE id = ?`, e.id); err != nil {
		return errors.New(errors.KindInternal, "namespace.Delete", err)
	}
	e.coll.Close()
	delete(m.byName, name)
	return nil
}

// AddVector inserts a vector into name's collection, enforcing the
// namespace's quota (§3 "Namespace... providing isolation and quotas" —
// enforcement is a supplemented feature, spec.md describes the quota
// fields but not their enforcement). Returns ResourceExhausted once the
// live vector count or estimated memory footprint would exceed the
// configured quota. The quota check, the insert, and the byte-usage
// update all happen under the namespace's own entry lock, so two
// concurrent calls on the same namespace cannot both pass the check and
// overshoot the quota (the prior read-check-reserve sequence released
// the lock between the check and the update, leaving a race window).
func (m *Manager) AddVector(name string, data []float32) (uint64, error) {
	m.mu.RLock()
	e, ok := m.byName[name]
	m.mu.RUnlock()
	if !ok {
		return 0, errors.New(errors.KindNotFound, "namespace.AddVector", nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.MaxVectors > 0 && int64(e.coll.LiveCount()) >= e.cfg.MaxVectors {
		return 0, errors.New(errors.KindResourceExhausted, "namespace.AddVector", nil)
	}
	estimatedBytes := int64(len(data)) * 4
	if e.cfg.MaxMemoryBytes > 0 && e.bytes+estimatedBytes > e.cfg.MaxMemoryBytes {
		return 0, errors.New(errors.KindResourceExhausted, "namespace.AddVector", nil)
	}

	id, err := e.coll.AddVector(data)
	if err != nil {
		return 0, err
	}
	e.bytes += estimatedBytes
	return id, nil
}

// Destroy closes every namespace's collection and the underlying SQLite
// handle. Safe to call on a nil Manager (§9 null-safety contract).
func (m *Manager) Destroy() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byName {
		e.coll.Close()
	}
	return m.db.Close()
}
