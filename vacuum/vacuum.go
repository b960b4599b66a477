// Package vacuum implements the background compaction state machine that
// reclaims space from tombstoned records and may rebuild the active index
// (§4.5 "Vacuum manager"). The gating shape — idle by default, a threshold
// check, interruptible only at safe boundaries, hot-swap under lock — follows the
// CompactionManager pattern in the amanmcp example repo's
// internal/daemon/compaction.go, adapted to GigaVector's collection and
// index types.
package vacuum

import (
	"sync"
	"time"

	"github.com/gigavector/gigavector/collection"
	"github.com/gigavector/gigavector/errors"
	"github.com/gigavector/gigavector/logging"
	"github.com/google/uuid"
)

// State names a vacuum state machine state (§4.5).
type State int

const (
	StateIdle State = iota
	StateScanning
	StateCompacting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateScanning:
		return "SCANNING"
	case StateCompacting:
		return "COMPACTING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Config carries the vacuum manager's tunables (§4.5).
type Config struct {
	MinDeletedCount       int
	BatchSize             int
	Priority              int
	IntervalSec           int
	MinFragmentationRatio float64
	Logger                logging.Logger
}

// DefaultConfig returns spec.md §4.5's stated defaults, with
// MinFragmentationRatio at the suggested 0.2.
func DefaultConfig() Config {
	return Config{
		MinDeletedCount:       100,
		BatchSize:             1000,
		Priority:              0,
		IntervalSec:           600,
		MinFragmentationRatio: 0.2,
		Logger:                logging.Nop(),
	}
}

// Stats reports the outcome of the most recent run.
type Stats struct {
	RunID            string
	State            State
	FragmentationRatio float64
	Rebuilt          bool
	Err              error
}

// Manager drives the vacuum state machine for a single collection.
// Manual runs go through Run(); background runs go through StartAuto.
type Manager struct {
	mu     sync.Mutex
	coll   *collection.Collection
	cfg    Config
	log    logging.Logger
	stats  Stats
	state  State

	autoStop chan struct{}
	autoDone chan struct{}
	running  bool
}

// New creates a Manager for coll. A zero Config is replaced with
// DefaultConfig.
func New(coll *collection.Collection, cfg Config) *Manager {
	if cfg.BatchSize == 0 && cfg.IntervalSec == 0 && cfg.MinDeletedCount == 0 {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Manager{coll: coll, cfg: cfg, log: cfg.Logger, state: StateIdle}
}

// State reports the manager's current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats reports the outcome of the most recently completed or failed run.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Run executes one IDLE→SCANNING→COMPACTING→COMPLETED/FAILED pass
// synchronously (§4.5). It reports KindBusy if a run is already in
// progress, leaving the prior run's Stats untouched (§7: Busy is the
// error kind for "migration/vacuum already running").
func (m *Manager) Run() (Stats, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return Stats{}, errors.New(errors.KindBusy, "vacuum.Run", nil)
	}
	m.running = true
	m.state = StateScanning
	m.mu.Unlock()

	runID := uuid.NewString()
	m.log.Info("vacuum scanning", "run_id", runID)

	fragmentation := m.coll.FragmentationRatio()
	deleted := m.coll.DeletedCount()

	if deleted < m.cfg.MinDeletedCount {
		m.finish(Stats{RunID: runID, State: StateIdle, FragmentationRatio: fragmentation})
		return m.Stats(), nil
	}

	m.mu.Lock()
	m.state = StateCompacting
	m.mu.Unlock()

	rebuild := fragmentation > m.cfg.MinFragmentationRatio
	m.log.Info("vacuum compacting", "run_id", runID, "fragmentation", fragmentation, "rebuild", rebuild)

	if err := m.coll.CompactTombstones(rebuild, m.cfg.BatchSize); err != nil {
		m.log.Error("vacuum failed", "run_id", runID, "error", err)
		m.finish(Stats{RunID: runID, State: StateFailed, FragmentationRatio: fragmentation, Err: err})
		return m.Stats(), nil
	}

	m.log.Info("vacuum completed", "run_id", runID)
	m.finish(Stats{RunID: runID, State: StateCompleted, FragmentationRatio: m.coll.FragmentationRatio(), Rebuilt: rebuild})
	return m.Stats(), nil
}

func (m *Manager) finish(s Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = s
	m.state = StateIdle
	m.running = false
}

// StartAuto spawns a background goroutine that calls Run every
// interval_sec. Idempotent: calling it while already running is a no-op.
func (m *Manager) StartAuto() {
	m.mu.Lock()
	if m.autoStop != nil {
		m.mu.Unlock()
		return
	}
	m.autoStop = make(chan struct{})
	m.autoDone = make(chan struct{})
	stop := m.autoStop
	done := m.autoDone
	interval := time.Duration(m.cfg.IntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, err := m.Run(); err != nil {
					m.log.Error("vacuum auto run skipped", "error", err)
				}
			}
		}
	}()
}

// StopAuto signals the background task to exit at its next wakeup.
// Idempotent: calling it when no auto task is running is a no-op (§4.5
// honors stop_auto "at the next tick, never mid-pass").
func (m *Manager) StopAuto() {
	m.mu.Lock()
	stop := m.autoStop
	done := m.autoDone
	m.autoStop = nil
	m.autoDone = nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Destroy stops any running auto task and releases the manager. Safe to
// call on a nil Manager.
func (m *Manager) Destroy() error {
	if m == nil {
		return nil
	}
	m.StopAuto()
	return nil
}
