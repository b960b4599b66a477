package vacuum

import (
	"testing"

	"github.com/gigavector/gigavector/collection"
	"github.com/gigavector/gigavector/errors"
	"github.com/gigavector/gigavector/index"
	"github.com/gigavector/gigavector/kernel"
)

// TestScenarioS6 mirrors spec.md scenario S6: add 4 vectors, delete ids 1
// and 3, configure min_deleted_count=1, run() → fragmentation falls to 0,
// subsequent search never returns ids 1 or 3.
func TestScenarioS6(t *testing.T) {
	c, err := collection.Open("", collection.Options{Dimension: 2, IndexType: index.Flat})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var ids []uint64
	for i := 0; i < 4; i++ {
		id, err := c.AddVector([]float32{float32(i), 0})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		ids = append(ids, id)
	}

	if err := c.DeleteVectorByIndex(ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.DeleteVectorByIndex(ids[2]); err != nil {
		t.Fatalf("delete: %v", err)
	}

	cfg := DefaultConfig()
	cfg.MinDeletedCount = 1
	mgr := New(c, cfg)

	stats, err := mgr.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.State != StateCompleted {
		t.Fatalf("expected COMPLETED, got %v (err=%v)", stats.State, stats.Err)
	}
	if c.FragmentationRatio() != 0 {
		t.Fatalf("expected fragmentation to fall to 0, got %v", c.FragmentationRatio())
	}

	results, err := c.Search([]float32{0, 0}, 10, kernel.Euclidean)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range results {
		if r.ID == ids[0] || r.ID == ids[2] {
			t.Fatalf("deleted id %d should never be returned after vacuum", r.ID)
		}
	}
}

func TestRunBelowThresholdStaysIdle(t *testing.T) {
	c, _ := collection.Open("", collection.Options{Dimension: 2, IndexType: index.Flat})
	id, _ := c.AddVector([]float32{1, 1})
	c.DeleteVectorByIndex(id)

	cfg := DefaultConfig()
	cfg.MinDeletedCount = 100
	mgr := New(c, cfg)

	stats, err := mgr.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.State != StateIdle {
		t.Fatalf("expected IDLE when below threshold, got %v", stats.State)
	}
}

func TestStartStopAutoIsIdempotent(t *testing.T) {
	c, _ := collection.Open("", collection.Options{Dimension: 2, IndexType: index.Flat})
	mgr := New(c, DefaultConfig())

	mgr.StartAuto()
	mgr.StartAuto() // idempotent
	mgr.StopAuto()
	mgr.StopAuto() // idempotent
}

func TestRunReportsBusyOnReentry(t *testing.T) {
	c, _ := collection.Open("", collection.Options{Dimension: 2, IndexType: index.Flat})
	mgr := New(c, DefaultConfig())

	mgr.mu.Lock()
	mgr.running = true
	mgr.mu.Unlock()

	_, err := mgr.Run()
	if errors.KindOf(err) != errors.KindBusy {
		t.Fatalf("expected KindBusy on reentrant Run, got %v", err)
	}
}

func TestDestroyOnNilManagerIsSafe(t *testing.T) {
	var mgr *Manager
	if err := mgr.Destroy(); err != nil {
		t.Fatalf("expected nil-receiver Destroy to be a safe no-op, got %v", err)
	}
}
