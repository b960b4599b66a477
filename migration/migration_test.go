package migration

import (
	"math/rand"
	"testing"
	"time"

	"github.com/gigavector/gigavector/collection"
	"github.com/gigavector/gigavector/index"
)

func randEntries(n, dim int) []index.LiveEntry {
	r := rand.New(rand.NewSource(7))
	out := make([]index.LiveEntry, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		for d := range v {
			v[d] = r.Float32()
		}
		out[i] = index.LiveEntry{ID: uint64(i + 1), Vector: v}
	}
	return out
}

// TestScenarioS5 mirrors spec.md scenario S5: start over 100 random
// 4-dim vectors, wait, expect status COMPLETED, progress>=0.99,
// vectors_migrated=100; take_index returns non-nil then nil.
func TestScenarioS5(t *testing.T) {
	c, err := collection.Open("", collection.Options{Dimension: 4, IndexType: index.Flat})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data := randEntries(100, 4)

	m := Start(c, data, 4, index.HNSW, DefaultConfig())
	m.Wait()

	info := m.GetInfo()
	if info.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %v (err=%v)", info.Status, info.Err)
	}
	if info.Progress < 0.99 {
		t.Fatalf("expected progress >= 0.99, got %v", info.Progress)
	}
	if info.VectorsMigrated != 100 {
		t.Fatalf("expected vectors_migrated=100, got %d", info.VectorsMigrated)
	}

	idx, ok := m.TakeIndex()
	if !ok || idx == nil {
		t.Fatal("expected first TakeIndex to return a non-nil index")
	}
	idx2, ok2 := m.TakeIndex()
	if ok2 || idx2 != nil {
		t.Fatal("expected second TakeIndex to return (nil, false)")
	}
}

func TestCancelMidflight(t *testing.T) {
	c, _ := collection.Open("", collection.Options{Dimension: 4, IndexType: index.Flat})
	data := randEntries(5000, 4)

	cfg := DefaultConfig()
	cfg.ChunkSize = 10

	m := Start(c, data, 4, index.Flat, cfg)
	time.Sleep(time.Millisecond)
	m.Cancel()
	m.Wait()

	info := m.GetInfo()
	if info.Status != StatusCancelled && info.Status != StatusCompleted {
		t.Fatalf("expected CANCELLED (or a fast COMPLETED race), got %v", info.Status)
	}
}

func TestCancelAfterCompletionIsNoOp(t *testing.T) {
	c, _ := collection.Open("", collection.Options{Dimension: 2, IndexType: index.Flat})
	data := randEntries(3, 2)

	m := Start(c, data, 2, index.Flat, DefaultConfig())
	m.Wait()

	if m.GetInfo().Status != StatusCompleted {
		t.Fatalf("expected COMPLETED before testing post-completion cancel")
	}
	m.Cancel() // must be a safe no-op
	if m.GetInfo().Status != StatusCompleted {
		t.Fatal("cancel after completion should not change status")
	}
}

func TestDestroyOnNilMigrationIsSafe(t *testing.T) {
	var m *Migration
	m.Destroy()
	m.Cancel()
	m.Wait()
	if _, ok := m.TakeIndex(); ok {
		t.Fatal("nil migration TakeIndex should report false")
	}
}
