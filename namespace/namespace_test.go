package namespace

import (
	"sync"
	"testing"

	"github.com/gigavector/gigavector/errors"
	"github.com/gigavector/gigavector/index"
)

func mustManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(":memory:", nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestCreateAndGetDB(t *testing.T) {
	m := mustManager(t)
	defer m.Destroy()

	cfg := DefaultConfig()
	cfg.Name = "tenant-a"
	cfg.Dimension = 4
	if _, err := m.Create(cfg); err != nil {
		t.Fatalf("create: %v", err)
	}

	if !m.Exists("tenant-a") {
		t.Fatal("expected namespace to exist after create")
	}
	coll, err := m.GetDB("tenant-a")
	if err != nil {
		t.Fatalf("get db: %v", err)
	}
	if coll.Dimension() != 4 {
		t.Fatalf("expected dimension 4, got %d", coll.Dimension())
	}
}

func TestCreateDuplicateNameFails(t *testing.T) {
	m := mustManager(t)
	defer m.Destroy()

	cfg := Config{Name: "dup", Dimension: 2, IndexType: index.Flat}
	if _, err := m.Create(cfg); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Create(cfg); err == nil {
		t.Fatal("expected duplicate namespace create to fail")
	}
}

func TestQuotaEnforcement(t *testing.T) {
	m := mustManager(t)
	defer m.Destroy()

	cfg := Config{Name: "quota", Dimension: 2, IndexType: index.Flat, MaxVectors: 2}
	m.Create(cfg)

	if _, err := m.AddVector("quota", []float32{1, 2}); err != nil {
		t.Fatalf("add 1: %v", err)
	}
	if _, err := m.AddVector("quota", []float32{3, 4}); err != nil {
		t.Fatalf("add 2: %v", err)
	}
	_, err := m.AddVector("quota", []float32{5, 6})
	if errors.KindOf(err) != errors.KindResourceExhausted {
		t.Fatalf("expected ResourceExhausted at quota, got %v", err)
	}
}

// TestConcurrentAddVectorRespectsMemoryQuota fires many concurrent
// AddVector calls at a tight MaxMemoryBytes quota; the reservation must
// be atomic so the total committed bytes never exceeds the quota: exactly
// the 10 vectors that fit are inserted.
func TestConcurrentAddVectorRespectsMemoryQuota(t *testing.T) {
	m := mustManager(t)
	defer m.Destroy()

	const dim = 4
	const perVectorBytes = int64(dim * 4)
	const callers = 50
	cfg := Config{Name: "mem-quota", Dimension: dim, IndexType: index.Flat, MaxMemoryBytes: perVectorBytes * 10}
	m.Create(cfg)

	vec := make([]float32, dim)
	var wg sync.WaitGroup
	succeeded := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.AddVector("mem-quota", vec)
			succeeded[i] = err == nil
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range succeeded {
		if ok {
			count++
		}
	}
	if count != 10 {
		t.Fatalf("expected exactly 10 successful inserts at a 10-vector quota, got %d", count)
	}

	e, err := m.GetInfo("mem-quota")
	if err != nil {
		t.Fatalf("get info: %v", err)
	}
	if e.VectorCount != 10 {
		t.Fatalf("expected live count 10, got %d", e.VectorCount)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	m := mustManager(t)
	defer m.Destroy()

	cfg := Config{Name: "gone", Dimension: 2, IndexType: index.Flat}
	m.Create(cfg)

	if err := m.Delete("gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.Delete("gone"); err != nil {
		t.Fatalf("second delete should be a no-op success, got %v", err)
	}
	if m.Exists("gone") {
		t.Fatal("expected namespace to no longer exist")
	}
}

func TestGetDBOnUnknownNamespaceFails(t *testing.T) {
	m := mustManager(t)
	defer m.Destroy()

	_, err := m.GetDB("missing")
	if errors.KindOf(err) != errors.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestDestroyOnNilManagerIsSafe(t *testing.T) {
	var m *Manager
	if err := m.Destroy(); err != nil {
		t.Fatalf("expected nil-receiver Destroy to be a safe no-op, got %v", err)
	}
}
