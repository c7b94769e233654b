package buffer

import (
	"testing"

	"github.com/duskdb/duskdb/internal/page"
)

func newMgr(t *testing.T) *page.Manager {
	t.Helper()
	mgr, err := page.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open page manager: %v", err)
	}
	return mgr
}

// TestLRUEviction_S5 reproduces scenario S5: capacity 3, access
// sequence 0,1,0,2,3 -> {0,2,3} cached, 1 evicted.
func TestLRUEviction_S5(t *testing.T) {
	mgr := newMgr(t)
	for i := 0; i < 4; i++ {
		if _, err := mgr.Allocate(); err != nil {
			t.Fatalf("allocate: %v", err)
		}
	}
	pool := New(mgr, 3, PolicyLRU)

	for _, id := range []page.ID{0, 1, 0, 2, 3} {
		if _, err := pool.Get(id); err != nil {
			t.Fatalf("get %d: %v", id, err)
		}
	}

	st := pool.Stats()
	if st.Size != 3 {
		t.Fatalf("expected 3 cached pages, got %d", st.Size)
	}
	for _, want := range []page.ID{0, 2, 3} {
		if _, ok := pool.frames[want]; !ok {
			t.Errorf("expected page %d to remain cached", want)
		}
	}
	if _, ok := pool.frames[1]; ok {
		t.Errorf("expected page 1 to be evicted")
	}
}

func TestFIFOEviction_NoReorderOnHit(t *testing.T) {
	mgr := newMgr(t)
	for i := 0; i < 4; i++ {
		if _, err := mgr.Allocate(); err != nil {
			t.Fatalf("allocate: %v", err)
		}
	}
	pool := New(mgr, 3, PolicyFIFO)
	for _, id := range []page.ID{0, 1, 2} {
		if _, err := pool.Get(id); err != nil {
			t.Fatal(err)
		}
	}
	// Hit on 0 must not save it from FIFO eviction.
	if _, err := pool.Get(0); err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Get(3); err != nil {
		t.Fatal(err)
	}
	if _, ok := pool.frames[0]; ok {
		t.Errorf("FIFO: expected page 0 evicted despite recent hit")
	}
	for _, want := range []page.ID{1, 2, 3} {
		if _, ok := pool.frames[want]; !ok {
			t.Errorf("expected page %d cached", want)
		}
	}
}

func TestEvictionWritesDirtyVictim(t *testing.T) {
	mgr := newMgr(t)
	for i := 0; i < 4; i++ {
		if _, err := mgr.Allocate(); err != nil {
			t.Fatal(err)
		}
	}
	pool := New(mgr, 2, PolicyLRU)
	p0, _ := pool.Get(0)
	p0.PutInt32(0, 42)
	if _, err := pool.Get(1); err != nil {
		t.Fatal(err)
	}
	// Evicts page 0 (LRU end); it is dirty so it must be written first.
	if _, err := pool.Get(2); err != nil {
		t.Fatal(err)
	}
	reread, err := mgr.Read(0)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := reread.Int32(0)
	if v != 42 {
		t.Fatalf("expected dirty victim flushed to disk, got %d", v)
	}
}

func TestCapacityZeroDisablesEviction(t *testing.T) {
	mgr := newMgr(t)
	for i := 0; i < 10; i++ {
		if _, err := mgr.Allocate(); err != nil {
			t.Fatal(err)
		}
	}
	pool := New(mgr, 0, PolicyLRU)
	for id := page.ID(0); id < 10; id++ {
		if _, err := pool.Get(id); err != nil {
			t.Fatal(err)
		}
	}
	if st := pool.Stats(); st.Size != 10 {
		t.Fatalf("expected no eviction with capacity 0, got size %d", st.Size)
	}
}

func TestFlushAllMakesDiskMatchCache(t *testing.T) {
	mgr := newMgr(t)
	mgr.Allocate()
	pool := New(mgr, 0, PolicyLRU)
	p, _ := pool.Get(0)
	p.PutInt32(4, 7)
	if err := pool.FlushAll(); err != nil {
		t.Fatal(err)
	}
	if p.Dirty() {
		t.Fatalf("expected page clean after FlushAll")
	}
	onDisk, _ := mgr.Read(0)
	v, _ := onDisk.Int32(4)
	if v != 7 {
		t.Fatalf("disk image mismatch after FlushAll: got %d", v)
	}
}
