package table

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"darr/infra/memory"
	"darr/qsbr"
)

func newTest() (*qsbr.Reclaimer, *Table) {
	pool := memory.NewPool(func() *Entry { return &Entry{} })
	rec := qsbr.New(pool)
	return rec, New(rec, pool, 16)
}

func TestPutGetDelete(t *testing.T) {
	_, tbl := newTest()

	tbl.Put("alpha", []byte("1"))
	tbl.Put("beta", []byte("2"))

	if v, ok := tbl.Get("alpha"); !ok || string(v) != "1" {
		t.Fatalf("get alpha: %q %v", v, ok)
	}
	if tbl.Len() != 2 {
		t.Fatalf("len: got %d, want 2", tbl.Len())
	}

	tbl.Put("alpha", []byte("updated"))
	if v, _ := tbl.Get("alpha"); string(v) != "updated" {
		t.Fatalf("get after update: %q", v)
	}
	if tbl.Len() != 2 {
		t.Fatalf("len after update: got %d, want 2", tbl.Len())
	}

	if !tbl.Delete("beta") {
		t.Fatal("delete beta reported missing")
	}
	if _, ok := tbl.Get("beta"); ok {
		t.Fatal("beta still visible after delete")
	}
	if tbl.Delete("beta") {
		t.Fatal("double delete reported present")
	}
	if tbl.Len() != 1 {
		t.Fatalf("len after delete: got %d, want 1", tbl.Len())
	}
}

func TestMutationsRetireEntries(t *testing.T) {
	rec, tbl := newTest()

	tbl.Put("k", []byte("v1"))
	if n := rec.PendingGarbage(); n != 0 {
		t.Fatalf("fresh insert retired something: %d", n)
	}

	tbl.Put("k", []byte("v2")) // replaces
	tbl.Delete("k")            // unlinks
	if n := rec.PendingGarbage(); n != 2 {
		t.Fatalf("pending: got %d, want 2", n)
	}

	rec.GarbageCollect() // no readers registered
	if n := rec.PendingGarbage(); n != 0 {
		t.Fatalf("pending after collect: got %d, want 0", n)
	}
}

func TestWalkSeesLiveEntries(t *testing.T) {
	_, tbl := newTest()
	for i := 0; i < 40; i++ {
		tbl.Put(fmt.Sprintf("k%02d", i), []byte{byte(i)})
	}
	tbl.Delete("k00")
	tbl.Put("k01", []byte{99})

	seen := make(map[string]byte)
	tbl.Walk(func(k string, v []byte) bool {
		seen[k] = v[0]
		return true
	})
	if len(seen) != 39 {
		t.Fatalf("walked %d entries, want 39", len(seen))
	}
	if _, ok := seen["k00"]; ok {
		t.Fatal("walk saw deleted entry")
	}
	if seen["k01"] != 99 {
		t.Fatalf("walk saw stale value %d for k01", seen["k01"])
	}
}

// Readers hammer lookups under reader handles while the writer
// replaces values and collects; values are self-describing so any
// use-after-reclaim shows up as a torn read (or a race report).
func TestConcurrentReaders(t *testing.T) {
	rec, tbl := newTest()

	const keys = 64
	payload := func(gen int) []byte {
		b := make([]byte, 8)
		for i := range b {
			b[i] = byte(gen)
		}
		return b
	}
	for i := 0; i < keys; i++ {
		tbl.Put(fmt.Sprintf("key-%d", i), payload(1))
	}

	var running atomic.Bool
	running.Store(true)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(id)))
			h := rec.NewReader()
			defer h.Close()
			for running.Load() {
				key := fmt.Sprintf("key-%d", rng.Intn(keys))
				v, ok := tbl.Get(key)
				if !ok {
					t.Errorf("key %s missing", key)
					return
				}
				first := v[0]
				for _, b := range v {
					if b != first {
						t.Errorf("torn value for %s: % x", key, v)
						return
					}
				}
				h.OnQuiesce()
			}
		}(w)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	rng := rand.New(rand.NewSource(7))
	gen := 2
	for time.Now().Before(deadline) {
		tbl.Put(fmt.Sprintf("key-%d", rng.Intn(keys)), payload(gen))
		rec.GarbageCollect()
		gen++
		if gen > 250 {
			gen = 2
		}
	}
	running.Store(false)
	wg.Wait()

	rec.GarbageCollect()
	if n := rec.PendingGarbage(); n != 0 {
		t.Fatalf("garbage left: %d", n)
	}
}
