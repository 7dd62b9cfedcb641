package qsbr

import "testing"

// recordingRecycler collects everything the reclaimer frees so tests
// can assert exactly when destruction happened.
type recordingRecycler struct {
	got []any
}

func (r *recordingRecycler) Reclaim(v any) {
	r.got = append(r.got, v)
}

func TestCollectNoReaders(t *testing.T) {
	rec := &recordingRecycler{}
	r := New(rec)

	if g := r.Generation(); g != 1 {
		t.Fatalf("initial generation: got %d, want 1", g)
	}

	a := "object-a"
	r.DestroyLater(&a)
	if n := r.PendingGarbage(); n != 1 {
		t.Fatalf("pending before collect: got %d, want 1", n)
	}

	r.GarbageCollect()

	if n := r.PendingGarbage(); n != 0 {
		t.Fatalf("pending after collect: got %d, want 0", n)
	}
	if len(rec.got) != 1 || rec.got[0] != &a {
		t.Fatalf("expected a to be reclaimed, got %v", rec.got)
	}
	if g := r.Generation(); g != 2 {
		t.Fatalf("generation after collect: got %d, want 2", g)
	}
}

func TestReaderHoldsBackCollection(t *testing.T) {
	rec := &recordingRecycler{}
	r := New(rec)

	reader := r.NewReader() // observes epoch 1
	defer reader.Close()

	b := "object-b"
	r.DestroyLater(&b) // tagged epoch 1

	r.GarbageCollect() // epoch advances to 2
	if n := r.PendingGarbage(); n != 1 {
		t.Fatalf("b collected while reader still at epoch 1 (pending=%d)", n)
	}
	if len(rec.got) != 0 {
		t.Fatalf("unexpected reclaim: %v", rec.got)
	}

	reader.OnQuiesce() // observes epoch 2

	r.GarbageCollect() // epoch advances to 3
	if n := r.PendingGarbage(); n != 0 {
		t.Fatalf("b not collected after reader quiesced (pending=%d)", n)
	}
	if len(rec.got) != 1 || rec.got[0] != &b {
		t.Fatalf("expected b to be reclaimed, got %v", rec.got)
	}
}

func TestLiveness(t *testing.T) {
	r := New(nil)
	reader := r.NewReader()
	defer reader.Close()

	for i := 0; i < 100; i++ {
		v := i
		r.DestroyLater(&v)
	}

	// Finite retirement stream + repeated quiesce/collect must drain
	// the queue.
	for i := 0; i < 3 && r.PendingGarbage() > 0; i++ {
		reader.OnQuiesce()
		r.GarbageCollect()
	}
	if n := r.PendingGarbage(); n != 0 {
		t.Fatalf("garbage never drained, pending=%d", n)
	}
}

func TestCloseUnblocksCollection(t *testing.T) {
	r := New(nil)

	stalled := r.NewReader() // observes epoch 1, never quiesces again
	live := r.NewReader()
	defer live.Close()

	v := 42
	r.DestroyLater(&v)

	live.OnQuiesce()
	r.GarbageCollect()
	if n := r.PendingGarbage(); n != 1 {
		t.Fatalf("stalled reader should hold garbage, pending=%d", n)
	}

	stalled.Close()
	live.OnQuiesce()
	r.GarbageCollect()
	if n := r.PendingGarbage(); n != 0 {
		t.Fatalf("deregistration should unblock collection, pending=%d", n)
	}
}

func TestNewReaderTakesInitialSnapshot(t *testing.T) {
	r := New(nil)

	// Burn a few generations first.
	for i := 0; i < 5; i++ {
		r.GarbageCollect()
	}

	reader := r.NewReader()
	defer reader.Close()
	if got, want := reader.observed(), r.Generation(); got != want {
		t.Fatalf("initial snapshot: got %d, want %d", got, want)
	}
}

func TestFreshReaderDoesNotDragMinimumBack(t *testing.T) {
	r := New(nil)

	live := r.NewReader() // observes epoch 1
	defer live.Close()

	v := "old"
	r.DestroyLater(&v) // tagged 1

	r.GarbageCollect() // held: live still at 1; epoch now 2
	live.OnQuiesce()   // observes 2

	// A handle registered now snapshots epoch 2, so it cannot make the
	// tag-1 garbage look reachable again.
	fresh := r.NewReader()
	defer fresh.Close()

	r.GarbageCollect()
	if n := r.PendingGarbage(); n != 0 {
		t.Fatalf("fresh idle reader blocked older garbage, pending=%d", n)
	}
}

func TestGenerationMonotonic(t *testing.T) {
	r := New(nil)
	prev := r.Generation()
	for i := 0; i < 50; i++ {
		r.GarbageCollect()
		if g := r.Generation(); g < prev {
			t.Fatalf("generation went backwards: %d -> %d", prev, g)
		} else {
			prev = g
		}
	}
}

func TestQuiesceIdempotent(t *testing.T) {
	r := New(nil)
	reader := r.NewReader()
	defer reader.Close()

	first := reader.observed()
	for i := 0; i < 10; i++ {
		reader.OnQuiesce()
		if got := reader.observed(); got != first {
			t.Fatalf("observed epoch moved without a writer advance: %d -> %d", first, got)
		}
	}
}

func TestCollectReturnsLag(t *testing.T) {
	r := New(nil)
	reader := r.NewReader() // observes epoch 1

	// Advance the writer three generations while the reader sleeps.
	r.GarbageCollect()
	r.GarbageCollect()
	if lag := r.GarbageCollect(); lag != 2 {
		t.Fatalf("lag: got %d, want 2", lag)
	}

	reader.OnQuiesce()
	if lag := r.GarbageCollect(); lag != 0 {
		t.Fatalf("lag after quiesce: got %d, want 0", lag)
	}
	reader.Close()
}

func TestTrimStopsAtFirstSurvivor(t *testing.T) {
	rec := &recordingRecycler{}
	r := New(rec)
	reader := r.NewReader()
	defer reader.Close()

	old := "old"
	r.DestroyLater(&old) // tagged 1

	reader.OnQuiesce()
	r.GarbageCollect() // epoch now 2

	fresh := "fresh"
	r.DestroyLater(&fresh) // tagged 2

	reader.OnQuiesce() // observes 2
	r.GarbageCollect()

	// Entry tagged 1 is strictly older than the reader's epoch and
	// goes; the entry tagged 2 is not provably safe yet and stays.
	if len(rec.got) != 1 || rec.got[0] != &old {
		t.Fatalf("expected only old reclaimed, got %v", rec.got)
	}
	if n := r.PendingGarbage(); n != 1 {
		t.Fatalf("pending: got %d, want 1", n)
	}
}
