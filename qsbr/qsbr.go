package qsbr

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// noReaders is the minimum-epoch sentinel when the registry is empty.
// Larger than any real epoch, so a writer with no readers collects
// everything immediately.
const noReaders = ^uint64(0)

// Recycler receives objects once they are provably unreachable by any
// reader. Implementations typically return them to a pool. It is
// intentionally type-erased; the writer retires heterogeneous objects
// through the same queue.
type Recycler interface {
	Reclaim(any)
}

// trash is one deferred-destruction record. Entries are appended by
// the single writer in retirement order, so their epoch tags form a
// non-decreasing sequence; trimming relies on that to stop at the
// first entry too new to collect.
type trash struct {
	epoch uint64
	item  any
}

// Reclaimer coordinates one writer goroutine and any number of reader
// goroutines. The writer calls DestroyLater instead of dropping
// replaced objects, and GarbageCollect on whatever cadence it likes.
// Readers interact only with their own Reader handles.
//
// All methods except NewReader, and Reader.Close are writer-only.
// Violating the single-writer contract is a programming error; it is
// not detected or recovered.
type Reclaimer struct {
	epoch atomic.Uint64

	mu      sync.Mutex
	readers []*Reader

	// garbage is owned by the writer goroutine. Readers never touch
	// it, so it needs no lock. pending mirrors len(garbage) for
	// observers on other goroutines.
	garbage  []trash
	pending  atomic.Int64
	recycler Recycler
}

// New returns a Reclaimer with the epoch counter at its initial value
// of 1. recycler may be nil, in which case collected items are simply
// released (the runtime frees them once the queue drops its
// reference).
func New(recycler Recycler) *Reclaimer {
	r := &Reclaimer{recycler: recycler}
	r.epoch.Store(1)
	return r
}

// NewReader registers the calling goroutine as a reader and returns
// its handle. The handle quiesces once immediately so a reader that
// never does anything else does not hold back collection forever.
func (r *Reclaimer) NewReader() *Reader {
	h := &Reader{global: &r.epoch, owner: r}
	h.OnQuiesce()
	r.mu.Lock()
	r.readers = append(r.readers, h)
	r.mu.Unlock()
	return h
}

func (r *Reclaimer) dropReader(h *Reader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, got := range r.readers {
		if got == h {
			// order does not matter: swap the tail in.
			last := len(r.readers) - 1
			r.readers[i] = r.readers[last]
			r.readers[last] = nil
			r.readers = r.readers[:last]
			return
		}
	}
}

// DestroyLater takes ownership of item and schedules its destruction
// for once no reader can still hold a reference to it. Tags with the
// current, not-yet-advanced epoch. Writer goroutine only; never
// blocks on readers.
func (r *Reclaimer) DestroyLater(item any) {
	r.garbage = append(r.garbage, trash{epoch: r.epoch.Load(), item: item})
	r.pending.Add(1)
}

// GarbageCollect advances the epoch and frees every retired object
// whose epoch tag precedes the oldest epoch still visible to a
// reader. It returns the number of generations the collector trailed
// behind the global epoch this call (0 when fully caught up or when
// no readers are registered); callers use that only for backpressure
// heuristics.
func (r *Reclaimer) GarbageCollect() uint64 {
	r.mu.Lock()
	min := r.minReaderEpochLocked()
	global := r.epoch.Add(1) - 1 // value before the advance
	r.mu.Unlock()

	if min == noReaders {
		// No readers: everything retired so far (tag <= global)
		// is already safe.
		r.trim(global + 1)
		return 0
	}
	if min > global {
		// A reader cannot observe an epoch the writer has not
		// produced. Continuing would risk a use-after-free.
		panic(fmt.Sprintf("qsbr: reader epoch %d ahead of global epoch %d", min, global))
	}
	r.trim(min)
	return global - min
}

// minReaderEpochLocked scans the registry for the oldest last-quiesced
// epoch. Caller holds r.mu, so membership cannot change mid-scan.
func (r *Reclaimer) minReaderEpochLocked() uint64 {
	min := uint64(noReaders)
	for _, h := range r.readers {
		if e := h.observed(); e < min {
			min = e
		}
	}
	return min
}

// trim destroys queued entries tagged strictly before bound, oldest
// first, stopping at the first survivor. Tags are non-decreasing, so
// the scan is O(entries collected), not O(entries pending).
func (r *Reclaimer) trim(bound uint64) {
	n := 0
	for ; n < len(r.garbage); n++ {
		if r.garbage[n].epoch >= bound {
			break
		}
		if r.recycler != nil {
			r.recycler.Reclaim(r.garbage[n].item)
		}
		r.garbage[n].item = nil
	}
	if n > 0 {
		r.garbage = append(r.garbage[:0], r.garbage[n:]...)
		r.pending.Add(int64(-n))
	}
}

// PendingGarbage reports how many retired objects await destruction.
// Observability, not correctness.
func (r *Reclaimer) PendingGarbage() int {
	return int(r.pending.Load())
}

// Generation returns the current value of the global epoch counter.
func (r *Reclaimer) Generation() uint64 {
	return r.epoch.Load()
}
