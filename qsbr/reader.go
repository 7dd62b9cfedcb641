package qsbr

import "sync/atomic"

// Reader is a per-thread handle into the reclamation scheme.
//
// The owning goroutine calls OnQuiesce whenever it holds no references
// to shared data protected by the reclaimer, typically once per unit
// of work. The handle stores only the epoch value at the last safe
// point; it does not track whether the reader is currently inside a
// critical section, because the collector needs only a lower bound on
// how old a reference the reader might still hold.
type Reader struct {
	local  atomic.Uint64
	global *atomic.Uint64
	owner  *Reclaimer

	// pad the record toward a cache line so handles registered
	// back-to-back do not false-share. Layout hint only.
	_ [32]byte
}

// OnQuiesce records that the reader currently holds no protected
// references. Single atomic load + store; owning goroutine only.
func (h *Reader) OnQuiesce() {
	h.local.Store(h.global.Load())
}

// observed returns the epoch of the last quiesce. Read by the
// collector during GarbageCollect, never written by it.
func (h *Reader) observed() uint64 {
	return h.local.Load()
}

// Close deregisters the handle. The handle must not be used after
// Close returns.
func (h *Reader) Close() {
	h.owner.dropReader(h)
}
