package table

import (
	"sync/atomic"

	"darr/infra/memory"
	"darr/qsbr"
)

// Entry is one published key/value node in a bucket chain. Key and
// Value are written only before publication; next is atomic because
// the writer re-links chains while readers traverse them.
type Entry struct {
	Key   string
	Value []byte
	next  atomic.Pointer[Entry]
}

// Table is a fixed-bucket hash table. All mutating methods are
// writer-goroutine-only; Get and Walk may run concurrently from any
// goroutine holding a registered qsbr reader handle.
type Table struct {
	buckets []atomic.Pointer[Entry]
	mask    uint64
	size    atomic.Int64

	rec  *qsbr.Reclaimer
	pool *memory.Pool[Entry]
}

// New builds a table with the given power-of-two bucket count.
// pool may be nil; entries are then heap-allocated and left to the
// runtime once reclaimed.
func New(rec *qsbr.Reclaimer, pool *memory.Pool[Entry], buckets uint64) *Table {
	if buckets&(buckets-1) != 0 {
		panic("table: bucket count must be power of two")
	}
	return &Table{
		buckets: make([]atomic.Pointer[Entry], buckets),
		mask:    buckets - 1,
		rec:     rec,
		pool:    pool,
	}
}

// Get returns the current value for key. The caller must hold a
// reader handle and treat the returned slice as read-only; it stays
// valid until the caller's next quiesce.
func (t *Table) Get(key string) ([]byte, bool) {
	for e := t.buckets[t.index(key)].Load(); e != nil; e = e.next.Load() {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Walk visits every entry until fn returns false. Same reader
// contract as Get. Entries inserted mid-walk may or may not be seen.
func (t *Table) Walk(fn func(key string, value []byte) bool) {
	for i := range t.buckets {
		for e := t.buckets[i].Load(); e != nil; e = e.next.Load() {
			if !fn(e.Key, e.Value) {
				return
			}
		}
	}
}

// Put publishes a new value for key. The previous entry, if any, is
// unlinked and retired. The new entry is linked in before the old one
// is removed, so concurrent readers never miss the key.
func (t *Table) Put(key string, value []byte) {
	e := t.alloc()
	e.Key = key
	e.Value = append(e.Value[:0], value...)

	head := &t.buckets[t.index(key)]
	e.next.Store(head.Load())
	head.Store(e)

	// Readers reaching the bucket now see the new entry first; any
	// older duplicate further down can go.
	if old := t.unlink(head, key, e); old != nil {
		t.rec.DestroyLater(old)
	} else {
		t.size.Add(1)
	}
}

// Delete unlinks key and retires its entry. Reports whether the key
// was present.
func (t *Table) Delete(key string) bool {
	head := &t.buckets[t.index(key)]
	old := t.unlink(head, key, nil)
	if old == nil {
		return false
	}
	t.rec.DestroyLater(old)
	t.size.Add(-1)
	return true
}

// Len reports the number of live entries; observability only.
func (t *Table) Len() int {
	return int(t.size.Load())
}

// unlink removes the first chain node matching key, skipping the
// node passed as keep. Readers mid-traversal keep following the
// removed node's next pointer, which stays intact until the node is
// reclaimed.
func (t *Table) unlink(head *atomic.Pointer[Entry], key string, keep *Entry) *Entry {
	var prev *Entry
	for e := head.Load(); e != nil; e = e.next.Load() {
		if e != keep && e.Key == key {
			if prev == nil {
				head.Store(e.next.Load())
			} else {
				prev.next.Store(e.next.Load())
			}
			return e
		}
		prev = e
	}
	return nil
}

func (t *Table) alloc() *Entry {
	if t.pool != nil {
		return t.pool.Get()
	}
	return &Entry{}
}

func (t *Table) index(key string) uint64 {
	return fnv64a(key) & t.mask
}

// fnv64a avoids the allocation of hash/fnv's New64a on the read path.
func fnv64a(s string) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return h
}
