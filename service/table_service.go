package service

import (
	"time"

	"darr/domain/table"
	"darr/infra/codec"
	"darr/infra/outbox"
	"darr/infra/sequence"
	"darr/infra/wal"
	"darr/qsbr"
	"darr/stats"
)

/*
TableService is the ONLY write entry point into the system.

All coordination between:
- domain (table)
- reclamation (qsbr)
- infra (wal, outbox, sequence)
- stats
happens here.
*/

type TableService struct {
	tbl *table.Table
	rec *qsbr.Reclaimer
	wal *wal.WAL
	out *outbox.Outbox
	seq *sequence.Sequencer

	puts        *stats.Counter
	deletes     *stats.Counter
	reads       *stats.Counter
	pending     *stats.Gauge
	tableSize   *stats.Gauge
	collectTime *stats.Timing
}

// NewTableService wires all dependencies.
// No globals. No magic.
func NewTableService(
	tbl *table.Table,
	rec *qsbr.Reclaimer,
	w *wal.WAL,
	out *outbox.Outbox,
	seq *sequence.Sequencer,
	reg *stats.Registry,
) *TableService {
	return &TableService{
		tbl:         tbl,
		rec:         rec,
		wal:         w,
		out:         out,
		seq:         seq,
		puts:        reg.NewCounter("mutations#op:put"),
		deletes:     reg.NewCounter("mutations#op:delete"),
		reads:       reg.NewCounter("reads"),
		pending:     reg.NewGauge("pending_garbage"),
		tableSize:   reg.NewGauge("table_size"),
		collectTime: reg.NewTiming("collect_time"),
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands (writer goroutine only)
// ──────────────────────────────────────────────────────────
//

// Put journals and applies one write. It returns the assigned
// sequence number.
func (s *TableService) Put(key string, value []byte) (uint64, error) {
	rec := &codec.Record{
		Seq:   s.seq.Next(),
		Time:  time.Now().UnixNano(),
		Op:    codec.OpPut,
		Key:   key,
		Value: value,
	}

	// 1. Journal the intent; a write we cannot journal is refused.
	if err := s.wal.Append(rec); err != nil {
		return 0, err
	}

	// 2. Apply; the replaced entry goes to the reclaimer, not free().
	s.tbl.Put(key, value)

	// 3. Queue the change event for downstream consumers.
	if err := s.out.Append(rec); err != nil {
		return rec.Seq, err
	}

	s.puts.Inc()
	s.tableSize.Set(uint64(s.tbl.Len()))
	return rec.Seq, nil
}

// Delete journals and applies one removal.
func (s *TableService) Delete(key string) (uint64, error) {
	rec := &codec.Record{
		Seq:  s.seq.Next(),
		Time: time.Now().UnixNano(),
		Op:   codec.OpDelete,
		Key:  key,
	}

	if err := s.wal.Append(rec); err != nil {
		return 0, err
	}
	s.tbl.Delete(key)
	if err := s.out.Append(rec); err != nil {
		return rec.Seq, err
	}

	s.deletes.Inc()
	s.tableSize.Set(uint64(s.tbl.Len()))
	return rec.Seq, nil
}

// Collect runs one reclamation pass. Cadence is the caller's policy:
// after every mutation, or on a timer.
func (s *TableService) Collect() uint64 {
	start := time.Now()
	lag := s.rec.GarbageCollect()
	s.collectTime.Add(time.Since(start))
	s.pending.Set(uint64(s.rec.PendingGarbage()))
	return lag
}

//
// ──────────────────────────────────────────────────────────
// Queries (any goroutine)
// ──────────────────────────────────────────────────────────
//

// Get reads the current value for key under a short-lived reader
// handle and returns a private copy.
func (s *TableService) Get(key string) ([]byte, bool) {
	h := s.rec.NewReader()
	defer h.Close()

	s.reads.Inc()
	v, ok := s.tbl.Get(key)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// EntryView is a detached copy of one table entry.
type EntryView struct {
	Key   string
	Value []byte
}

// Snapshot returns a consistent-enough view of all live entries:
// every entry that existed for the whole walk is included.
func (s *TableService) Snapshot() []EntryView {
	h := s.rec.NewReader()
	defer h.Close()

	out := make([]EntryView, 0, s.tbl.Len())
	s.tbl.Walk(func(k string, v []byte) bool {
		out = append(out, EntryView{Key: k, Value: append([]byte(nil), v...)})
		return true
	})
	return out
}

// PendingGarbage, Generation and Len expose observability for the
// admin surface.
func (s *TableService) PendingGarbage() int { return s.rec.PendingGarbage() }

func (s *TableService) Generation() uint64 { return s.rec.Generation() }

func (s *TableService) Len() int { return s.tbl.Len() }

// Close releases the stat handles; their undrained values flush with
// the next publish.
func (s *TableService) Close() {
	s.puts.Close()
	s.deletes.Close()
	s.reads.Close()
	s.pending.Close()
	s.tableSize.Close()
	s.collectTime.Close()
}
