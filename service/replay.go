package service

import (
	"log"

	"darr/domain/table"
	"darr/infra/codec"
	"darr/infra/sequence"
	"darr/infra/wal"
)

// ReplayFromWAL rebuilds the table from the journal and resumes the
// sequencer past the last journaled mutation. Runs before any reader
// or the gRPC listener starts, so the table writes here are still
// single-threaded.
func ReplayFromWAL(
	dir string,
	tbl *table.Table,
	seq *sequence.Sequencer,
) error {
	count := 0
	last, err := wal.Replay(dir, func(rec *codec.Record) error {
		switch rec.Op {
		case codec.OpPut:
			tbl.Put(rec.Key, rec.Value)
		case codec.OpDelete:
			tbl.Delete(rec.Key)
		default:
			log.Printf("[replay] skipping unknown op %d at seq %d", rec.Op, rec.Seq)
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}

	seq.Reset(last)
	if count > 0 {
		log.Printf("[replay] applied %d records, resuming at seq %d", count, last)
	}
	return nil
}
