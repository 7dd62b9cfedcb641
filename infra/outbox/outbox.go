// Package outbox persists change events until the publisher has
// pushed them downstream. Events are pending until marked sent, and
// deleted once acked, so a crash between mutation and publish never
// loses an event (at-least-once).
package outbox

import (
	"encoding/binary"
	"errors"

	"github.com/cockroachdb/pebble"

	"darr/infra/codec"
)

type State uint8

const (
	StateNew State = iota
	StateSent
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	default:
		return "UNKNOWN"
	}
}

var ErrNotFound = errors.New("outbox: event not found")

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // we WANT durability
	})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Append stores a new pending event keyed by its sequence number.
func (o *Outbox) Append(rec *codec.Record) error {
	return o.db.Set(keyFor(rec.Seq), encodeEvent(StateNew, rec), pebble.Sync)
}

// MarkSent flips the event to SENT before the publish attempt, so a
// crash mid-publish resends rather than drops.
func (o *Outbox) MarkSent(seq uint64) error {
	val, closer, err := o.db.Get(keyFor(seq))
	if err == pebble.ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	_, rec, err := decodeEvent(val)
	closer.Close()
	if err != nil {
		return err
	}
	return o.db.Set(keyFor(seq), encodeEvent(StateSent, rec), pebble.Sync)
}

// MarkAcked removes the event once the broker confirmed it.
func (o *Outbox) MarkAcked(seq uint64) error {
	return o.db.Delete(keyFor(seq), pebble.Sync)
}

// ScanPending iterates every unacked event in sequence order. SENT
// events are included: an unacked send is retried.
func (o *Outbox) ScanPending(fn func(rec *codec.Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("event/"),
		UpperBound: []byte("event0"), // "event/" + 1 on the last prefix byte
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		_, rec, err := decodeEvent(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Pending counts unacked events; observability only.
func (o *Outbox) Pending() (int, error) {
	n := 0
	err := o.ScanPending(func(*codec.Record) error { n++; return nil })
	return n, err
}

// -------------------- Encoding --------------------

// value layout: [state:1][codec frame]

func encodeEvent(s State, rec *codec.Record) []byte {
	frame := codec.Encode(rec)
	out := make([]byte, 0, 1+len(frame))
	out = append(out, byte(s))
	return append(out, frame...)
}

func decodeEvent(val []byte) (State, *codec.Record, error) {
	if len(val) < 1 {
		return 0, nil, codec.ErrCorruptRecord
	}
	rec, err := codec.Decode(val[1:])
	if err != nil {
		return 0, nil, err
	}
	return State(val[0]), rec, nil
}

func keyFor(seq uint64) []byte {
	key := make([]byte, 6, 6+8)
	copy(key, "event/")
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}
