package wal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"darr/infra/codec"
)

type ReplayHandler func(*codec.Record) error

// Replay walks every segment in order and hands each record to fn.
// Sequence numbers must be strictly increasing across the whole
// journal; the last one seen is returned so the sequencer can resume
// from it.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := segmentFiles(dir)
	if err != nil {
		return 0, err
	}

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return lastSeq, err
		}

		for {
			rec, err := readFrame(f)
			if err == io.EOF {
				break
			}
			if err != nil {
				_ = f.Close()
				return lastSeq, fmt.Errorf("wal: %s: %w", path, err)
			}

			if rec.Seq <= lastSeq {
				_ = f.Close()
				return lastSeq, fmt.Errorf("wal: non-monotonic seq %d after %d", rec.Seq, lastSeq)
			}
			lastSeq = rec.Seq

			if err := fn(rec); err != nil {
				_ = f.Close()
				return lastSeq, err
			}
		}
		_ = f.Close()
	}
	return lastSeq, nil
}

// readFrame reads one codec frame: the 8-byte header gives the body
// length, the codec validates the CRC.
func readFrame(r io.Reader) (*codec.Record, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			// Torn tail write; treat as end of journal.
			return nil, io.EOF
		}
		return nil, err
	}

	bodyLen := binary.LittleEndian.Uint32(header[:4])
	frame := make([]byte, 8+bodyLen)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[8:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	return codec.Decode(frame)
}
