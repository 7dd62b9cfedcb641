// Package codec frames table mutations for the journal and the
// outbox. A frame is an 8-byte header (body length and CRC32, both
// little-endian uint32) followed by a protobuf-wire body, so the same
// bytes work on disk and on the Kafka topic.
package codec

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrCorruptRecord = errors.New("codec: corrupt record")

type Op uint8

const (
	OpPut    Op = 1
	OpDelete Op = 2
)

// Record is one journaled mutation.
type Record struct {
	Seq   uint64 // 1
	Time  int64  // 2, unix nanos
	Op    Op     // 3
	Key   string // 4
	Value []byte // 5
}

const headerSize = 8

// Encode produces a complete frame for rec.
func Encode(rec *Record) []byte {
	body := AppendBody(make([]byte, headerSize), rec)
	binary.LittleEndian.PutUint32(body[0:4], uint32(len(body)-headerSize))
	binary.LittleEndian.PutUint32(body[4:8], crc32.ChecksumIEEE(body[headerSize:]))
	return body
}

// Decode parses a complete frame. The CRC catches torn or bit-rotted
// frames; trailing bytes past the stated body length are refused.
func Decode(frame []byte) (*Record, error) {
	if len(frame) < headerSize {
		return nil, ErrCorruptRecord
	}
	bodyLen := binary.LittleEndian.Uint32(frame[0:4])
	if uint32(len(frame)-headerSize) != bodyLen {
		return nil, ErrCorruptRecord
	}
	body := frame[headerSize:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(frame[4:8]) {
		return nil, ErrCorruptRecord
	}
	return ParseBody(body)
}

// AppendBody appends rec's wire body to buf.
func AppendBody(buf []byte, rec *Record) []byte {
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, rec.Seq)
	buf = protowire.AppendTag(buf, 2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(rec.Time))
	buf = protowire.AppendTag(buf, 3, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(rec.Op))
	if rec.Key != "" {
		buf = protowire.AppendTag(buf, 4, protowire.BytesType)
		buf = protowire.AppendString(buf, rec.Key)
	}
	if len(rec.Value) > 0 {
		buf = protowire.AppendTag(buf, 5, protowire.BytesType)
		buf = protowire.AppendBytes(buf, rec.Value)
	}
	return buf
}

// ParseBody decodes a wire body. Unknown fields are skipped so old
// binaries replay journals written by newer ones.
func ParseBody(body []byte) (*Record, error) {
	rec := &Record{}
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return nil, ErrCorruptRecord
		}
		body = body[n:]

		switch {
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			body = body[n:]
			switch num {
			case 1:
				rec.Seq = v
			case 2:
				rec.Time = int64(v)
			case 3:
				rec.Op = Op(v)
			}
		case typ == protowire.BytesType:
			b, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			body = body[n:]
			switch num {
			case 4:
				rec.Key = string(b)
			case 5:
				rec.Value = append([]byte(nil), b...)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			body = body[n:]
		}
	}
	return rec, nil
}
