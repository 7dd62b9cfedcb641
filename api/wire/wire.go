// Package wire defines the gRPC message types for the table service.
//
// Messages are encoded straight to protobuf wire format with
// protowire, so the repo carries no generated code; the Codec plugs
// them into grpc-go via ForceServerCodec.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is anything the Codec can move across the wire.
type Message interface {
	MarshalWire() ([]byte, error)
	UnmarshalWire(data []byte) error
}

// Codec satisfies grpc/encoding.Codec for wire messages.
type Codec struct{}

func (Codec) Name() string { return "darrwire" }

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("wire: cannot marshal %T", v)
	}
	return m.MarshalWire()
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("wire: cannot unmarshal into %T", v)
	}
	return m.UnmarshalWire(data)
}

// ---------------- field helpers ----------------

func appendString(buf []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendString(buf, s)
}

func appendBytes(buf []byte, num protowire.Number, b []byte) []byte {
	if len(b) == 0 {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, b)
}

func appendUint(buf []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.VarintType)
	return protowire.AppendVarint(buf, v)
}

func appendBool(buf []byte, num protowire.Number, v bool) []byte {
	if !v {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.VarintType)
	return protowire.AppendVarint(buf, 1)
}

var errCorrupt = fmt.Errorf("wire: corrupt message")

// eachField walks a wire body handing each field to fn. Varint fields
// arrive in v, length-delimited fields in b. Unknown fields must be
// ignored by fn (return nil).
func eachField(body []byte, fn func(num protowire.Number, v uint64, b []byte) error) error {
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return errCorrupt
		}
		body = body[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return errCorrupt
			}
			body = body[n:]
			if err := fn(num, v, nil); err != nil {
				return err
			}
		case protowire.BytesType:
			b, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return errCorrupt
			}
			body = body[n:]
			if err := fn(num, 0, b); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return errCorrupt
			}
			body = body[n:]
		}
	}
	return nil
}

// ---------------- messages ----------------

type PutRequest struct {
	Key   string // 1
	Value []byte // 2
}

func (m *PutRequest) MarshalWire() ([]byte, error) {
	var buf []byte
	buf = appendString(buf, 1, m.Key)
	buf = appendBytes(buf, 2, m.Value)
	return buf, nil
}

func (m *PutRequest) UnmarshalWire(data []byte) error {
	*m = PutRequest{}
	return eachField(data, func(num protowire.Number, v uint64, b []byte) error {
		switch num {
		case 1:
			m.Key = string(b)
		case 2:
			m.Value = append([]byte(nil), b...)
		}
		return nil
	})
}

type PutResponse struct {
	Seq uint64 // 1
}

func (m *PutResponse) MarshalWire() ([]byte, error) {
	return appendUint(nil, 1, m.Seq), nil
}

func (m *PutResponse) UnmarshalWire(data []byte) error {
	*m = PutResponse{}
	return eachField(data, func(num protowire.Number, v uint64, b []byte) error {
		if num == 1 {
			m.Seq = v
		}
		return nil
	})
}

type DeleteRequest struct {
	Key string // 1
}

func (m *DeleteRequest) MarshalWire() ([]byte, error) {
	return appendString(nil, 1, m.Key), nil
}

func (m *DeleteRequest) UnmarshalWire(data []byte) error {
	*m = DeleteRequest{}
	return eachField(data, func(num protowire.Number, v uint64, b []byte) error {
		if num == 1 {
			m.Key = string(b)
		}
		return nil
	})
}

type DeleteResponse struct {
	Seq uint64 // 1
}

func (m *DeleteResponse) MarshalWire() ([]byte, error) {
	return appendUint(nil, 1, m.Seq), nil
}

func (m *DeleteResponse) UnmarshalWire(data []byte) error {
	*m = DeleteResponse{}
	return eachField(data, func(num protowire.Number, v uint64, b []byte) error {
		if num == 1 {
			m.Seq = v
		}
		return nil
	})
}

// LookupRequest addresses an entry by path, e.g. "/entries/alpha".
type LookupRequest struct {
	Path string // 1
}

func (m *LookupRequest) MarshalWire() ([]byte, error) {
	return appendString(nil, 1, m.Path), nil
}

func (m *LookupRequest) UnmarshalWire(data []byte) error {
	*m = LookupRequest{}
	return eachField(data, func(num protowire.Number, v uint64, b []byte) error {
		if num == 1 {
			m.Path = string(b)
		}
		return nil
	})
}

type LookupResponse struct {
	Found bool   // 1
	Key   string // 2
	Value []byte // 3
}

func (m *LookupResponse) MarshalWire() ([]byte, error) {
	var buf []byte
	buf = appendBool(buf, 1, m.Found)
	buf = appendString(buf, 2, m.Key)
	buf = appendBytes(buf, 3, m.Value)
	return buf, nil
}

func (m *LookupResponse) UnmarshalWire(data []byte) error {
	*m = LookupResponse{}
	return eachField(data, func(num protowire.Number, v uint64, b []byte) error {
		switch num {
		case 1:
			m.Found = v != 0
		case 2:
			m.Key = string(b)
		case 3:
			m.Value = append([]byte(nil), b...)
		}
		return nil
	})
}

type SnapshotRequest struct{}

func (m *SnapshotRequest) MarshalWire() ([]byte, error) { return nil, nil }

func (m *SnapshotRequest) UnmarshalWire(data []byte) error {
	return eachField(data, func(protowire.Number, uint64, []byte) error { return nil })
}

type Entry struct {
	Key   string // 1
	Value []byte // 2
}

func (m *Entry) marshal() []byte {
	var buf []byte
	buf = appendString(buf, 1, m.Key)
	buf = appendBytes(buf, 2, m.Value)
	return buf
}

func (m *Entry) unmarshal(data []byte) error {
	*m = Entry{}
	return eachField(data, func(num protowire.Number, v uint64, b []byte) error {
		switch num {
		case 1:
			m.Key = string(b)
		case 2:
			m.Value = append([]byte(nil), b...)
		}
		return nil
	})
}

type SnapshotResponse struct {
	Entries []Entry // 1
}

func (m *SnapshotResponse) MarshalWire() ([]byte, error) {
	var buf []byte
	for i := range m.Entries {
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, m.Entries[i].marshal())
	}
	return buf, nil
}

func (m *SnapshotResponse) UnmarshalWire(data []byte) error {
	*m = SnapshotResponse{}
	return eachField(data, func(num protowire.Number, v uint64, b []byte) error {
		if num == 1 {
			var e Entry
			if err := e.unmarshal(b); err != nil {
				return err
			}
			m.Entries = append(m.Entries, e)
		}
		return nil
	})
}

type StatusRequest struct{}

func (m *StatusRequest) MarshalWire() ([]byte, error) { return nil, nil }

func (m *StatusRequest) UnmarshalWire(data []byte) error {
	return eachField(data, func(protowire.Number, uint64, []byte) error { return nil })
}

type StatusResponse struct {
	Generation     uint64 // 1
	PendingGarbage uint64 // 2
	TableSize      uint64 // 3
}

func (m *StatusResponse) MarshalWire() ([]byte, error) {
	var buf []byte
	buf = appendUint(buf, 1, m.Generation)
	buf = appendUint(buf, 2, m.PendingGarbage)
	buf = appendUint(buf, 3, m.TableSize)
	return buf, nil
}

func (m *StatusResponse) UnmarshalWire(data []byte) error {
	*m = StatusResponse{}
	return eachField(data, func(num protowire.Number, v uint64, b []byte) error {
		switch num {
		case 1:
			m.Generation = v
		case 2:
			m.PendingGarbage = v
		case 3:
			m.TableSize = v
		}
		return nil
	})
}
