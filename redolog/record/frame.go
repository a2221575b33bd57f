package record

import (
	"encoding/binary"
	"time"

	"github.com/chn0318/redolog/redolog"
	"github.com/pkg/errors"
)

// Envelope-only tags carried with an operation on its way to a writer.
const (
	tagStart = "b"
	tagEnd   = "e"
	tagSync  = "y"
)

// Frame packs fields into one blob:
//
//	[uvarint len(tag)][tag][uvarint len(value)][value] ...
func Frame(f Fields) []byte {
	n := 0
	for _, fld := range f {
		n += 2*binary.MaxVarintLen64 + len(fld.Tag) + len(fld.Value)
	}
	buf := make([]byte, 0, n)
	for _, fld := range f {
		buf = binary.AppendUvarint(buf, uint64(len(fld.Tag)))
		buf = append(buf, fld.Tag...)
		buf = binary.AppendUvarint(buf, uint64(len(fld.Value)))
		buf = append(buf, fld.Value...)
	}
	return buf
}

// Unframe is the inverse of Frame.
func Unframe(b []byte) (Fields, error) {
	var f Fields
	for len(b) > 0 {
		tag, rest, err := readChunk(b)
		if err != nil {
			return nil, err
		}
		val, rest, err := readChunk(rest)
		if err != nil {
			return nil, err
		}
		f = append(f, Field{Tag: string(tag), Value: val})
		b = rest
	}
	return f, nil
}

func readChunk(b []byte) ([]byte, []byte, error) {
	n, sz := binary.Uvarint(b)
	if sz <= 0 {
		return nil, nil, errors.Wrap(ErrMalformed, "bad length prefix")
	}
	b = b[sz:]
	if uint64(len(b)) < n {
		return nil, nil, errors.Wrap(ErrMalformed, "truncated frame")
	}
	return b[:n], b[n:], nil
}

// MarshalOperation encodes op, its payload and the caller's synchronous hint
// so the operation can cross a process boundary before it is logged.
func MarshalOperation(op redolog.Operation, payload []byte, synchronous bool) []byte {
	f := Encode(op, payload, time.Time{})
	// submit time is stamped by the writer, not the sender
	f = f[:len(f)-1]
	f = append(f,
		Field{Tag: tagStart, Value: putBool(op.IsStartMarker())},
		Field{Tag: tagEnd, Value: putBool(op.IsEndMarker())},
		Field{Tag: tagSync, Value: putBool(synchronous)},
	)
	return Frame(f)
}

// UnmarshalOperation decodes a blob produced by MarshalOperation.
func UnmarshalOperation(b []byte) (op *redolog.Op, payload []byte, synchronous bool, err error) {
	f, err := Unframe(b)
	if err != nil {
		return nil, nil, false, err
	}
	// Decode wants a submit time; the envelope never carries one.
	rec, err := Decode(append(f, Field{Tag: TagSubmitTime, Value: putInt64(0)}))
	if err != nil {
		return nil, nil, false, err
	}
	start, err := boolField(f, tagStart)
	if err != nil {
		return nil, nil, false, err
	}
	end, err := boolField(f, tagEnd)
	if err != nil {
		return nil, nil, false, err
	}
	synchronous, err = boolField(f, tagSync)
	if err != nil {
		return nil, nil, false, err
	}
	op = &redolog.Op{
		Mailbox: rec.MailboxID,
		Txn:     rec.TxnID,
		Code:    rec.OpCode,
		Time:    rec.Timestamp,
		Start:   start,
		End:     end,
	}
	return op, rec.Payload, synchronous, nil
}

func boolField(f Fields, tag string) (bool, error) {
	v, ok := f.Get(tag)
	if !ok || len(v) != 1 {
		return false, errors.Wrapf(ErrMalformed, "field %q: want 1 byte", tag)
	}
	return v[0] != 0, nil
}

func putBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}
