// Package record defines the wire form of a redo log record.
//
// Every append carries six fields, each keyed by a one-byte tag:
//
//	d  payload            raw bytes
//	t  op timestamp       int64, big-endian, milliseconds
//	m  mailbox id         int32, big-endian
//	p  op-type code       int32, big-endian
//	i  transaction id     UTF-8 "<time>-<counter>"
//	s  submit time        int64, big-endian, milliseconds since the epoch
//
// The submit time is the wall clock at the moment the append is issued and is
// distinct from the operation's own timestamp.
package record

import (
	"encoding/binary"
	"time"

	"github.com/chn0318/redolog/redolog"
	"github.com/pkg/errors"
)

// Field tags.
const (
	TagData       = "d"
	TagTimestamp  = "t"
	TagMailboxID  = "m"
	TagOpType     = "p"
	TagTxnID      = "i"
	TagSubmitTime = "s"
)

// ErrMalformed is returned when fields cannot be decoded.
var ErrMalformed = errors.New("malformed redo log record")

// Field is one tagged value of a record.
type Field struct {
	Tag   string
	Value []byte
}

// Fields is an ordered set of record fields.
type Fields []Field

// Get returns the value stored under tag.
func (f Fields) Get(tag string) ([]byte, bool) {
	for _, fld := range f {
		if fld.Tag == tag {
			return fld.Value, true
		}
	}
	return nil, false
}

// Record is the decoded form of a wire record.
type Record struct {
	Payload    []byte
	Timestamp  int64
	MailboxID  int32
	OpCode     redolog.OpCode
	TxnID      redolog.TransactionID
	SubmitTime time.Time
}

// Encode builds the wire fields for op. It never fails.
func Encode(op redolog.Operation, payload []byte, submitTime time.Time) Fields {
	return Fields{
		{Tag: TagData, Value: payload},
		{Tag: TagTimestamp, Value: putInt64(op.Timestamp())},
		{Tag: TagMailboxID, Value: putInt32(op.MailboxID())},
		{Tag: TagOpType, Value: putInt32(int32(op.OpCode()))},
		{Tag: TagTxnID, Value: []byte(op.TransactionID().String())},
		{Tag: TagSubmitTime, Value: putInt64(submitTime.UnixMilli())},
	}
}

// Decode parses fields produced by Encode.
func Decode(f Fields) (*Record, error) {
	var (
		rec Record
		err error
	)
	data, ok := f.Get(TagData)
	if !ok {
		return nil, errors.Wrap(ErrMalformed, "missing payload")
	}
	rec.Payload = data
	if rec.Timestamp, err = int64Field(f, TagTimestamp); err != nil {
		return nil, err
	}
	if rec.MailboxID, err = int32Field(f, TagMailboxID); err != nil {
		return nil, err
	}
	code, err := int32Field(f, TagOpType)
	if err != nil {
		return nil, err
	}
	rec.OpCode = redolog.OpCode(code)

	txn, ok := f.Get(TagTxnID)
	if !ok {
		return nil, errors.Wrap(ErrMalformed, "missing transaction id")
	}
	if rec.TxnID, err = redolog.ParseTransactionID(string(txn)); err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}

	submit, err := int64Field(f, TagSubmitTime)
	if err != nil {
		return nil, err
	}
	rec.SubmitTime = time.UnixMilli(submit)
	return &rec, nil
}

func int64Field(f Fields, tag string) (int64, error) {
	v, ok := f.Get(tag)
	if !ok || len(v) != 8 {
		return 0, errors.Wrapf(ErrMalformed, "field %q: want 8 bytes", tag)
	}
	return int64(binary.BigEndian.Uint64(v)), nil
}

func int32Field(f Fields, tag string) (int32, error) {
	v, ok := f.Get(tag)
	if !ok || len(v) != 4 {
		return 0, errors.Wrapf(ErrMalformed, "field %q: want 4 bytes", tag)
	}
	return int32(binary.BigEndian.Uint32(v)), nil
}

func putInt64(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func putInt32(v int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}
