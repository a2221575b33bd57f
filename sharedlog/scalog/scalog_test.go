package scalog

import (
	"testing"
	"time"

	"github.com/chn0318/redolog/redolog"
	"github.com/chn0318/redolog/redolog/record"
	"github.com/stretchr/testify/require"
)

func TestEntryRoundTrip(t *testing.T) {
	op := &redolog.Op{
		Mailbox: 7,
		Txn:     redolog.TransactionID{Time: 3, Counter: 9},
		Code:    2,
		Time:    1700000000000,
	}
	fields := record.Encode(op, []byte("body"), time.UnixMilli(1700000000123))

	entry := joinEntry("redo-log-stream-3", fields)
	stream, got, err := splitEntry(entry)
	require.NoError(t, err)
	require.Equal(t, "redo-log-stream-3", stream)
	require.Equal(t, fields, got)

	rec, err := record.Decode(got)
	require.NoError(t, err)
	require.Equal(t, op.Txn, rec.TxnID)
	require.Equal(t, []byte("body"), rec.Payload)
}

func TestSplitEntryMalformed(t *testing.T) {
	for name, b := range map[string][]byte{
		"empty":      nil,
		"no tag":     record.Frame(record.Fields{{Tag: "d", Value: []byte{1}}}),
		"truncated":  joinEntry("s", record.Fields{{Tag: "p", Value: []byte("abc")}})[:6],
		"bad prefix": {0xff},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := splitEntry(b)
			require.ErrorIs(t, err, record.ErrMalformed)
		})
	}
}
