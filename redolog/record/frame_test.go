package record

import (
	"testing"
	"time"

	"github.com/chn0318/redolog/redolog"
	"github.com/stretchr/testify/require"
)

func TestFrame(t *testing.T) {
	f := Fields{
		{Tag: "d", Value: []byte("hello")},
		{Tag: "i", Value: []byte("1-2")},
		{Tag: "x", Value: []byte{}},
	}
	b := Frame(f)
	require.Equal(t, []byte{
		1, 'd', 5, 'h', 'e', 'l', 'l', 'o',
		1, 'i', 3, '1', '-', '2',
		1, 'x', 0,
	}, b)

	got, err := Unframe(b)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestUnframeTruncated(t *testing.T) {
	b := Frame(Fields{{Tag: "d", Value: []byte("hello")}})
	for i := 1; i < len(b); i++ {
		_, err := Unframe(b[:i])
		require.ErrorIs(t, err, ErrMalformed, "prefix %d", i)
	}
}

func TestOperationEnvelope(t *testing.T) {
	op := &redolog.Op{
		Mailbox: 99,
		Txn:     redolog.TransactionID{Time: 5, Counter: 6},
		Code:    3,
		Time:    1234,
		End:     true,
	}
	b := MarshalOperation(op, []byte("body"), true)

	got, payload, sync, err := UnmarshalOperation(b)
	require.NoError(t, err)
	require.Equal(t, op, got)
	require.Equal(t, []byte("body"), payload)
	require.True(t, sync)

	f, err := Unframe(b)
	require.NoError(t, err)
	_, ok := f.Get(TagSubmitTime)
	require.False(t, ok, "envelope must not carry a submit time")
}

func TestOperationEnvelopeMissingFlags(t *testing.T) {
	b := Frame(Encode(&redolog.Op{}, nil, time.Time{}))
	_, _, _, err := UnmarshalOperation(b)
	require.ErrorIs(t, err, ErrMalformed)
}
