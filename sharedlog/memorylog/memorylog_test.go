package memorylog

import (
	"context"
	"errors"
	"testing"

	"github.com/chn0318/redolog/redolog/record"
	"github.com/stretchr/testify/require"
)

func TestMemoryLog(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()
	s := l.Stream("redo-0")
	require.Equal(t, "redo-0", s.Name())

	ok, err := s.Exists(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	r1, err := s.Append(ctx, record.Fields{{Tag: "d", Value: []byte("a")}})
	require.NoError(t, err)
	r2, err := l.Stream("redo-1").Append(ctx, record.Fields{{Tag: "d", Value: []byte("b")}})
	require.NoError(t, err)
	require.Equal(t, "1-0", r1.ID)
	require.Equal(t, "2-0", r2.ID)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.Equal(t, []record.Fields{{{Tag: "d", Value: []byte("a")}}}, l.Records("redo-0"))

	deleted, err := s.Delete(ctx)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = s.Delete(ctx)
	require.NoError(t, err)
	require.False(t, deleted)

	n, err = s.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMemoryLogHooks(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()
	s := l.Stream("redo-0")

	boom := errors.New("boom")
	l.SetAppendHook(func(_ context.Context, stream string, _ record.Fields) error {
		require.Equal(t, "redo-0", stream)
		return boom
	})
	_, err := s.Append(ctx, nil)
	require.ErrorIs(t, err, boom)
	require.Empty(t, l.Records("redo-0"))

	l.SetQueryHook(func(string) error { return boom })
	_, err = s.Len(ctx)
	require.ErrorIs(t, err, boom)
	_, err = s.Exists(ctx)
	require.ErrorIs(t, err, boom)
	_, err = s.Delete(ctx)
	require.ErrorIs(t, err, boom)
}
