package redisstream

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/chn0318/redolog/redolog"
	"github.com/chn0318/redolog/redolog/record"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisStream(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	require.NoError(t, s.Ping(ctx))

	st := s.Stream("redo-log-2")
	require.Equal(t, "redo-log-2", st.Name())

	ok, err := st.Exists(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	n, err := st.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	op := &redolog.Op{
		Mailbox: 10,
		Txn:     redolog.TransactionID{Time: 1, Counter: 2},
		Code:    9,
		Time:    1700000000000,
	}
	submit := time.UnixMilli(1700000000500)
	fields := record.Encode(op, []byte{0x00, 0xff, 'x'}, submit)

	ref, err := st.Append(ctx, fields)
	require.NoError(t, err)
	require.NotEmpty(t, ref.ID)
	require.True(t, mr.Exists("redo-log-2"))

	n, err = st.Len(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := s.Range(ctx, "redo-log-2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, fields, got[0])

	rec, err := record.Decode(got[0])
	require.NoError(t, err)
	require.Equal(t, int32(10), rec.MailboxID)
	require.Equal(t, op.Txn, rec.TxnID)
	require.Equal(t, submit.UnixMilli(), rec.SubmitTime.UnixMilli())

	ok, err = st.Exists(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	deleted, err := st.Delete(ctx)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = st.Delete(ctx)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestRedisStreamErrors(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	st := s.Stream("redo-log-0")
	mr.Close()

	_, err := st.Append(ctx, record.Fields{{Tag: "d", Value: []byte("x")}})
	require.Error(t, err)
	_, err = st.Len(ctx)
	require.Error(t, err)
	_, err = st.Exists(ctx)
	require.Error(t, err)
	_, err = st.Delete(ctx)
	require.Error(t, err)
	require.Error(t, s.Ping(ctx))
}

func TestNewRedisStoreFromConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	v := viper.New()
	v.Set("redis-addr", mr.Addr())

	s := NewRedisStoreFromConfig(v)
	defer s.Close()
	require.NoError(t, s.Ping(context.Background()))
}
