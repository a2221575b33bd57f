package redologserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/chn0318/redolog/distlog"
	"github.com/chn0318/redolog/redolog"
	"github.com/chn0318/redolog/redolog/record"
	"github.com/chn0318/redolog/sharedlog/memorylog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func testServer(t *testing.T, cfg distlog.Config) (*Client, *memorylog.MemoryLog, *distlog.Writer) {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := memorylog.NewMemoryLog()
	w, err := distlog.NewWriter(context.Background(), cfg, store, distlog.WithLogger(log))
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterRedologServer(srv, NewServer(w, log))
	go srv.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w.Shutdown(ctx)
	})
	return NewClient(conn), store, w
}

func testConfig() distlog.Config {
	cfg := distlog.DefaultConfig()
	cfg.ShardCount = 4
	cfg.StreamPrefix = "redo-"
	return cfg
}

func TestServerRoundTrip(t *testing.T) {
	c, store, _ := testServer(t, testConfig())
	ctx := context.Background()

	empty, err := c.IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	exists, err := c.Exists(ctx)
	require.NoError(t, err)
	require.False(t, exists)

	txn := redolog.TransactionID{Time: 3, Counter: 4}
	require.NoError(t, c.Log(ctx, &redolog.Op{Mailbox: 10, Txn: txn, Code: 1, Time: 99, Start: true}, []byte("begin"), false))
	require.NoError(t, c.Log(ctx, &redolog.Op{Mailbox: 10, Txn: txn, Code: 2, Time: 100, End: true}, nil, true))

	require.Eventually(t, func() bool { return len(store.Records("redo-2")) == 2 }, 5*time.Second, time.Millisecond)
	rec, err := record.Decode(store.Records("redo-2")[0])
	require.NoError(t, err)
	require.Equal(t, txn, rec.TxnID)
	require.Equal(t, []byte("begin"), rec.Payload)
	require.EqualValues(t, 99, rec.Timestamp)

	empty, err = c.IsEmpty(ctx)
	require.NoError(t, err)
	require.False(t, empty)

	exists, err = c.Exists(ctx)
	require.NoError(t, err)
	require.True(t, exists)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, st.Fields["pending_transactions"].GetNumberValue())
	shards := st.Fields["shards"].GetListValue().GetValues()
	require.Len(t, shards, 4)
	shard2 := shards[2].GetStructValue().GetFields()
	require.Equal(t, "redo-2", shard2["stream"].GetStringValue())
	require.EqualValues(t, 2, shard2["acked"].GetNumberValue())

	// only redo-2 exists, and it is not the last shard
	deleted, err := c.Delete(ctx)
	require.NoError(t, err)
	require.False(t, deleted)

	empty, err = c.IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)
}

func TestServerMalformedLog(t *testing.T) {
	c, _, _ := testServer(t, testConfig())
	err := c.cc.Invoke(context.Background(), LogMethod, wrapperspb.Bytes([]byte{0xff}), new(wrapperspb.BoolValue))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServerOrderingTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.OrderingTimeout = 20 * time.Millisecond
	c, store, _ := testServer(t, cfg)
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	store.SetAppendHook(func(ctx context.Context, _ string, _ record.Fields) error {
		close(held)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	defer close(release)

	txn := redolog.TransactionID{Time: 1, Counter: 1}
	require.NoError(t, c.Log(ctx, &redolog.Op{Mailbox: 1, Txn: txn, Start: true}, nil, false))
	<-held

	err := c.Log(ctx, &redolog.Op{Mailbox: 1, Txn: txn, End: true}, nil, false)
	require.Equal(t, codes.DeadlineExceeded, status.Code(err))

	err = c.Log(ctx, &redolog.Op{Mailbox: 1, Txn: txn, Start: true}, nil, false)
	require.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestToStatus(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want codes.Code
	}{
		{errors.Wrap(record.ErrMalformed, "x"), codes.InvalidArgument},
		{errors.Wrap(redolog.ErrNotSupported, "size"), codes.Unimplemented},
		{redolog.ErrOrderingTimeout, codes.DeadlineExceeded},
		{redolog.ErrTransactionInFlight, codes.AlreadyExists},
		{redolog.ErrWriterClosed, codes.Unavailable},
		{context.Canceled, codes.Canceled},
		{errors.New("redis down"), codes.Internal},
	} {
		require.Equal(t, tt.want, status.Code(toStatus(tt.err)), tt.err.Error())
	}
}
