package distlog

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/chn0318/redolog/redolog"
	"github.com/chn0318/redolog/redolog/record"
	"github.com/chn0318/redolog/sharedlog"
	"github.com/chn0318/redolog/sharedlog/memorylog"
	"github.com/stretchr/testify/require"
)

func TestPipelineShutdownCancelsStuckAppends(t *testing.T) {
	store := memorylog.NewMemoryLog()
	store.SetAppendHook(func(ctx context.Context, _ string, _ record.Fields) error {
		<-ctx.Done()
		return ctx.Err()
	})
	p := newPipeline([]sharedlog.Stream{store.Stream("s-0")}, clock.New())

	results := make(chan error, 1)
	require.NoError(t, p.submit(0, &appendTask{
		issued: time.Now(),
		done: func(_ sharedlog.RecordRef, err error, _ time.Duration) {
			results <- err
		},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.shutdown(ctx), context.DeadlineExceeded)
	require.ErrorIs(t, <-results, context.Canceled)

	require.ErrorIs(t, p.submit(0, &appendTask{}), redolog.ErrWriterClosed)
	require.NoError(t, p.shutdown(context.Background()))
}

func TestPipelineElapsed(t *testing.T) {
	mock := clock.NewMock()
	store := memorylog.NewMemoryLog()
	store.SetAppendHook(func(context.Context, string, record.Fields) error {
		mock.Add(3 * time.Second)
		return nil
	})
	p := newPipeline([]sharedlog.Stream{store.Stream("s-0")}, mock)

	elapsed := make(chan time.Duration, 1)
	require.NoError(t, p.submit(0, &appendTask{
		issued: mock.Now(),
		done: func(ref sharedlog.RecordRef, err error, d time.Duration) {
			require.NoError(t, err)
			require.Equal(t, "1-0", ref.ID)
			elapsed <- d
		},
	}))
	require.NoError(t, p.shutdown(context.Background()))
	require.Equal(t, 3*time.Second, <-elapsed)
}

func TestPipelineShutdownDeadlineWithUncancellableAppend(t *testing.T) {
	store := memorylog.NewMemoryLog()
	entered := make(chan struct{})
	unblock := make(chan struct{})
	store.SetAppendHook(func(context.Context, string, record.Fields) error {
		close(entered)
		<-unblock
		return nil
	})
	p := newPipeline([]sharedlog.Stream{store.Stream("s-0")}, clock.New())

	results := make(chan error, 1)
	require.NoError(t, p.submit(0, &appendTask{
		issued: time.Now(),
		done: func(_ sharedlog.RecordRef, err error, _ time.Duration) {
			results <- err
		},
	}))
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	began := time.Now()
	require.ErrorIs(t, p.shutdown(ctx), context.DeadlineExceeded)
	require.Less(t, time.Since(began), 2*time.Second)

	// the worker finishes once the store answers
	close(unblock)
	select {
	case err := <-results:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("append never completed")
	}
}
