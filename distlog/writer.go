// Package distlog writes redo log records to a set of parallel streams in an
// external stream store.
//
// Records are routed to a shard by mailbox id and appended asynchronously;
// Log returns as soon as the append is issued. The one exception to
// fire-and-forget is transaction ordering: an end marker (commit or abort)
// is not issued until the append of its transaction's start marker has
// completed, successfully or not.
//
// Within a shard, records are appended in the order Log was called. There is
// no ordering across shards.
package distlog

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/chn0318/redolog/ackindex"
	"github.com/chn0318/redolog/redolog"
	"github.com/chn0318/redolog/redolog/record"
	"github.com/chn0318/redolog/sharedlog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Writer is a redolog.LogWriter backed by sharded streams.
type Writer struct {
	cfg     Config
	streams []sharedlog.Stream

	gates   *txnGates
	pipe    *pipeline
	acks    *ackindex.Index
	metrics *writerMetrics

	clock  clock.Clock
	logger *zap.Logger
}

var _ redolog.LogWriter = (*Writer)(nil)

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the writer's logger.
func WithLogger(log *zap.Logger) Option {
	return func(w *Writer) { w.logger = log }
}

// WithClock sets the clock used for submit times and latencies.
func WithClock(c clock.Clock) Option {
	return func(w *Writer) { w.clock = c }
}

// NewWriter builds a writer over cfg.ShardCount streams of store. If store
// can be pinged, an unreachable store fails construction.
func NewWriter(ctx context.Context, cfg Config, store sharedlog.Store, opts ...Option) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "no stream store")
	}

	w := &Writer{
		cfg:     cfg,
		gates:   newTxnGates(),
		acks:    ackindex.New(),
		metrics: newWriterMetrics(),
		clock:   clock.New(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("service", "redolog"))

	if p, ok := store.(sharedlog.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return nil, errors.Wrap(err, "stream store unreachable")
		}
	}

	w.streams = make([]sharedlog.Stream, cfg.ShardCount)
	for i := range w.streams {
		w.streams[i] = store.Stream(StreamName(cfg.StreamPrefix, i))
	}
	w.pipe = newPipeline(w.streams, w.clock)

	w.logger.Info("Redo log writer started",
		zap.Int("streams", cfg.ShardCount),
		zap.String("prefix", cfg.StreamPrefix),
		zap.Duration("ordering_timeout", cfg.OrderingTimeout))
	return w, nil
}

// Log issues the append of op and returns without waiting for it to
// complete. Append failures are logged, never returned. The synchronous hint
// is accepted for interface compatibility and has no effect.
//
// A start marker opens a gate for its transaction. An end marker waits for
// that gate; if ctx ends while waiting, the end marker is submitted anyway.
// If the configured ordering timeout expires first, ErrOrderingTimeout is
// returned and nothing is submitted.
func (w *Writer) Log(ctx context.Context, op redolog.Operation, data io.Reader, synchronous bool) error {
	var payload []byte
	if data != nil {
		b, err := io.ReadAll(data)
		if err != nil {
			return errors.Wrap(err, "reading redo op payload")
		}
		payload = b
	}

	var (
		txn    = op.TransactionID()
		code   = op.OpCode()
		shard  = ShardIndex(op.MailboxID(), len(w.streams))
		start  = op.IsStartMarker()
		end    = op.IsEndMarker()
		stream = w.streams[shard].Name()
	)

	if start {
		if err := w.gates.begin(txn); err != nil {
			return err
		}
		w.metrics.pendingTxns.Inc()
	}
	// a record that both starts and ends its transaction has nothing to wait for
	if end && !start {
		if err := w.awaitStart(ctx, txn, code); err != nil {
			return err
		}
	}

	issued := w.clock.Now()
	task := &appendTask{
		fields: record.Encode(op, payload, issued),
		issued: issued,
		done: func(ref sharedlog.RecordRef, err error, elapsed time.Duration) {
			if start {
				w.releaseGate(txn)
			}
			w.completed(shard, stream, txn, code, ref, err, elapsed)
		},
	}
	if err := w.pipe.submit(shard, task); err != nil {
		if start {
			w.releaseGate(txn)
		}
		return err
	}

	if ce := w.logger.Check(zap.DebugLevel, "Issued redo op"); ce != nil {
		ce.Write(
			zap.Stringer("op", code),
			zap.Stringer("txnId", txn),
			zap.Int32("mailboxId", op.MailboxID()),
			zap.Int("shard", shard),
			zap.Bool("synchronous", synchronous))
	}
	return nil
}

func (w *Writer) awaitStart(ctx context.Context, txn redolog.TransactionID, code redolog.OpCode) error {
	waitCtx := ctx
	if w.cfg.OrderingTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, w.cfg.OrderingTimeout)
		defer cancel()
	}

	began := w.clock.Now()
	found, err := w.gates.wait(waitCtx, txn)
	if !found {
		return nil
	}
	waited := w.clock.Now().Sub(began)
	w.metrics.orderingWait.Observe(waited.Seconds())

	switch {
	case err == nil:
		w.logger.Debug("Waited for start marker before submitting end marker",
			zap.Stringer("op", code), zap.Stringer("txnId", txn), zap.Duration("waited", waited))
		return nil
	case ctx.Err() != nil:
		w.logger.Warn("Interrupted waiting for start marker, submitting end marker anyway",
			zap.Stringer("op", code), zap.Stringer("txnId", txn), zap.Duration("waited", waited), zap.Error(err))
		return nil
	default:
		w.metrics.orderingTimeouts.Inc()
		w.logger.Error("Start marker not acknowledged in time, end marker not submitted",
			zap.Stringer("op", code), zap.Stringer("txnId", txn), zap.Duration("timeout", w.cfg.OrderingTimeout))
		return errors.Wrapf(redolog.ErrOrderingTimeout, "txnId=%s after %s", txn, w.cfg.OrderingTimeout)
	}
}

func (w *Writer) releaseGate(txn redolog.TransactionID) {
	if w.gates.release(txn) {
		w.metrics.pendingTxns.Dec()
	}
}

func (w *Writer) completed(shard int, stream string, txn redolog.TransactionID, code redolog.OpCode,
	ref sharedlog.RecordRef, err error, elapsed time.Duration) {
	label := strconv.Itoa(shard)
	w.metrics.appendDur.WithLabelValues(label).Observe(elapsed.Seconds())

	if err != nil {
		w.metrics.appends.WithLabelValues(label, "error").Inc()
		w.acks.ApplyFailure(shard)
		w.logger.Error("Error writing redo op to stream",
			zap.Stringer("op", code),
			zap.Stringer("txnId", txn),
			zap.String("stream", stream),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return
	}

	w.metrics.appends.WithLabelValues(label, "ok").Inc()
	w.acks.ApplyAck(shard, ref, w.clock.Now())
	if ce := w.logger.Check(zap.DebugLevel, "Submitted redo op to stream"); ce != nil {
		ce.Write(
			zap.Stringer("op", code),
			zap.Stringer("txnId", txn),
			zap.String("stream", stream),
			zap.String("streamId", ref.ID),
			zap.Duration("elapsed", elapsed))
	}
}

// IsEmpty reports whether every shard has length zero. It stops at the first
// non-empty shard. A failing shard fails the whole query.
func (w *Writer) IsEmpty(ctx context.Context) (bool, error) {
	for _, s := range w.streams {
		n, err := s.Len(ctx)
		if err != nil {
			return false, errors.Wrapf(err, "length of %s", s.Name())
		}
		if n > 0 {
			return false, nil
		}
	}
	return true, nil
}

// Exists reports whether at least one shard exists. A failing shard fails
// the whole query.
func (w *Writer) Exists(ctx context.Context) (bool, error) {
	for _, s := range w.streams {
		ok, err := s.Exists(ctx)
		if err != nil {
			return false, errors.Wrapf(err, "existence of %s", s.Name())
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Delete deletes every shard, continuing past failures; all errors are
// returned together. With DeleteModeLast the result is that of the last
// shard only, so an earlier failure can be reported as success. With
// DeleteModeAll it is true only if every shard was deleted.
func (w *Writer) Delete(ctx context.Context) (bool, error) {
	var (
		last bool
		all  = true
		errs error
	)
	for _, s := range w.streams {
		ok, err := s.Delete(ctx)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "deleting %s", s.Name()))
			ok = false
		}
		last = ok
		all = all && ok
	}
	if w.cfg.DeleteMode == DeleteModeAll {
		return all, errs
	}
	return last, errs
}

// Shutdown stops accepting records and waits for issued appends to complete.
func (w *Writer) Shutdown(ctx context.Context) error {
	err := w.pipe.shutdown(ctx)
	w.logger.Info("Redo log writer stopped", zap.Int("pending_transactions", w.gates.pending()))
	return err
}

// ShardStats describes one shard of a writer.
type ShardStats struct {
	Index  int
	Stream string
	ackindex.ShardMeta
}

// Stats is a point-in-time view of a writer.
type Stats struct {
	Shards              []ShardStats
	PendingTransactions int
}

// Stats returns what the store has acknowledged so far.
func (w *Writer) Stats() Stats {
	snap := w.acks.Snapshot()
	st := Stats{
		Shards:              make([]ShardStats, len(w.streams)),
		PendingTransactions: w.gates.pending(),
	}
	for i, s := range w.streams {
		st.Shards[i] = ShardStats{Index: i, Stream: s.Name(), ShardMeta: snap[i]}
	}
	return st
}

// PrometheusCollectors returns the writer's metrics.
func (w *Writer) PrometheusCollectors() []prometheus.Collector {
	return w.metrics.PrometheusCollectors()
}

func notSupported(op string) error {
	return errors.Wrap(redolog.ErrNotSupported, op)
}

// The calls below belong to file-backed writers.

func (w *Writer) Open() error                   { return notSupported("open") }
func (w *Writer) Close() error                  { return notSupported("close") }
func (w *Writer) Flush() error                  { return notSupported("flush") }
func (w *Writer) Size() (int64, error)          { return 0, notSupported("size") }
func (w *Writer) CreateTime() (int64, error)    { return 0, notSupported("create time") }
func (w *Writer) LastLogTime() (int64, error)   { return 0, notSupported("last log time") }
func (w *Writer) AbsolutePath() (string, error) { return "", notSupported("absolute path") }
func (w *Writer) RenameTo(dest string) (bool, error) {
	return false, notSupported("rename")
}
func (w *Writer) Rollover(activeOps map[redolog.TransactionID]redolog.Operation) (string, error) {
	return "", notSupported("rollover")
}
func (w *Writer) Sequence() (int64, error) { return 0, notSupported("sequence") }
