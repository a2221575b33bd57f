package distlog

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/chn0318/redolog/redolog"
	"github.com/chn0318/redolog/redolog/record"
	"github.com/chn0318/redolog/sharedlog"
)

// appendTask is one record waiting to be appended to a shard.
type appendTask struct {
	fields record.Fields
	issued time.Time
	// done runs on the shard's worker once the store answers.
	done func(ref sharedlog.RecordRef, err error, elapsed time.Duration)
}

// shardQueue is an unbounded FIFO of tasks for one shard.
type shardQueue struct {
	stream sharedlog.Stream

	mu     sync.Mutex
	tasks  []*appendTask
	notify chan struct{}
}

func (q *shardQueue) push(t *appendTask) {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *shardQueue) take() []*appendTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks := q.tasks
	q.tasks = nil
	return tasks
}

// pipeline issues appends asynchronously. Each shard has its own worker so
// records reach a stream in the order they were submitted for it, while
// shards proceed independently.
type pipeline struct {
	queues []*shardQueue
	clock  clock.Clock

	mu     sync.RWMutex
	closed bool

	stop   chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func newPipeline(streams []sharedlog.Stream, clk clock.Clock) *pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	p := &pipeline{
		queues: make([]*shardQueue, len(streams)),
		clock:  clk,
		stop:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	for i, s := range streams {
		q := &shardQueue{stream: s, notify: make(chan struct{}, 1)}
		p.queues[i] = q
		p.wg.Add(1)
		go p.run(q)
	}
	return p
}

// submit queues t for shard. It never blocks on the store.
func (p *pipeline) submit(shard int, t *appendTask) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return redolog.ErrWriterClosed
	}
	p.queues[shard].push(t)
	return nil
}

func (p *pipeline) run(q *shardQueue) {
	defer p.wg.Done()
	for {
		select {
		case <-q.notify:
			p.drain(q)
		case <-p.stop:
			p.drain(q)
			return
		}
	}
}

func (p *pipeline) drain(q *shardQueue) {
	for {
		tasks := q.take()
		if len(tasks) == 0 {
			return
		}
		for _, t := range tasks {
			ref, err := q.stream.Append(p.ctx, t.fields)
			t.done(ref, err, p.clock.Now().Sub(t.issued))
		}
	}
}

// shutdown stops accepting tasks and waits for queued ones to complete.
// If ctx ends first, in-flight appends are cancelled and ctx's error is
// returned without waiting for the workers; a store that ignores
// cancellation finishes its append in the background.
func (p *pipeline) shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stop)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}
