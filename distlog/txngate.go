package distlog

import (
	"context"
	"sync"

	"github.com/chn0318/redolog/redolog"
	"github.com/pkg/errors"
)

// txnGates holds one single-use gate per transaction whose start marker has
// been submitted but not yet completed. An end marker waits on its
// transaction's gate so that readers never see it before the start marker.
type txnGates struct {
	mu    sync.Mutex
	gates map[redolog.TransactionID]chan struct{}
}

func newTxnGates() *txnGates {
	return &txnGates{
		gates: make(map[redolog.TransactionID]chan struct{}),
	}
}

// begin opens a gate for id. A second begin before release means two
// in-flight transactions share an id.
func (g *txnGates) begin(id redolog.TransactionID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.gates[id]; ok {
		return errors.Wrapf(redolog.ErrTransactionInFlight, "txnId=%s", id)
	}
	g.gates[id] = make(chan struct{})
	return nil
}

// wait blocks until the gate for id is released or ctx is done. found is
// false when there was no gate to wait for.
func (g *txnGates) wait(ctx context.Context, id redolog.TransactionID) (found bool, err error) {
	g.mu.Lock()
	ch, ok := g.gates[id]
	g.mu.Unlock()
	if !ok {
		return false, nil
	}

	select {
	case <-ch:
		return true, nil
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

// release opens and removes the gate for id. It reports whether a gate was
// present.
func (g *txnGates) release(id redolog.TransactionID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.gates[id]
	if !ok {
		return false
	}
	delete(g.gates, id)
	close(ch)
	return true
}

func (g *txnGates) pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.gates)
}
