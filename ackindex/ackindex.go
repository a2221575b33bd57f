// Package ackindex keeps what the stream store has acknowledged per shard.
package ackindex

import (
	"sync"
	"time"

	"github.com/chn0318/redolog/sharedlog"
)

// ShardMeta stores the latest acknowledged position of a shard and the
// append outcomes observed so far.
type ShardMeta struct {
	Last    sharedlog.RecordRef
	LastAck time.Time
	Acked   uint64
	Failed  uint64
}

// Index is an in-memory map from shard index to ShardMeta.
type Index struct {
	mu sync.RWMutex
	m  map[int]ShardMeta

	// latest acknowledgement across all shards
	lastAck time.Time
}

func New() *Index {
	return &Index{
		m: make(map[int]ShardMeta),
	}
}

// ApplyAck records a successful append on shard. Position only moves
// forward in time; an ack older than the recorded one still counts but does
// not replace Last.
func (x *Index) ApplyAck(shard int, ref sharedlog.RecordRef, at time.Time) {
	x.mu.Lock()
	defer x.mu.Unlock()

	meta := x.m[shard]
	meta.Acked++
	if !at.Before(meta.LastAck) {
		meta.Last = ref
		meta.LastAck = at
	}
	x.m[shard] = meta
	if at.After(x.lastAck) {
		x.lastAck = at
	}
}

// ApplyFailure records a failed append on shard.
func (x *Index) ApplyFailure(shard int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	meta := x.m[shard]
	meta.Failed++
	x.m[shard] = meta
}

// Get returns the metadata for shard.
func (x *Index) Get(shard int) (ShardMeta, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	meta, ok := x.m[shard]
	return meta, ok
}

// Snapshot returns a copy of all shard metadata.
func (x *Index) Snapshot() map[int]ShardMeta {
	x.mu.RLock()
	defer x.mu.RUnlock()
	res := make(map[int]ShardMeta, len(x.m))
	for k, v := range x.m {
		res[k] = v
	}
	return res
}

// LastAck returns the time of the most recent acknowledgement on any shard.
func (x *Index) LastAck() time.Time {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.lastAck
}
