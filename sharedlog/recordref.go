package sharedlog

import "fmt"

// RecordRef locates an appended record.
// - Redis: the entry ID ("<ms>-<seq>") within the shard's stream
// - Scalog: the global sequence number, ShardID is scalog's own shard
type RecordRef struct {
	ShardID uint32
	ID      string
}

func (r RecordRef) String() string { return fmt.Sprintf("%d/%s", r.ShardID, r.ID) }

func ShardedRef(shard uint32, id string) RecordRef { return RecordRef{ShardID: shard, ID: id} }
