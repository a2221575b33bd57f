package sharedlog

import (
	"context"

	"github.com/chn0318/redolog/redolog/record"
	"github.com/pkg/errors"
)

// ErrUnsupported is returned by stores that cannot answer a request, e.g. an
// append-only shared log asked to delete a stream.
var ErrUnsupported = errors.New("not supported by this stream store")

// Stream is one named, independently ordered, append-only stream.
// Implementations can be backed by Redis Streams, Scalog, or memory.
type Stream interface {
	// Name returns the stream's name in the store.
	Name() string

	// Append adds one multi-field record to the tail of the stream.
	// Returns the position the store assigned to it.
	Append(ctx context.Context, fields record.Fields) (RecordRef, error)

	// Len returns the number of records currently in the stream.
	Len(ctx context.Context) (int64, error)

	// Exists reports whether the stream exists in the store.
	Exists(ctx context.Context) (bool, error)

	// Delete removes the stream. It reports whether anything was removed.
	Delete(ctx context.Context) (bool, error)
}

// Store hands out named streams.
type Store interface {
	// Stream returns a handle for name. It does not create the stream; the
	// first append does.
	Stream(name string) Stream

	Close() error
}

// Pinger is implemented by stores that can check connectivity up front.
type Pinger interface {
	Ping(ctx context.Context) error
}
