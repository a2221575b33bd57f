package redolog

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// Errors
var (
	ErrNotSupported        = errors.New("operation not supported by this log writer backend")
	ErrOrderingTimeout     = errors.New("timed out waiting for transaction start marker")
	ErrTransactionInFlight = errors.New("transaction start marker already in flight")
	ErrWriterClosed        = errors.New("log writer is closed")
)

// LogWriter is the contract a redo log manager writes through. It does not
// need to know whether records land in a local file or in remote streams;
// backends return ErrNotSupported for calls that carry no meaning for them.
type LogWriter interface {
	Open() error
	Close() error

	// Log appends op with its serialized payload. synchronous is a hint
	// from the caller; backends may ignore it.
	Log(ctx context.Context, op Operation, data io.Reader, synchronous bool) error
	Flush() error

	Size() (int64, error)
	CreateTime() (int64, error)
	LastLogTime() (int64, error)

	IsEmpty(ctx context.Context) (bool, error)
	Exists(ctx context.Context) (bool, error)
	Delete(ctx context.Context) (bool, error)

	AbsolutePath() (string, error)
	RenameTo(dest string) (bool, error)
	// Rollover closes the current log and starts a new one, carrying over
	// the transactions still active.
	Rollover(activeOps map[TransactionID]Operation) (string, error)
	Sequence() (int64, error)
}
