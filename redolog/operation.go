package redolog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// UnknownID marks an operation whose mailbox is not known.
	UnknownID int32 = 0
	// MailboxIDAll marks an operation that applies to every mailbox.
	MailboxIDAll int32 = -1
)

// OpCode is the numeric code of a mailbox operation type.
type OpCode int32

func (c OpCode) String() string { return "op-" + strconv.Itoa(int(c)) }

// TransactionID identifies every record of one logical transaction.
type TransactionID struct {
	Time    int32
	Counter int32
}

// String returns the canonical encoding "<time>-<counter>".
func (id TransactionID) String() string {
	return fmt.Sprintf("%d-%d", id.Time, id.Counter)
}

// ParseTransactionID decodes the canonical encoding produced by String.
func ParseTransactionID(s string) (TransactionID, error) {
	// the time component may itself be negative
	i := strings.Index(s[min(1, len(s)):], "-") + 1
	if i <= 0 || i == len(s)-1 {
		return TransactionID{}, errors.Errorf("invalid transaction id %q", s)
	}
	t, err := strconv.ParseInt(s[:i], 10, 32)
	if err != nil {
		return TransactionID{}, errors.Wrapf(err, "invalid transaction id %q", s)
	}
	c, err := strconv.ParseInt(s[i+1:], 10, 32)
	if err != nil {
		return TransactionID{}, errors.Wrapf(err, "invalid transaction id %q", s)
	}
	return TransactionID{Time: int32(t), Counter: int32(c)}, nil
}

// Operation is a mailbox mutation to be logged. Writers only read it.
type Operation interface {
	MailboxID() int32
	TransactionID() TransactionID
	OpCode() OpCode
	// Timestamp is the operation's own logical time in milliseconds.
	Timestamp() int64
	IsStartMarker() bool
	// IsEndMarker reports whether the operation commits or aborts its transaction.
	IsEndMarker() bool
}

// Op is a plain Operation value.
type Op struct {
	Mailbox int32
	Txn     TransactionID
	Code    OpCode
	Time    int64
	Start   bool
	End     bool
}

var _ Operation = (*Op)(nil)

func (o *Op) MailboxID() int32             { return o.Mailbox }
func (o *Op) TransactionID() TransactionID { return o.Txn }
func (o *Op) OpCode() OpCode               { return o.Code }
func (o *Op) Timestamp() int64             { return o.Time }
func (o *Op) IsStartMarker() bool          { return o.Start }
func (o *Op) IsEndMarker() bool            { return o.End }
