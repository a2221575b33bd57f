package distlog

import (
	"strconv"

	"github.com/chn0318/redolog/redolog"
)

// ShardIndex returns the shard that records for mailboxID go to.
// Operations for all mailboxes or an unknown mailbox go to shard 0.
// Changing shardCount remaps every mailbox.
func ShardIndex(mailboxID int32, shardCount int) int {
	if mailboxID == redolog.MailboxIDAll || mailboxID == redolog.UnknownID {
		return 0
	}
	idx := int(mailboxID) % shardCount
	if idx < 0 {
		idx += shardCount
	}
	return idx
}

// StreamName returns the store name of shard index.
func StreamName(prefix string, index int) string {
	return prefix + strconv.Itoa(index)
}
