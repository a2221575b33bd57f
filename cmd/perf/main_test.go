package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckFlags(t *testing.T) {
	require.NoError(t, checkFlags(10000, 32, 3, 1000, 1024))
	require.NoError(t, checkFlags(0, 1, 0, 1, 0))

	for _, tt := range []struct {
		name                                        string
		total, concurrency, ops, mailboxes, payload int
	}{
		{"no mailboxes", 10, 1, 1, 0, 1},
		{"negative mailboxes", 10, 1, 1, -3, 1},
		{"no workers", 10, 0, 1, 1, 1},
		{"negative txns", -1, 1, 1, 1, 1},
		{"negative ops", 10, 1, -1, 1, 1},
		{"negative payload", 10, 1, 1, 1, -1},
	} {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, checkFlags(tt.total, tt.concurrency, tt.ops, tt.mailboxes, tt.payload))
		})
	}
}
