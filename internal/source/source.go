// Package source defines the directory-source boundary: where meetings
// and unread mail come from, and how fetch failures are classified.
package source

import (
	"context"
	"time"

	"meetbot/internal/model"
)

// Source is the remote calendar/mailbox the update loop polls.
//
// Implementations are called from a single goroutine and may keep an
// unsynchronized lazily-built session.
type Source interface {
	// FetchSnapshot returns all meetings in [windowStart, windowEnd)
	// plus the current unread mail. Both instants are UTC.
	FetchSnapshot(ctx context.Context, windowStart, windowEnd time.Time) (model.Snapshot, error)

	// Close releases the underlying session, if any.
	Close() error
}

// ErrorKind is the explicit classification the update loop's policy is a
// function of: transient errors skip the cycle, auth errors terminate.
type ErrorKind int

const (
	// KindTransient covers anything retryable at the next interval.
	KindTransient ErrorKind = iota
	// KindAuth means credentials are rejected; polling cannot recover.
	KindAuth
)

func (k ErrorKind) String() string {
	if k == KindAuth {
		return "auth"
	}
	return "transient"
}
