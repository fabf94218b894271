package ports

import (
	"context"
	"time"
)

// ReleaseFunc gives up a session lock. Releasing a lease that already
// expired must not disturb whoever holds the session now.
type ReleaseFunc func(ctx context.Context) error

// SessionLocker serialises writers of one session's history across processes
// sharing a HistoryStore. Locks are leases: a holder that dies loses the
// session after ttl.
type SessionLocker interface {
	// LockSession blocks until sessionID is free or ctx is done.
	// Different sessions never contend.
	LockSession(ctx context.Context, sessionID string, ttl time.Duration) (ReleaseFunc, error)
}
