package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

const lockRetryInterval = 100 * time.Millisecond

// LockHandle is a scoped distributed lock; Release is idempotent-safe to
// call more than once and safe to call after the process that acquired
// it would otherwise have lost the lock (it publishes its token for
// compare-and-delete release, never blindly deletes).
type LockHandle struct {
	adapter *Adapter
	key     string
	token   string
}

// Release publishes the lock's token for an idempotent unlock: the
// underlying store only deletes the key if it still holds this token,
// so a lock that already expired or was stolen is left alone.
func (h *LockHandle) Release(ctx context.Context) error {
	return h.adapter.store.Unlock(ctx, h.key, h.token)
}

func randomToken() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// TryAcquireLock attempts to take a distributed lock on key, held for
// hold, retrying every ~100ms until timeout elapses. timeout == 0 means
// a single attempt. Returns ErrLockTimeout if the hold could not be
// acquired in time.
func (a *Adapter) TryAcquireLock(ctx context.Context, key string, hold, timeout time.Duration) (*LockHandle, error) {
	token := randomToken()
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		var ok bool
		err := a.withBreaker(ctx, "try_lock", func(ctx context.Context) error {
			var innerErr error
			ok, innerErr = a.store.TryLock(ctx, key, token, hold)
			return innerErr
		})
		if err != nil {
			return nil, err
		}
		if ok {
			return &LockHandle{adapter: a, key: key, token: token}, nil
		}

		if timeout == 0 || (!deadline.IsZero() && time.Now().After(deadline)) {
			return nil, errLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// errLockTimeout mirrors cascache.ErrLockTimeout without importing the
// root package (which would create an import cycle); the root package's
// public API wraps this into cascache.ErrLockTimeout.
var errLockTimeout = lockTimeoutError{}

type lockTimeoutError struct{}

func (lockTimeoutError) Error() string { return "distributed: LockTimeout" }

// ErrLockTimeout is the sentinel returned by TryAcquireLock on timeout.
var ErrLockTimeout error = errLockTimeout
