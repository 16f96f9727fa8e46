package database

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryInterval = 100 * time.Millisecond

// Lock is an exclusive, cross-process lock held next to the database file.
// Only the process holding it may open the database for writing.
type Lock struct {
	flock *flock.Flock
}

// AcquireLock takes the lock for dbPath, retrying until ctx is done.
func AcquireLock(ctx context.Context, dbPath string) (*Lock, error) {
	fl := flock.New(dbPath + ".lock")
	ok, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", dbPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: held by another process", dbPath)
	}
	return &Lock{flock: fl}, nil
}

// Release unlocks; it is safe to call more than once.
func (l *Lock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	return nil
}
