package movie

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	// DefaultLockTimeout is used when FileDatabase.LockTimeout is 0
	DefaultLockTimeout = 3 * time.Second

	lockRetryInterval = 50 * time.Millisecond
)

// LockPath returns path of the lock file for storage file at path
func LockPath(path string) string {
	return path + ".lock"
}

func noUnlock() {}

// lock acquires an advisory lock on <Path>.lock if db.Lock is set.
// Readers take a shared lock, writers an exclusive one.
// Calls nested inside a held lock share it and only the outermost
// unlock releases it. A nested exclusive lock inside a shared one
// fails with ErrLockUpgrade.
func (db *FileDatabase) lock(exclusive bool) (unlock func(), err error) {
	if !db.Lock {
		return noUnlock, nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.holds > 0 {
		if exclusive && !db.holdsExclusive {
			return nil, ErrLockUpgrade
		}
		db.holds++
		return db.unlockOnce(), nil
	}

	if err = os.MkdirAll(filepath.Dir(db.Path), 0755); err != nil {
		return nil, err
	}
	if db.fileLock == nil {
		db.fileLock = flock.New(LockPath(db.Path))
	}
	timeout := db.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var locked bool
	if exclusive {
		locked, err = db.fileLock.TryLockContext(ctx, lockRetryInterval)
	} else {
		locked, err = db.fileLock.TryRLockContext(ctx, lockRetryInterval)
	}
	if errors.Is(err, context.DeadlineExceeded) || (err == nil && !locked) {
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, LockPath(db.Path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	db.holds = 1
	db.holdsExclusive = exclusive
	return db.unlockOnce(), nil
}

// unlockOnce returns a func that drops one hold. Calling it more than
// once is a no-op.
func (db *FileDatabase) unlockOnce() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			db.mu.Lock()
			defer db.mu.Unlock()
			db.holds--
			if db.holds == 0 {
				db.holdsExclusive = false
				_ = db.fileLock.Unlock()
			}
		})
	}
}

// Exclusive runs fn while holding an exclusive lock on the storage file.
// For operations that replace the file as a whole, like restoring a backup.
// fn can call other methods of db, they share the lock.
func (db *FileDatabase) Exclusive(fn func() error) error {
	unlock, err := db.lock(true)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}
