package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"food-delivery/internal/util"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// Locker serializes access to the data files across goroutines and processes.
// The returned function releases the lock.
type Locker interface {
	Lock(ctx context.Context) (func(), error)
	RLock(ctx context.Context) (func(), error)
	Close() error
}

// FileLocker is an advisory flock(2) lock on a file next to the data files,
// guarded by a mutex for goroutines of the same process.
type FileLocker struct {
	mu         sync.Mutex
	fl         *flock.Flock
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewFileLocker creates a locker backed by the file at path
func NewFileLocker(path string) *FileLocker {
	return &FileLocker{
		fl:         flock.New(path),
		retryDelay: 20 * time.Millisecond,
		logger:     util.GetLogger(),
	}
}

// Lock takes the exclusive lock
func (l *FileLocker) Lock(ctx context.Context) (func(), error) {
	return l.acquire(ctx, l.fl.TryLockContext)
}

// RLock takes the shared lock
func (l *FileLocker) RLock(ctx context.Context) (func(), error) {
	return l.acquire(ctx, l.fl.TryRLockContext)
}

func (l *FileLocker) acquire(ctx context.Context, try func(context.Context, time.Duration) (bool, error)) (func(), error) {
	l.mu.Lock()

	locked, err := try(ctx, l.retryDelay)
	if err == nil && !locked {
		err = errors.New("lock not acquired")
	}
	if err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("failed to lock %s: %w", l.fl.Path(), err)
	}

	return func() {
		if err := l.fl.Unlock(); err != nil {
			l.logger.Error("Failed to release file lock",
				zap.String("path", l.fl.Path()),
				zap.Error(err))
		}
		l.mu.Unlock()
	}, nil
}

// Close releases the lock file handle
func (l *FileLocker) Close() error {
	return l.fl.Close()
}
