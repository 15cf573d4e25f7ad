package redisclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"food-delivery/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LockClient is the part of Client the locker needs
type LockClient interface {
	AcquireLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error)
	RefreshLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey, token string) (bool, error)
}

// Locker serializes data store access across hosts with a Redis key.
// Readers take the same exclusive lock as writers.
//
// While held, the key's ttl is refreshed every ttl/3. The ttl only bounds
// how long a crashed holder can block others; a holder that stalls for a
// full ttl without refreshing (e.g. a long GC or network partition) can
// still lose the key.
type Locker struct {
	client     LockClient
	key        string
	ttl        time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewLocker creates a Redis backed store locker
func NewLocker(client LockClient, key string, ttl time.Duration) *Locker {
	return &Locker{
		client:     client,
		key:        key,
		ttl:        ttl,
		retryDelay: 25 * time.Millisecond,
		logger:     util.GetLogger(),
	}
}

// Lock blocks until the lock is held or ctx is done
func (l *Locker) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	for {
		ok, err := l.client.AcquireLock(ctx, l.key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire redis lock %s: %w", l.key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire redis lock %s: %w", l.key, ctx.Err())
		case <-time.After(l.retryDelay):
		}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(token, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			l.release(token)
		})
	}, nil
}

// keepAlive refreshes the key until stop is closed or ownership is lost
func (l *Locker) keepAlive(token string, stop <-chan struct{}) {
	interval := l.ttl / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			ok, err := l.client.RefreshLock(ctx, l.key, token, l.ttl)
			cancel()
			if err != nil {
				l.logger.Warn("Failed to refresh redis lock", zap.String("key", l.key), zap.Error(err))
				continue
			}
			if !ok {
				l.logger.Error("Redis lock lost while held", zap.String("key", l.key))
				return
			}
		}
	}
}

func (l *Locker) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	released, err := l.client.ReleaseLock(ctx, l.key, token)
	if err != nil {
		l.logger.Error("Failed to release redis lock", zap.String("key", l.key), zap.Error(err))
		return
	}
	if !released {
		l.logger.Warn("Redis lock expired before release", zap.String("key", l.key))
	}
}

// RLock is the same exclusive lock as Lock
func (l *Locker) RLock(ctx context.Context) (func(), error) {
	return l.Lock(ctx)
}

// Close is a no-op, the Redis client is owned by the caller
func (l *Locker) Close() error {
	return nil
}
