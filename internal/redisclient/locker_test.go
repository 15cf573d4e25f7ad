package redisclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLockClient mimics SET NX plus compare-and-delete on a single key.
type fakeLockClient struct {
	mu         sync.Mutex
	holder     string
	attempts   int
	refreshes  int
	acquireErr error
}

func (f *fakeLockClient) AcquireLock(_ context.Context, _ string, token string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.holder != "" {
		return false, nil
	}
	f.holder = token
	return true, nil
}

func (f *fakeLockClient) RefreshLock(_ context.Context, _ string, token string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holder != token {
		return false, nil
	}
	f.refreshes++
	return true, nil
}

func (f *fakeLockClient) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func (f *fakeLockClient) ReleaseLock(_ context.Context, _ string, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holder != token {
		return false, nil
	}
	f.holder = ""
	return true, nil
}

func (f *fakeLockClient) held() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holder
}

func newTestLocker(client LockClient) *Locker {
	l := NewLocker(client, "datastore", time.Second)
	l.retryDelay = time.Millisecond
	return l
}

func TestLockerAcquireAndRelease(t *testing.T) {
	client := &fakeLockClient{}
	l := newTestLocker(client)

	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, client.held())

	unlock()
	assert.Empty(t, client.held())
}

func TestLockerRetriesUntilReleased(t *testing.T) {
	client := &fakeLockClient{}
	l := newTestLocker(client)

	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)

	acquired := make(chan func(), 1)
	go func() {
		next, err := l.RLock(context.Background())
		if err == nil {
			acquired <- next
		}
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	default:
	}

	unlock()

	select {
	case next := <-acquired:
		next()
	case <-time.After(2 * time.Second):
		t.Fatal("lock was not acquired after release")
	}
	assert.Empty(t, client.held())
}

func TestLockerHonoursContext(t *testing.T) {
	client := &fakeLockClient{holder: "someone-else"}
	l := newTestLocker(client)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := l.Lock(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, client.attempts, 1)
	assert.Equal(t, "someone-else", client.held())
}

func TestLockerSurfacesClientErrors(t *testing.T) {
	boom := errors.New("connection refused")
	l := newTestLocker(&fakeLockClient{acquireErr: boom})

	_, err := l.Lock(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStaleUnlockKeepsNewHolder(t *testing.T) {
	client := &fakeLockClient{}
	l := newTestLocker(client)

	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)

	// the key expired and another host took it
	client.mu.Lock()
	client.holder = "other-host"
	client.mu.Unlock()

	unlock()
	assert.Equal(t, "other-host", client.held())
}

func TestLockerRefreshesWhileHeld(t *testing.T) {
	client := &fakeLockClient{}
	l := NewLocker(client, "datastore", 15*time.Millisecond)

	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return client.refreshCount() >= 2 },
		time.Second, 5*time.Millisecond)

	unlock()
	after := client.refreshCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, client.refreshCount(), "no refresh after unlock")
	assert.Empty(t, client.held())

	unlock()
}
