package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_Exclusive(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)

	// group khác không bị chặn
	unlockOther, err := l.Lock(context.Background(), 2)
	require.NoError(t, err)
	unlockOther()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // gọi lại không được nhả slot của người khác

	again, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)
	again()
}

func TestLocalLocker_WaiterAcquiresAfterRelease(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), 7)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(context.Background(), 7)
		if err == nil {
			u()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock returned while the first holder still had the group")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestRedisLocker_FallsBackWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisLocker(client, time.Second)
	unlock, err := l.Lock(context.Background(), 3)
	require.NoError(t, err)

	// local slot vẫn được giữ
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.fallback.Lock(ctx, 3)
	assert.Error(t, err)

	unlock()
}
