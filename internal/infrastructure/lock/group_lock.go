// Package lock serialises work per family group across API and worker processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"family-registry-backend/pkg/logger"
)

// Locker cấp quyền độc quyền trên một group. unlock phải được gọi đúng một lần.
type Locker interface {
	Lock(ctx context.Context, groupID int64) (unlock func(), err error)
}

// ========================================
// LOCAL (in-process) LOCK
// ========================================

// LocalLocker là mutex theo group trong cùng process, tôn trọng ctx khi chờ.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[int64]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[int64]chan struct{})}
}

func (l *LocalLocker) slot(groupID int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[groupID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[groupID] = ch
	}
	return ch
}

func (l *LocalLocker) Lock(ctx context.Context, groupID int64) (func(), error) {
	ch := l.slot(groupID)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for group %d lock: %w", groupID, ctx.Err())
	}
}

// ========================================
// REDIS LOCK
// ========================================
// SET key token NX PX ttl; release chỉ xóa khi token còn khớp (Lua).
// Redis lỗi -> fallback LocalLocker: vẫn serialise trong process, còn giữa các
// process thì pg_advisory_xact_lock trong transaction chặn tiếp.

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client    *redis.Client
	ttl       time.Duration
	retryWait time.Duration
	fallback  *LocalLocker
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:    client,
		ttl:       ttl,
		retryWait: 50 * time.Millisecond,
		fallback:  NewLocalLocker(),
	}
}

func lockKey(groupID int64) string {
	return fmt.Sprintf("genealogy:lock:group:%d", groupID)
}

func (r *RedisLocker) Lock(ctx context.Context, groupID int64) (func(), error) {
	// local slot trước: các request trong cùng process không tranh nhau trên Redis
	unlockLocal, err := r.fallback.Lock(ctx, groupID)
	if err != nil {
		return nil, err
	}

	key := lockKey(groupID)
	token := uuid.NewString()
	ticker := time.NewTicker(r.retryWait)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		switch {
		case err == nil && ok:
			return r.releaser(key, token, unlockLocal), nil
		case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
			unlockLocal()
			return nil, fmt.Errorf("waiting for group %d lock: %w", groupID, err)
		case err != nil:
			logger.Warn("[LOCK] redis unavailable, falling back to local lock", err, map[string]interface{}{
				"group_id": groupID,
			})
			return unlockLocal, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			unlockLocal()
			return nil, fmt.Errorf("waiting for group %d lock: %w", groupID, ctx.Err())
		}
	}
}

func (r *RedisLocker) releaser(key, token string, unlockLocal func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
				// key sẽ tự hết hạn theo TTL
				logger.Error("[LOCK] release failed", err)
			}
			unlockLocal()
		})
	}
}
