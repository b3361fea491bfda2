package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable: backend không kết nối được; caller coi như cache miss.
var ErrUnavailable = errors.New("cache unavailable")

// Cache interface định nghĩa contract cho cache layer
// Cho phép swap implementation (Redis, no-op cho test/CLI)
type Cache interface {
	// Get lấy data từ cache và unmarshal vào dest
	// - found = true: cache hit, data đã unmarshal vào dest
	// - found = false: cache miss, dest không bị thay đổi
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set lưu data vào cache với TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete xóa các keys khỏi cache
	Delete(ctx context.Context, keys ...string) error

	// DeletePattern xóa mọi key khớp glob pattern (SCAN, không dùng KEYS)
	DeletePattern(ctx context.Context, pattern string) error

	Ping(ctx context.Context) error
}

// Noop là Cache không lưu gì; dùng khi chạy không có Redis.
type Noop struct{}

func (Noop) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (Noop) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (Noop) Delete(context.Context, ...string) error { return nil }
func (Noop) DeletePattern(context.Context, string) error { return nil }
func (Noop) Ping(context.Context) error { return nil }
