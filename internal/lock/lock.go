package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired ctx结束前没有拿到锁
var ErrNotAcquired = errors.New("lock not acquired")

// Release 释放锁，可重复调用
type Release func()

// Locker 按key互斥，ttl到期后自动失效
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// ChatKey 同一用户在同一机器人下的请求串行
func ChatKey(chatbotID uint, channel, userID string) string {
	return fmt.Sprintf("chatbot:lock:%d:%s:%s", chatbotID, channel, userID)
}

const retryInterval = 50 * time.Millisecond

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLocker SET NX PX，释放时校验token，避免误删他人持有的锁
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	token := uuid.NewString()
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token)
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		case <-ticker.C:
		}
	}
}

// Ping 健康检查
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// MemoryLocker 单进程互斥
type MemoryLocker struct {
	mu    sync.Mutex
	seq   uint64
	held  map[string]memoryHold
	clock func() time.Time
}

type memoryHold struct {
	token   uint64
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryHold), clock: time.Now}
}

func (l *MemoryLocker) tryLock(key string, ttl time.Duration) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return 0, false
	}
	l.seq++
	l.held[key] = memoryHold{token: l.seq, expires: now.Add(ttl)}
	return l.seq, true
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	ticker := time.NewTicker(retryInterval / 5)
	defer ticker.Stop()

	for {
		if token, ok := l.tryLock(key, ttl); ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					defer l.mu.Unlock()
					if h, ok := l.held[key]; ok && h.token == token {
						delete(l.held, key)
					}
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		case <-ticker.C:
		}
	}
}
