package lock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要串行化锁？】
//
// 账本核心只允许一个操作在执行中，第二个进入的调用会被当作重入直接拒绝。
// 多个 HTTP 请求、多个服务实例同时调用时，需要在进入核心之前排队：
//
//   请求1: 获取锁 -> 提取资金 -> 释放锁
//   请求2: 获取锁失败，等待... -> 获取锁 -> 退款 -> 释放锁
//
// 这样核心看到的只有一个顶层调用，"锁被占用"只可能来自收款方回调的重入。
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止持有者崩溃后死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证"检查+删除"的原子性
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

const unlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁，value 不匹配（锁已过期被别人拿走）时返回 ErrLockExpired
func (l *DistributedLock) Unlock(ctx context.Context) error {
	deleted, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Int64()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockExpired
	}
	return nil
}

// ============================================================================
// 账本串行化锁
// ============================================================================

// Locker 账本操作的串行化锁
// Acquire 成功后必须调用返回的 release
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Options 获取锁的等待策略
type Options struct {
	TTL           time.Duration
	RetryInterval time.Duration
	MaxRetries    int
}

// RedisLocker 多实例部署时使用，所有实例共用一把账本锁
type RedisLocker struct {
	client *redis.Client
	key    string
	opts   Options
	onLost func(error)
}

func NewRedisLocker(client *redis.Client, key string, opts Options, onLost func(error)) *RedisLocker {
	return &RedisLocker{client: client, key: key, opts: opts, onLost: onLost}
}

func (r *RedisLocker) Acquire(ctx context.Context) (func(), error) {
	// value 使用随机 ID，释放时只删除自己持有的锁
	l := NewDistributedLock(r.client, r.key, uuid.NewString(), r.opts.TTL)
	if err := l.Lock(ctx, r.opts.RetryInterval, r.opts.MaxRetries); err != nil {
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := l.Unlock(ctx); err != nil && r.onLost != nil {
			r.onLost(err)
		}
	}, nil
}
