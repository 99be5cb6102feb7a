package lock

import (
	"context"
	"time"
)

// LocalLocker 单实例部署时使用的进程内锁，等待策略与 RedisLocker 一致
type LocalLocker struct {
	sem  chan struct{}
	opts Options
}

func NewLocalLocker(opts Options) *LocalLocker {
	return &LocalLocker{sem: make(chan struct{}, 1), opts: opts}
}

func (l *LocalLocker) Acquire(ctx context.Context) (func(), error) {
	wait := l.opts.RetryInterval * time.Duration(l.opts.MaxRetries)
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrLockFailed
	}
}
