package ledger

import (
	"context"
	"fmt"
	"sync/atomic"

	"crowdfund/internal/model"

	"gorm.io/gorm"
)

const (
	guardIdle int32 = iota
	guardBusy
)

// guard 非重入锁，深度为 1
// 只做 CAS，不排队：占用期间的任何调用都直接失败
type guard struct {
	state atomic.Int32
}

func (g *guard) acquire() error {
	if !g.state.CompareAndSwap(guardIdle, guardBusy) {
		return ErrReentrantCall
	}
	return nil
}

func (g *guard) release() {
	g.state.Store(guardIdle)
}

func (g *guard) busy() bool {
	return g.state.Load() == guardBusy
}

func requireOwner(settings *model.Settings, caller string) error {
	if caller == "" || caller != settings.Owner {
		return fmt.Errorf("%w: 需要管理员权限", ErrUnauthorized)
	}
	return nil
}

func requireNotPaused(settings *model.Settings) error {
	if settings.Paused {
		return ErrPaused
	}
	return nil
}

func (l *Ledger) requireNotDenylisted(ctx context.Context, tx *gorm.DB, caller string) error {
	denied, err := l.settingsRepo.IsDenylisted(ctx, tx, caller)
	if err != nil {
		return fmt.Errorf("查询黑名单失败: %w", err)
	}
	if denied {
		return ErrDenylisted
	}
	return nil
}

// requireCaller 托管账户只能由账本自己操作，不能作为调用方
func (l *Ledger) requireCaller(caller string) error {
	if caller == "" {
		return fmt.Errorf("%w: 缺少调用方身份", ErrUnauthorized)
	}
	if caller == l.custody {
		return fmt.Errorf("%w: 托管账户不能作为调用方", ErrUnauthorized)
	}
	return nil
}
