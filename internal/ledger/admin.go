package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UpdatePlatformFee 调整平台费率，不能超过 MaxFeePercent
func (l *Ledger) UpdatePlatformFee(ctx context.Context, caller string, percent int64) error {
	return l.run(ctx, "updatePlatformFee", func(ctx context.Context, tx *gorm.DB) error {
		settings, err := l.loadSettings(ctx, tx)
		if err != nil {
			return err
		}
		if err := requireOwner(settings, caller); err != nil {
			return err
		}
		if percent < 0 || percent > MaxFeePercent {
			return fmt.Errorf("%w: 费率必须在 0-%d 之间", ErrInvalidInput, MaxFeePercent)
		}

		if err := l.settingsRepo.Update(ctx, tx, map[string]interface{}{"fee_percent": percent}); err != nil {
			return fmt.Errorf("更新费率失败: %w", err)
		}
		return l.notify(ctx, tx, Event{
			Type: EventPlatformFeeUpdated,
			Data: map[string]interface{}{"old": settings.FeePercent, "new": percent},
		})
	})
}

// SetDenylist 加入或移出黑名单
func (l *Ledger) SetDenylist(ctx context.Context, caller, account string, denied bool) error {
	return l.run(ctx, "setDenylist", func(ctx context.Context, tx *gorm.DB) error {
		settings, err := l.loadSettings(ctx, tx)
		if err != nil {
			return err
		}
		if err := requireOwner(settings, caller); err != nil {
			return err
		}
		if account == "" {
			return fmt.Errorf("%w: 账户不能为空", ErrInvalidInput)
		}

		if denied {
			err = l.settingsRepo.AddDenylist(ctx, tx, account)
		} else {
			err = l.settingsRepo.RemoveDenylist(ctx, tx, account)
		}
		if err != nil {
			return fmt.Errorf("更新黑名单失败: %w", err)
		}
		return l.notify(ctx, tx, Event{
			Type: EventDenylistUpdated,
			Data: map[string]interface{}{"account": account, "denied": denied},
		})
	})
}

func (l *Ledger) Pause(ctx context.Context, caller string) error {
	return l.setPaused(ctx, caller, true)
}

func (l *Ledger) Unpause(ctx context.Context, caller string) error {
	return l.setPaused(ctx, caller, false)
}

func (l *Ledger) setPaused(ctx context.Context, caller string, paused bool) error {
	op, eventType := "pause", EventPaused
	if !paused {
		op, eventType = "unpause", EventUnpaused
	}
	err := l.run(ctx, op, func(ctx context.Context, tx *gorm.DB) error {
		settings, err := l.loadSettings(ctx, tx)
		if err != nil {
			return err
		}
		if err := requireOwner(settings, caller); err != nil {
			return err
		}
		if settings.Paused == paused {
			if paused {
				return fmt.Errorf("%w: 系统已处于暂停状态", ErrInvalidInput)
			}
			return ErrNotPaused
		}

		if err := l.settingsRepo.Update(ctx, tx, map[string]interface{}{"paused": paused}); err != nil {
			return fmt.Errorf("更新暂停状态失败: %w", err)
		}
		return l.notify(ctx, tx, Event{
			Type: eventType,
			Data: map[string]interface{}{"owner": caller},
		})
	})
	if err != nil {
		return err
	}
	l.logger.Warn("系统暂停状态变更", zap.Bool("paused", paused), zap.String("owner", caller))
	return nil
}

// TransferOwnership 发起所有权转移，新所有者调用 AcceptOwnership 后生效
// 再次调用会覆盖未完成的转移
func (l *Ledger) TransferOwnership(ctx context.Context, caller, newOwner string) error {
	return l.run(ctx, "transferOwnership", func(ctx context.Context, tx *gorm.DB) error {
		settings, err := l.loadSettings(ctx, tx)
		if err != nil {
			return err
		}
		if err := requireOwner(settings, caller); err != nil {
			return err
		}
		if newOwner == "" || newOwner == l.custody {
			return fmt.Errorf("%w: 新所有者不能为空或为托管账户", ErrInvalidInput)
		}

		if err := l.settingsRepo.Update(ctx, tx, map[string]interface{}{"pending_owner": newOwner}); err != nil {
			return fmt.Errorf("记录待接收所有者失败: %w", err)
		}
		return l.notify(ctx, tx, Event{
			Type: EventOwnershipTransferStarted,
			Data: map[string]interface{}{"owner": caller, "pending_owner": newOwner},
		})
	})
}

func (l *Ledger) AcceptOwnership(ctx context.Context, caller string) error {
	err := l.run(ctx, "acceptOwnership", func(ctx context.Context, tx *gorm.DB) error {
		settings, err := l.loadSettings(ctx, tx)
		if err != nil {
			return err
		}
		if settings.PendingOwner == "" || caller != settings.PendingOwner {
			return fmt.Errorf("%w: 不是待接收的所有者", ErrUnauthorized)
		}

		err = l.settingsRepo.Update(ctx, tx, map[string]interface{}{
			"owner":         caller,
			"pending_owner": "",
		})
		if err != nil {
			return fmt.Errorf("更新所有者失败: %w", err)
		}
		return l.notify(ctx, tx, Event{
			Type: EventOwnershipTransferred,
			Data: map[string]interface{}{"previous": settings.Owner, "owner": caller},
		})
	})
	if err != nil {
		return err
	}
	l.logger.Warn("所有权已转移", zap.String("owner", caller))
	return nil
}
