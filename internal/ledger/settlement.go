package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ============================================================================
// 资金结算
// ============================================================================
//
// 所有出账操作都遵循同一顺序：检查 -> 修改状态 -> 请求宿主划转。
// 状态在划转之前写入事务，收款方回调中看到的已经是结算后的状态；
// 划转失败时返回 ErrTransferFailed，事务回滚，状态恢复原样。
// ============================================================================

// Settlement 发起人提取资金的结果
type Settlement struct {
	CampaignID int64 `json:"campaign_id"`
	Raised     int64 `json:"raised"`
	Fee        int64 `json:"fee"`
	Payout     int64 `json:"payout"`
}

// WithdrawFunds 活动成功后发起人提取资金，扣除平台费，每个活动只能成功一次
func (l *Ledger) WithdrawFunds(ctx context.Context, caller string, id int64) (*Settlement, error) {
	var result *Settlement
	err := l.run(ctx, "withdrawFunds", func(ctx context.Context, tx *gorm.DB) error {
		settings, err := l.loadSettings(ctx, tx)
		if err != nil {
			return err
		}
		campaign, err := l.loadCampaign(ctx, tx, id)
		if err != nil {
			return err
		}
		if caller != campaign.Creator {
			return fmt.Errorf("%w: 只有发起人可以提取资金", ErrUnauthorized)
		}
		if err := requireNotPaused(settings); err != nil {
			return err
		}

		// 取消只对退款视为"已结束"，对提取不成立
		switch PhaseOf(campaign, l.now()) {
		case PhaseSettled:
			return ErrAlreadySettled
		case PhaseCancelled:
			return ErrCampaignCancelled
		case PhaseOpen:
			return ErrCampaignOngoing
		case PhaseFailed:
			return ErrGoalNotReached
		}

		fee := feeOf(campaign.Raised, settings.FeePercent)
		payout := campaign.Raised - fee
		feeBalance, err := addAmount(settings.FeeBalance, fee)
		if err != nil {
			return err
		}

		err = l.campaignRepo.Update(ctx, tx, id, map[string]interface{}{
			"withdrawn": true,
			"active":    false,
		})
		if err != nil {
			return fmt.Errorf("更新结算状态失败: %w", err)
		}
		if err := l.settingsRepo.Update(ctx, tx, map[string]interface{}{"fee_balance": feeBalance}); err != nil {
			return fmt.Errorf("更新平台费余额失败: %w", err)
		}

		if payout > 0 {
			if err := l.transfer(ctx, tx, l.custody, campaign.Creator, payout, campaignRef(id, "withdraw")); err != nil {
				return err
			}
		}

		result = &Settlement{CampaignID: id, Raised: campaign.Raised, Fee: fee, Payout: payout}
		return l.notify(ctx, tx, campaignEvent(EventFundsWithdrawn, id, map[string]interface{}{
			"creator": campaign.Creator,
			"raised":  campaign.Raised,
			"fee":     fee,
			"payout":  payout,
		}))
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("活动资金提取成功",
		zap.Int64("campaign_id", id),
		zap.Int64("raised", result.Raised),
		zap.Int64("fee", result.Fee),
		zap.Int64("payout", result.Payout),
	)
	return result, nil
}

// GetRefund 活动失败或取消后出资人取回全部出资
// 不受暂停和黑名单限制，每个出资人只能成功一次
func (l *Ledger) GetRefund(ctx context.Context, caller string, id int64) (int64, error) {
	var refunded int64
	err := l.run(ctx, "getRefund", func(ctx context.Context, tx *gorm.DB) error {
		if err := l.requireCaller(caller); err != nil {
			return err
		}
		campaign, err := l.loadCampaign(ctx, tx, id)
		if err != nil {
			return err
		}

		switch PhaseOf(campaign, l.now()) {
		case PhaseSettled:
			return ErrAlreadySettled
		case PhaseOpen:
			return ErrCampaignOngoing
		case PhaseSucceeded:
			return ErrGoalReached
		}

		contribution, err := l.contributionRepo.Get(ctx, tx, id, caller)
		if err != nil {
			return fmt.Errorf("查询出资记录失败: %w", err)
		}
		if contribution == nil || contribution.Amount == 0 {
			return ErrNoContribution
		}

		amount := contribution.Amount
		if err := l.contributionRepo.SetAmount(ctx, tx, contribution.ID, 0); err != nil {
			return fmt.Errorf("清零出资记录失败: %w", err)
		}
		if err := l.campaignRepo.Update(ctx, tx, id, map[string]interface{}{"raised": campaign.Raised - amount}); err != nil {
			return fmt.Errorf("更新募集金额失败: %w", err)
		}

		if err := l.transfer(ctx, tx, l.custody, caller, amount, campaignRef(id, "refund")); err != nil {
			return err
		}

		refunded = amount
		return l.notify(ctx, tx, campaignEvent(EventRefundIssued, id, map[string]interface{}{
			"contributor": caller,
			"amount":      amount,
		}))
	})
	if err != nil {
		return 0, err
	}

	l.logger.Info("退款成功",
		zap.Int64("campaign_id", id),
		zap.String("contributor", caller),
		zap.Int64("amount", refunded),
	)
	return refunded, nil
}

// WithdrawPlatformFees 管理员提取累计平台费
func (l *Ledger) WithdrawPlatformFees(ctx context.Context, caller string) (int64, error) {
	var withdrawn int64
	err := l.run(ctx, "withdrawPlatformFees", func(ctx context.Context, tx *gorm.DB) error {
		settings, err := l.loadSettings(ctx, tx)
		if err != nil {
			return err
		}
		if err := requireOwner(settings, caller); err != nil {
			return err
		}
		if settings.FeeBalance == 0 {
			return ErrNothingToWithdraw
		}

		amount := settings.FeeBalance
		if err := l.settingsRepo.Update(ctx, tx, map[string]interface{}{"fee_balance": 0}); err != nil {
			return fmt.Errorf("清零平台费余额失败: %w", err)
		}
		if err := l.transfer(ctx, tx, l.custody, caller, amount, "platform:fees"); err != nil {
			return err
		}

		withdrawn = amount
		return l.notify(ctx, tx, Event{
			Type: EventPlatformFeesWithdrawn,
			Data: map[string]interface{}{"owner": caller, "amount": amount},
		})
	})
	if err != nil {
		return 0, err
	}

	l.logger.Info("平台费提取成功", zap.String("owner", caller), zap.Int64("amount", withdrawn))
	return withdrawn, nil
}

// EmergencyWithdraw 暂停期间管理员把活动资金全部转出
// 出资记录保留作为后续赔付依据，活动被标记为已结算，之后不能再退款或提取
func (l *Ledger) EmergencyWithdraw(ctx context.Context, caller string, id int64) (int64, error) {
	var drained int64
	err := l.run(ctx, "emergencyWithdraw", func(ctx context.Context, tx *gorm.DB) error {
		settings, err := l.loadSettings(ctx, tx)
		if err != nil {
			return err
		}
		if err := requireOwner(settings, caller); err != nil {
			return err
		}
		if !settings.Paused {
			return ErrNotPaused
		}
		campaign, err := l.loadCampaign(ctx, tx, id)
		if err != nil {
			return err
		}
		if campaign.Withdrawn {
			return ErrAlreadySettled
		}
		if campaign.Raised == 0 {
			return ErrNothingToWithdraw
		}

		amount := campaign.Raised
		err = l.campaignRepo.Update(ctx, tx, id, map[string]interface{}{
			"raised":    0,
			"withdrawn": true,
			"active":    false,
		})
		if err != nil {
			return fmt.Errorf("更新活动状态失败: %w", err)
		}
		if err := l.transfer(ctx, tx, l.custody, caller, amount, campaignRef(id, "emergency")); err != nil {
			return err
		}

		drained = amount
		return l.notify(ctx, tx, campaignEvent(EventEmergencyWithdrawal, id, map[string]interface{}{
			"owner":  caller,
			"amount": amount,
		}))
	})
	if err != nil {
		return 0, err
	}

	l.logger.Warn("紧急提取活动资金",
		zap.Int64("campaign_id", id),
		zap.String("owner", caller),
		zap.Int64("amount", drained),
	)
	return drained, nil
}
