package ledger

import (
	"context"
	"fmt"

	"crowdfund/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Donate 向活动出资
//
// 记账和资金转入托管账户在同一个事务内完成，
// 宿主扣款失败（例如余额不足）时记账一并回滚。
func (l *Ledger) Donate(ctx context.Context, caller string, id int64, amount int64) (*model.Contribution, error) {
	var result *model.Contribution
	err := l.run(ctx, "donate", func(ctx context.Context, tx *gorm.DB) error {
		if err := l.requireCaller(caller); err != nil {
			return err
		}
		settings, err := l.loadSettings(ctx, tx)
		if err != nil {
			return err
		}
		if err := requireNotPaused(settings); err != nil {
			return err
		}
		if err := l.requireNotDenylisted(ctx, tx, caller); err != nil {
			return err
		}
		if amount <= 0 {
			return fmt.Errorf("%w: 出资金额必须大于0", ErrInvalidInput)
		}

		campaign, err := l.loadCampaign(ctx, tx, id)
		if err != nil {
			return err
		}
		switch PhaseOf(campaign, l.now()) {
		case PhaseSettled:
			return ErrAlreadySettled
		case PhaseCancelled:
			return ErrCampaignCancelled
		case PhaseSucceeded, PhaseFailed:
			return ErrCampaignEnded
		}
		if caller == campaign.Creator {
			return fmt.Errorf("%w: 发起人不能给自己的活动出资", ErrUnauthorized)
		}
		if amount < campaign.MinContribution {
			return fmt.Errorf("%w: 出资金额低于最低限额 %d", ErrInvalidInput, campaign.MinContribution)
		}

		raised, err := addAmount(campaign.Raised, amount)
		if err != nil {
			return err
		}

		contribution, err := l.contributionRepo.Get(ctx, tx, id, caller)
		if err != nil {
			return fmt.Errorf("查询出资记录失败: %w", err)
		}
		if contribution == nil {
			// 第一次出资：写入出资记录和出资人索引
			contribution = &model.Contribution{CampaignID: id, Contributor: caller, Amount: amount}
			if err := l.contributionRepo.Create(ctx, tx, contribution); err != nil {
				return fmt.Errorf("创建出资记录失败: %w", err)
			}
			if err := l.contributionRepo.AppendContributor(ctx, tx, id, caller); err != nil {
				return fmt.Errorf("写入出资人索引失败: %w", err)
			}
		} else {
			total, err := addAmount(contribution.Amount, amount)
			if err != nil {
				return err
			}
			if err := l.contributionRepo.SetAmount(ctx, tx, contribution.ID, total); err != nil {
				return fmt.Errorf("更新出资记录失败: %w", err)
			}
			contribution.Amount = total
		}

		err = l.campaignRepo.Update(ctx, tx, id, map[string]interface{}{
			"raised":             raised,
			"contribution_count": campaign.ContributionCount + 1,
		})
		if err != nil {
			return fmt.Errorf("更新募集金额失败: %w", err)
		}

		if err := l.transfer(ctx, tx, caller, l.custody, amount, campaignRef(id, "donate")); err != nil {
			return err
		}

		result = contribution
		return l.notify(ctx, tx, campaignEvent(EventDonationReceived, id, map[string]interface{}{
			"contributor": caller,
			"amount":      amount,
			"raised":      raised,
		}))
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("出资成功",
		zap.Int64("campaign_id", id),
		zap.String("contributor", caller),
		zap.Int64("amount", amount),
		zap.Int64("total", result.Amount),
	)
	return result, nil
}
