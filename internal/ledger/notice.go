package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AnnounceEndedCampaigns 为已到截止时间的活动补发一次 CampaignEnded 通知
//
// 只写通知记录和事件，不修改任何账本状态，因此不占用非重入锁。
// 每个活动单独一个事务，通知记录的主键保证同一活动只通知一次。
func (l *Ledger) AnnounceEndedCampaigns(ctx context.Context, limit int) (int, error) {
	now := l.now()
	campaigns, err := l.campaignRepo.ListEndedWithoutNotice(ctx, nil, now, limit)
	if err != nil {
		return 0, fmt.Errorf("查询已截止活动失败: %w", err)
	}

	announced := 0
	for _, campaign := range campaigns {
		inserted := false
		err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			inserted, err = l.campaignRepo.CreateDeadlineNotice(ctx, tx, campaign.ID)
			if err != nil || !inserted {
				return err
			}
			return l.notify(ctx, tx, campaignEvent(EventCampaignEnded, campaign.ID, map[string]interface{}{
				"phase":    PhaseOf(campaign, now).String(),
				"raised":   campaign.Raised,
				"goal":     campaign.Goal,
				"deadline": campaign.Deadline,
			}))
		})
		if err != nil {
			l.logger.Error("发送截止通知失败", zap.Int64("campaign_id", campaign.ID), zap.Error(err))
			return announced, err
		}
		if inserted {
			announced++
		}
	}
	return announced, nil
}
