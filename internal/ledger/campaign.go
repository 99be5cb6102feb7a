package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"
	"unicode/utf8"

	"crowdfund/internal/model"

	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
	"gorm.io/gorm"
)

const (
	MaxTitleLength        = 100
	MaxDescriptionLength  = 1000
	MaxUpdateLength       = 1000
	MaxCancelReasonLength = 200
	MinDurationDays       = 1
	MaxDurationDays       = 365
)

type CreateCampaignRequest struct {
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Goal            int64          `json:"goal"`
	MinContribution int64          `json:"min_contribution"`
	DurationDays    int64          `json:"duration_days"`
	Category        model.Category `json:"category"`
}

func (r *CreateCampaignRequest) validate() error {
	if n := utf8.RuneCountInString(r.Title); n == 0 || n > MaxTitleLength {
		return fmt.Errorf("%w: 标题长度必须在 1-%d 之间", ErrInvalidInput, MaxTitleLength)
	}
	if n := utf8.RuneCountInString(r.Description); n == 0 || n > MaxDescriptionLength {
		return fmt.Errorf("%w: 描述长度必须在 1-%d 之间", ErrInvalidInput, MaxDescriptionLength)
	}
	if r.Goal <= 0 {
		return fmt.Errorf("%w: 募集目标必须大于0", ErrInvalidInput)
	}
	if r.MinContribution < 0 {
		return fmt.Errorf("%w: 最低出资不能为负数", ErrInvalidInput)
	}
	if r.DurationDays < MinDurationDays || r.DurationDays > MaxDurationDays {
		return fmt.Errorf("%w: 持续天数必须在 %d-%d 之间", ErrInvalidInput, MinDurationDays, MaxDurationDays)
	}
	if !r.Category.Valid() {
		return fmt.Errorf("%w: 未知分类 %q", ErrInvalidInput, r.Category)
	}
	return nil
}

// dedupeKey 同一发起人不能重复使用同一标题
func dedupeKey(title, creator string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(creator))
	return hex.EncodeToString(h.Sum(nil))
}

// CreateCampaign 发起活动，ID 从 0 开始连续分配
func (l *Ledger) CreateCampaign(ctx context.Context, caller string, req CreateCampaignRequest) (*model.Campaign, error) {
	var created *model.Campaign
	err := l.run(ctx, "createCampaign", func(ctx context.Context, tx *gorm.DB) error {
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
		if err := req.validate(); err != nil {
			return err
		}

		key := dedupeKey(req.Title, caller)
		exists, err := l.campaignRepo.ExistsDedupeKey(ctx, tx, key)
		if err != nil {
			return fmt.Errorf("查询重复活动失败: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateCampaign, req.Title)
		}

		now := l.now()
		campaign := &model.Campaign{
			ID:              settings.CampaignCount,
			Creator:         caller,
			Title:           req.Title,
			Description:     req.Description,
			Goal:            req.Goal,
			MinContribution: req.MinContribution,
			Deadline:        now.Add(time.Duration(req.DurationDays) * 24 * time.Hour),
			Category:        req.Category,
			Active:          true,
			DedupeKey:       key,
		}
		if err := l.campaignRepo.Create(ctx, tx, campaign); err != nil {
			return fmt.Errorf("创建活动失败: %w", err)
		}
		err = l.settingsRepo.Update(ctx, tx, map[string]interface{}{
			"campaign_count": settings.CampaignCount + 1,
		})
		if err != nil {
			return fmt.Errorf("更新活动计数失败: %w", err)
		}

		created = campaign
		return l.notify(ctx, tx, campaignEvent(EventCampaignCreated, campaign.ID, map[string]interface{}{
			"creator":  caller,
			"title":    campaign.Title,
			"goal":     campaign.Goal,
			"deadline": campaign.Deadline,
			"category": campaign.Category,
		}))
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("活动创建成功",
		zap.Int64("campaign_id", created.ID),
		zap.String("creator", caller),
		zap.Int64("goal", created.Goal),
		zap.Time("deadline", created.Deadline),
	)
	return created, nil
}

// CancelCampaign 发起人在截止前取消活动，取消后出资人可立即退款
func (l *Ledger) CancelCampaign(ctx context.Context, caller string, id int64, reason string) error {
	return l.run(ctx, "cancelCampaign", func(ctx context.Context, tx *gorm.DB) error {
		if utf8.RuneCountInString(reason) > MaxCancelReasonLength {
			return fmt.Errorf("%w: 取消原因不能超过 %d 个字符", ErrInvalidInput, MaxCancelReasonLength)
		}
		campaign, err := l.loadCampaign(ctx, tx, id)
		if err != nil {
			return err
		}
		if caller != campaign.Creator {
			return fmt.Errorf("%w: 只有发起人可以取消活动", ErrUnauthorized)
		}

		switch PhaseOf(campaign, l.now()) {
		case PhaseSettled:
			return ErrAlreadySettled
		case PhaseCancelled:
			return ErrCampaignCancelled
		case PhaseSucceeded, PhaseFailed:
			return ErrCampaignEnded
		}

		err = l.campaignRepo.Update(ctx, tx, id, map[string]interface{}{
			"active":        false,
			"cancel_reason": reason,
		})
		if err != nil {
			return fmt.Errorf("取消活动失败: %w", err)
		}

		return l.notify(ctx, tx, campaignEvent(EventCampaignCancelled, id, map[string]interface{}{
			"reason": reason,
			"raised": campaign.Raised,
		}))
	})
}

// VerifyCampaign 管理员设置活动认证标记，不影响资金
func (l *Ledger) VerifyCampaign(ctx context.Context, caller string, id int64, verified bool) error {
	return l.run(ctx, "verifyCampaign", func(ctx context.Context, tx *gorm.DB) error {
		settings, err := l.loadSettings(ctx, tx)
		if err != nil {
			return err
		}
		if err := requireOwner(settings, caller); err != nil {
			return err
		}
		if _, err := l.loadCampaign(ctx, tx, id); err != nil {
			return err
		}

		if err := l.campaignRepo.Update(ctx, tx, id, map[string]interface{}{"verified": verified}); err != nil {
			return fmt.Errorf("更新认证标记失败: %w", err)
		}
		return l.notify(ctx, tx, campaignEvent(EventCampaignVerified, id, map[string]interface{}{
			"verified": verified,
		}))
	})
}

// AddCampaignUpdate 发起人发布进展公告
func (l *Ledger) AddCampaignUpdate(ctx context.Context, caller string, id int64, body string) (*model.CampaignUpdate, error) {
	var created *model.CampaignUpdate
	err := l.run(ctx, "addCampaignUpdate", func(ctx context.Context, tx *gorm.DB) error {
		if n := utf8.RuneCountInString(body); n == 0 || n > MaxUpdateLength {
			return fmt.Errorf("%w: 公告长度必须在 1-%d 之间", ErrInvalidInput, MaxUpdateLength)
		}
		campaign, err := l.loadCampaign(ctx, tx, id)
		if err != nil {
			return err
		}
		if caller != campaign.Creator {
			return fmt.Errorf("%w: 只有发起人可以发布公告", ErrUnauthorized)
		}
		if campaign.Withdrawn {
			return ErrAlreadySettled
		}

		seq, err := l.campaignRepo.CountUpdates(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("查询公告数量失败: %w", err)
		}
		update := &model.CampaignUpdate{CampaignID: id, Seq: seq, Body: body}
		if err := l.campaignRepo.CreateUpdate(ctx, tx, update); err != nil {
			return fmt.Errorf("发布公告失败: %w", err)
		}

		created = update
		return l.notify(ctx, tx, campaignEvent(EventCampaignUpdated, id, map[string]interface{}{
			"seq": seq,
		}))
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
