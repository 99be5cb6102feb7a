package ledger

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"

	"gorm.io/gorm"
)

const (
	MaxMilestones                 = 20
	MaxMilestoneDescriptionLength = 500
)

// 里程碑只记录问责信号，不触发任何资金划转

func (l *Ledger) AddMilestone(ctx context.Context, caller string, id int64, description string, targetAmount int64) (*model.Milestone, error) {
	var created *model.Milestone
	err := l.run(ctx, "addMilestone", func(ctx context.Context, tx *gorm.DB) error {
		if n := utf8.RuneCountInString(description); n == 0 || n > MaxMilestoneDescriptionLength {
			return fmt.Errorf("%w: 里程碑描述长度必须在 1-%d 之间", ErrInvalidInput, MaxMilestoneDescriptionLength)
		}
		if targetAmount < 0 {
			return fmt.Errorf("%w: 目标金额不能为负数", ErrInvalidInput)
		}
		campaign, err := l.loadCampaign(ctx, tx, id)
		if err != nil {
			return err
		}
		if caller != campaign.Creator {
			return fmt.Errorf("%w: 只有发起人可以添加里程碑", ErrUnauthorized)
		}
		if campaign.Withdrawn {
			return ErrAlreadySettled
		}

		count, err := l.milestoneRepo.Count(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("查询里程碑数量失败: %w", err)
		}
		if count >= MaxMilestones {
			return fmt.Errorf("%w: 每个活动最多 %d 个里程碑", ErrInvalidInput, MaxMilestones)
		}

		milestone := &model.Milestone{
			CampaignID:   id,
			Index:        count,
			Description:  description,
			TargetAmount: targetAmount,
		}
		if err := l.milestoneRepo.Create(ctx, tx, milestone); err != nil {
			return fmt.Errorf("创建里程碑失败: %w", err)
		}

		created = milestone
		return l.notify(ctx, tx, campaignEvent(EventMilestoneAdded, id, map[string]interface{}{
			"index":         milestone.Index,
			"target_amount": targetAmount,
		}))
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (l *Ledger) CompleteMilestone(ctx context.Context, caller string, id, index int64) error {
	return l.run(ctx, "completeMilestone", func(ctx context.Context, tx *gorm.DB) error {
		campaign, err := l.loadCampaign(ctx, tx, id)
		if err != nil {
			return err
		}
		if caller != campaign.Creator {
			return fmt.Errorf("%w: 只有发起人可以完成里程碑", ErrUnauthorized)
		}
		milestone, err := l.loadMilestone(ctx, tx, id, index)
		if err != nil {
			return err
		}
		if milestone.Completed {
			return ErrMilestoneCompleted
		}

		if err := l.milestoneRepo.Update(ctx, tx, milestone.ID, map[string]interface{}{"completed": true}); err != nil {
			return fmt.Errorf("更新里程碑失败: %w", err)
		}
		return l.notify(ctx, tx, campaignEvent(EventMilestoneCompleted, id, map[string]interface{}{
			"index": index,
		}))
	})
}

// ApproveMilestone 出资人（包括已退款的）对已完成的里程碑投一次赞成票
func (l *Ledger) ApproveMilestone(ctx context.Context, caller string, id, index int64) (int64, error) {
	var approvals int64
	err := l.run(ctx, "approveMilestone", func(ctx context.Context, tx *gorm.DB) error {
		if _, err := l.loadCampaign(ctx, tx, id); err != nil {
			return err
		}
		milestone, err := l.loadMilestone(ctx, tx, id, index)
		if err != nil {
			return err
		}
		if !milestone.Completed {
			return ErrMilestoneNotCompleted
		}

		contributed, err := l.contributionRepo.IsContributor(ctx, tx, id, caller)
		if err != nil {
			return fmt.Errorf("查询出资人索引失败: %w", err)
		}
		if !contributed {
			return fmt.Errorf("%w: 只有出资人可以审批里程碑", ErrUnauthorized)
		}

		approved, err := l.milestoneRepo.HasApproval(ctx, tx, milestone.ID, caller)
		if err != nil {
			return fmt.Errorf("查询审批记录失败: %w", err)
		}
		if approved {
			return ErrAlreadyApproved
		}

		approval := &model.MilestoneApproval{MilestoneID: milestone.ID, Approver: caller}
		if err := l.milestoneRepo.CreateApproval(ctx, tx, approval); err != nil {
			return fmt.Errorf("写入审批记录失败: %w", err)
		}
		approvals = milestone.ApprovalCount + 1
		if err := l.milestoneRepo.Update(ctx, tx, milestone.ID, map[string]interface{}{"approval_count": approvals}); err != nil {
			return fmt.Errorf("更新审批计数失败: %w", err)
		}

		return l.notify(ctx, tx, campaignEvent(EventMilestoneApproved, id, map[string]interface{}{
			"index":     index,
			"approver":  caller,
			"approvals": approvals,
		}))
	})
	if err != nil {
		return 0, err
	}
	return approvals, nil
}

func (l *Ledger) loadMilestone(ctx context.Context, tx *gorm.DB, id, index int64) (*model.Milestone, error) {
	milestone, err := l.milestoneRepo.Get(ctx, tx, id, index)
	if err != nil {
		if errors.Is(err, repository.ErrMilestoneNotFound) {
			return nil, fmt.Errorf("%w: 活动 %d 的里程碑 %d", ErrNotFound, id, index)
		}
		return nil, fmt.Errorf("查询里程碑失败: %w", err)
	}
	return milestone, nil
}
