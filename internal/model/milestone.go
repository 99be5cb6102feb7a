package model

import (
	"time"
)

// Milestone 活动里程碑，按 Index 追加，不删除
type Milestone struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	CampaignID    int64     `gorm:"uniqueIndex:idx_milestone_campaign_index;not null" json:"campaign_id"`
	Index         int64     `gorm:"column:idx;uniqueIndex:idx_milestone_campaign_index;not null" json:"index"`
	Description   string    `gorm:"type:varchar(500);not null" json:"description"`
	TargetAmount  int64     `gorm:"not null;default:0" json:"target_amount"`
	Completed     bool      `gorm:"not null" json:"completed"`
	ApprovalCount int64     `gorm:"not null;default:0" json:"approval_count"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Milestone) TableName() string {
	return "milestone"
}

// MilestoneApproval 每个 (里程碑, 审批人) 只允许一条，防止重复计票
type MilestoneApproval struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	MilestoneID int64     `gorm:"uniqueIndex:idx_approval_milestone_account;not null" json:"milestone_id"`
	Approver    string    `gorm:"type:varchar(64);uniqueIndex:idx_approval_milestone_account;not null" json:"approver"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (MilestoneApproval) TableName() string {
	return "milestone_approval"
}
