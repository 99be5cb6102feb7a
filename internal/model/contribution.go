package model

import (
	"time"
)

// Contribution 出资记录，(campaign_id, contributor) 唯一
// Amount 只会通过 donate 累加，通过 refund 清零一次
type Contribution struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	CampaignID  int64     `gorm:"uniqueIndex:idx_contribution_campaign_account;not null" json:"campaign_id"`
	Contributor string    `gorm:"type:varchar(64);uniqueIndex:idx_contribution_campaign_account;not null" json:"contributor"`
	Amount      int64     `gorm:"not null;default:0" json:"amount"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contribution) TableName() string {
	return "contribution"
}

// CampaignContributor 出资人索引
//
// 只在出资人第一次出资时写入一次，同时服务两个方向的查询：
//   - 活动 -> 出资人（按 Seq 分页）
//   - 出资人 -> 活动
type CampaignContributor struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	CampaignID  int64     `gorm:"uniqueIndex:idx_contributor_campaign_account;uniqueIndex:idx_contributor_campaign_seq;not null" json:"campaign_id"`
	Contributor string    `gorm:"type:varchar(64);uniqueIndex:idx_contributor_campaign_account;index;not null" json:"contributor"`
	Seq         int64     `gorm:"uniqueIndex:idx_contributor_campaign_seq;not null" json:"seq"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CampaignContributor) TableName() string {
	return "campaign_contributor"
}
