package model

import (
	"time"
)

// Category 众筹分类，取值为固定枚举
type Category string

const (
	CategoryTechnology Category = "technology"
	CategoryArt        Category = "art"
	CategoryMusic      Category = "music"
	CategoryFilm       Category = "film"
	CategoryGames      Category = "games"
	CategoryPublishing Category = "publishing"
	CategoryEducation  Category = "education"
	CategoryHealth     Category = "health"
	CategoryCharity    Category = "charity"
	CategoryCommunity  Category = "community"
	CategoryOther      Category = "other"
)

var validCategories = map[Category]bool{
	CategoryTechnology: true,
	CategoryArt:        true,
	CategoryMusic:      true,
	CategoryFilm:       true,
	CategoryGames:      true,
	CategoryPublishing: true,
	CategoryEducation:  true,
	CategoryHealth:     true,
	CategoryCharity:    true,
	CategoryCommunity:  true,
	CategoryOther:      true,
}

// Valid 判断分类是否属于枚举集合
func (c Category) Valid() bool {
	return validCategories[c]
}

// Campaign 众筹活动表
//
// 【状态字段说明】
// Active/Withdrawn/Verified 三个标志位互相独立存储，
// 活动所处阶段不单独落库，由 ledger.PhaseOf 根据标志位和当前时间推导。
// Withdrawn 只允许 false -> true 一次，且与 Active=false 在同一事务内写入。
type Campaign struct {
	ID                int64     `gorm:"primaryKey;autoIncrement:false" json:"id"` // 从 0 开始连续分配
	Creator           string    `gorm:"type:varchar(64);index;not null" json:"creator"`
	Title             string    `gorm:"type:varchar(100);not null" json:"title"`
	Description       string    `gorm:"type:text;not null" json:"description"`
	Goal              int64     `gorm:"not null" json:"goal"`
	MinContribution   int64     `gorm:"not null;default:0" json:"min_contribution"`
	Deadline          time.Time `gorm:"not null;index" json:"deadline"`
	Raised            int64     `gorm:"not null;default:0" json:"raised"`
	ContributionCount int64     `gorm:"not null;default:0" json:"contribution_count"`
	Category          Category  `gorm:"type:varchar(20);index;not null" json:"category"`
	Active            bool      `gorm:"not null;index" json:"active"`
	Withdrawn         bool      `gorm:"not null" json:"withdrawn"`
	Verified          bool      `gorm:"not null" json:"verified"`
	DedupeKey         string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"` // keccak256(title, creator)
	CancelReason      string    `gorm:"type:varchar(200);not null;default:''" json:"cancel_reason,omitempty"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaign"
}

// CampaignUpdate 发起人发布的进展公告
type CampaignUpdate struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CampaignID int64     `gorm:"uniqueIndex:idx_update_campaign_seq;not null" json:"campaign_id"`
	Seq        int64     `gorm:"uniqueIndex:idx_update_campaign_seq;not null" json:"seq"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CampaignUpdate) TableName() string {
	return "campaign_update"
}

// DeadlineNotice 记录已经发出"活动截止"通知的活动，避免重复通知
// 只服务于外部观察者，不参与账本状态推导
type DeadlineNotice struct {
	CampaignID int64     `gorm:"primaryKey;autoIncrement:false" json:"campaign_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DeadlineNotice) TableName() string {
	return "campaign_deadline_notice"
}
