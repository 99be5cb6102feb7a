package model

import (
	"time"
)

// SettingsID 全局配置只有一行
const SettingsID = 1

// Settings 账本全局管理状态
//
// 不使用包级全局变量，所有操作都在事务中显式读取这一行。
type Settings struct {
	ID            int64     `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Owner         string    `gorm:"type:varchar(64);not null" json:"owner"`
	PendingOwner  string    `gorm:"type:varchar(64);not null;default:''" json:"pending_owner,omitempty"` // 两阶段转移中待接收的新所有者
	Paused        bool      `gorm:"not null" json:"paused"`
	FeePercent    int64     `gorm:"not null" json:"fee_percent"`
	FeeBalance    int64     `gorm:"not null;default:0" json:"fee_balance"`    // 累计平台手续费
	CampaignCount int64     `gorm:"not null;default:0" json:"campaign_count"` // 下一个活动 ID
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Settings) TableName() string {
	return "ledger_settings"
}

// DenylistEntry 黑名单账户，禁止发起活动和出资，但不影响取回自己的资金
type DenylistEntry struct {
	AccountID string    `gorm:"type:varchar(64);primaryKey" json:"account_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DenylistEntry) TableName() string {
	return "denylist"
}
