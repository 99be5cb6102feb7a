package model

import (
	"time"
)

// Account 钱包账户表
// 由宿主维护的账户余额，众筹账本的托管账户也是其中一条记录
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"account_id"` // 账户标识，由宿主提供，不可伪造
	Balance   int64     `gorm:"not null;default:0" json:"balance"`                       // 可用余额（最小货币单位）
	Version   int       `gorm:"not null;default:0" json:"version"`                       // 乐观锁版本号
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
