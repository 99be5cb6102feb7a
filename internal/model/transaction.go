package model

import (
	"time"
)

// ============================================================================
// 流水类型常量
// ============================================================================

const (
	TransactionTypeDeposit = "DEPOSIT" // 充值
	TransactionTypeDebit   = "DEBIT"   // 出账
	TransactionTypeCredit  = "CREDIT"  // 入账
)

// ============================================================================
// 账户流水实体
// ============================================================================

// AccountTransaction 账户流水表
// 记录钱包账户的每一笔资金变动，是托管对账的依据
//
// 【流水表设计原则】
// 1. 只追加，不修改，不删除
// 2. 每笔流水关联业务引用（如 campaign:3:refund），便于对账
// 3. 记录交易前后余额，便于校验余额一致性
type AccountTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	AccountID     string    `gorm:"type:varchar(64);index;not null" json:"account_id"`           // 账户标识
	Counterparty  string    `gorm:"type:varchar(64);not null;default:''" json:"counterparty"`    // 对手方账户
	Reference     string    `gorm:"type:varchar(64);index;not null" json:"reference"`            // 业务引用
	Amount        int64     `gorm:"not null" json:"amount"`                                      // 金额（正数入账，负数出账）
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`                       // 流水类型
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`                              // 交易前余额
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`                               // 交易后余额
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
