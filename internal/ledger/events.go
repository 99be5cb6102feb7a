package ledger

import (
	"context"

	"gorm.io/gorm"
)

// 账本事件类型
const (
	EventCampaignCreated          = "CampaignCreated"
	EventCampaignCancelled        = "CampaignCancelled"
	EventCampaignVerified         = "CampaignVerified"
	EventCampaignUpdated          = "CampaignUpdated"
	EventCampaignEnded            = "CampaignEnded"
	EventDonationReceived         = "DonationReceived"
	EventFundsWithdrawn           = "FundsWithdrawn"
	EventRefundIssued             = "RefundIssued"
	EventMilestoneAdded           = "MilestoneAdded"
	EventMilestoneCompleted       = "MilestoneCompleted"
	EventMilestoneApproved        = "MilestoneApproved"
	EventPlatformFeesWithdrawn    = "PlatformFeesWithdrawn"
	EventPlatformFeeUpdated       = "PlatformFeeUpdated"
	EventDenylistUpdated          = "DenylistUpdated"
	EventPaused                   = "Paused"
	EventUnpaused                 = "Unpaused"
	EventOwnershipTransferStarted = "OwnershipTransferStarted"
	EventOwnershipTransferred     = "OwnershipTransferred"
	EventEmergencyWithdrawal      = "EmergencyWithdrawal"
)

// Event 发给外部观察者的通知，只描述已经发生的事实
type Event struct {
	Type       string                 `json:"type"`
	CampaignID *int64                 `json:"campaign_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

func campaignEvent(eventType string, campaignID int64, data map[string]interface{}) Event {
	id := campaignID
	return Event{Type: eventType, CampaignID: &id, Data: data}
}

// Notifier 事件通知出口
// Notify 在账本事务内调用，返回错误会让操作整体回滚
type Notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, event Event) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, *gorm.DB, Event) error { return nil }
