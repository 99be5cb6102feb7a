package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crowdfund/internal/ledger"
	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/pkg/idgen"

	"gorm.io/gorm"
)

// ============================================================================
// 本地消息表通知器
// ============================================================================
//
// 事件和账本操作写在同一个事务里：操作回滚，消息也不存在；
// 操作提交，消息一定存在，由 job.OutboxSender 异步投递到 Kafka。
// 同一活动的消息使用同一个消息键，保证在同一分区内有序。
// ============================================================================

// Envelope 投递到消息队列的消息体
type Envelope struct {
	EventID    string       `json:"event_id"`
	OccurredAt time.Time    `json:"occurred_at"`
	Event      ledger.Event `json:"event"`
}

type Notifier struct {
	repo  *repository.OutboxRepository
	topic string
}

func NewNotifier(db *gorm.DB, topic string) *Notifier {
	return &Notifier{
		repo:  repository.NewOutboxRepository(db),
		topic: topic,
	}
}

func (n *Notifier) Notify(ctx context.Context, tx *gorm.DB, event ledger.Event) error {
	payload, err := json.Marshal(Envelope{
		EventID:    idgen.GenerateEventKey(),
		OccurredAt: time.Now().UTC(),
		Event:      event,
	})
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	msg := &model.OutboxMessage{
		MessageKey: messageKey(event),
		EventType:  event.Type,
		Topic:      n.topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	return n.repo.Create(ctx, tx, msg)
}

func messageKey(event ledger.Event) string {
	if event.CampaignID != nil {
		return fmt.Sprintf("campaign:%d", *event.CampaignID)
	}
	return "ledger"
}
