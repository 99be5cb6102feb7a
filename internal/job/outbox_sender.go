package job

import (
	"context"
	"time"

	"crowdfund/internal/infrastructure/mq"
	"crowdfund/internal/model"
	"crowdfund/internal/repository"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxSender 把本地消息表中待投递的账本事件发送到消息队列
// 投递失败累计重试次数，超过上限标记为失败，不再重试
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	producer   mq.Producer
	logger     *zap.Logger
	interval   time.Duration
	maxRetry   int
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, producer mq.Producer, logger *zap.Logger, interval time.Duration, maxRetry int) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		producer:   producer,
		logger:     logger,
		interval:   interval,
		maxRetry:   maxRetry,
		batchSize:  100,
	}
}

func (s *OutboxSender) GetName() string {
	return "outbox_sender"
}

func (s *OutboxSender) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(s.interval)
}

func (s *OutboxSender) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.ProcessPending(ctx)
}

// ProcessPending 投递一批待发送消息，返回成功条数
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("查询待发送消息失败", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.producer.Send(ctx, msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			s.logger.Error("更新消息状态失败", zap.Int64("id", msg.ID), zap.Error(updateErr))
			return false
		}
		s.logger.Debug("消息发送成功",
			zap.Int64("id", msg.ID),
			zap.String("event_type", msg.EventType),
			zap.String("key", msg.MessageKey),
		)
		return true
	}

	s.logger.Warn("消息发送失败", zap.Int64("id", msg.ID), zap.Int("retry_count", msg.RetryCount), zap.Error(err))

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.logger.Error("增加重试次数失败", zap.Int64("id", msg.ID), zap.Error(err))
	}

	if msg.RetryCount+1 >= s.maxRetry {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			s.logger.Error("标记消息失败状态失败", zap.Int64("id", msg.ID), zap.Error(err))
		} else {
			s.logger.Error("消息超过最大重试次数，标记为失败", zap.Int64("id", msg.ID), zap.String("event_type", msg.EventType))
		}
	}
	return false
}
