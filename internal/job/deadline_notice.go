package job

import (
	"context"
	"time"

	"crowdfund/internal/ledger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// DeadlineNoticeJob 周期扫描已到截止时间的活动，为每个活动发出一次 CampaignEnded 通知
// 活动阶段由时间推导，任务本身不推动任何状态变化
type DeadlineNoticeJob struct {
	ledger    *ledger.Ledger
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

func NewDeadlineNoticeJob(l *ledger.Ledger, logger *zap.Logger, interval time.Duration) *DeadlineNoticeJob {
	return &DeadlineNoticeJob{
		ledger:    l,
		logger:    logger,
		interval:  interval,
		batchSize: 100,
	}
}

func (j *DeadlineNoticeJob) GetName() string {
	return "campaign_deadline_notice"
}

func (j *DeadlineNoticeJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *DeadlineNoticeJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	announced, err := j.ledger.AnnounceEndedCampaigns(ctx, j.batchSize)
	if err != nil {
		j.logger.Error("发送截止通知失败", zap.Error(err))
		return
	}
	if announced > 0 {
		j.logger.Info("截止通知已发送", zap.Int("count", announced))
	}
}
