package job

import (
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Job 周期任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager 任务管理器
// 同一个任务不会并发执行，上一轮未结束时跳过本轮
type Manager struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
}

func NewManager(logger *zap.Logger) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("创建任务调度器失败: %w", err)
	}
	return &Manager{scheduler: s, logger: logger}, nil
}

func (m *Manager) Register(jobs ...Job) error {
	for _, job := range jobs {
		_, err := m.scheduler.NewJob(
			job.GetSchedule(),
			gocron.NewTask(job.Execute),
			gocron.WithName(job.GetName()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("注册任务 %s 失败: %w", job.GetName(), err)
		}
		m.logger.Info("任务已注册", zap.String("job", job.GetName()))
	}
	return nil
}

func (m *Manager) Start() {
	m.scheduler.Start()
	m.logger.Info("任务管理器已启动")
}

func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		m.logger.Error("停止任务调度器失败", zap.Error(err))
	}
	m.logger.Info("任务管理器已停止")
}
