package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ============================================================================
// 众筹托管账本
// ============================================================================
//
// 【执行模型】
// 每个写操作都是一个完整的工作单元：
//   1. 获取非重入锁（已被占用则直接返回 ErrReentrantCall）
//   2. 开启数据库事务
//   3. 检查 -> 修改状态 -> 请求宿主划转资金
//   4. 任何一步返回错误，事务整体回滚；锁在 defer 中无条件释放
//
// 宿主划转是唯一的挂起点：收款方的入账回调在事务内执行，
// 它对账本的回调会因为锁被占用而失败，外层操作不受影响。
// 来自不同请求的并发调用由传输层的串行化锁排队，不会走到这里。
// ============================================================================

const (
	// MaxFeePercent 平台费率上限
	MaxFeePercent = 10
	// DefaultFeePercent 默认平台费率
	DefaultFeePercent = 2
)

// Host 宿主账户协作者，在账本事务内划转资金
type Host interface {
	Move(ctx context.Context, tx *gorm.DB, from, to string, amount int64, reference string) error
}

// Clock 当前时间来源
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Ledger struct {
	db       *gorm.DB
	host     Host
	custody  string
	notifier Notifier
	clock    Clock
	logger   *zap.Logger
	guard    guard

	settingsRepo     *repository.SettingsRepository
	campaignRepo     *repository.CampaignRepository
	contributionRepo *repository.ContributionRepository
	milestoneRepo    *repository.MilestoneRepository
}

type Option func(*Ledger)

func WithClock(clock Clock) Option {
	return func(l *Ledger) { l.clock = clock }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithNotifier(notifier Notifier) Option {
	return func(l *Ledger) { l.notifier = notifier }
}

// New 创建账本，custodyAccount 是宿主侧保管全部资金的账户
func New(db *gorm.DB, host Host, custodyAccount string, opts ...Option) *Ledger {
	l := &Ledger{
		db:               db,
		host:             host,
		custody:          custodyAccount,
		notifier:         nopNotifier{},
		clock:            systemClock{},
		logger:           zap.NewNop(),
		settingsRepo:     repository.NewSettingsRepository(db),
		campaignRepo:     repository.NewCampaignRepository(db),
		contributionRepo: repository.NewContributionRepository(db),
		milestoneRepo:    repository.NewMilestoneRepository(db),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Init 首次启动时写入管理员和费率，已初始化则保持原值
func (l *Ledger) Init(ctx context.Context, owner string, feePercent int64) error {
	if owner == "" {
		return fmt.Errorf("%w: 管理员不能为空", ErrInvalidInput)
	}
	if feePercent < 0 || feePercent > MaxFeePercent {
		return fmt.Errorf("%w: 费率必须在 0-%d 之间", ErrInvalidInput, MaxFeePercent)
	}
	if err := l.settingsRepo.Init(ctx, owner, feePercent); err != nil {
		return fmt.Errorf("初始化账本配置失败: %w", err)
	}
	return nil
}

// CustodyAccount 托管账户标识
func (l *Ledger) CustodyAccount() string {
	return l.custody
}

// Busy 是否有操作正持有非重入锁
func (l *Ledger) Busy() bool {
	return l.guard.busy()
}

func (l *Ledger) now() time.Time {
	return l.clock.Now().UTC()
}

type txKey struct{}

// conn 返回查询使用的连接
// 在操作事务内（例如收款方回调中）查询时复用该事务，看到的是正在进行中的状态
func (l *Ledger) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return l.db
}

// run 执行一个写操作
func (l *Ledger) run(ctx context.Context, op string, fn func(ctx context.Context, tx *gorm.DB) error) error {
	if err := l.guard.acquire(); err != nil {
		l.logger.Warn("拒绝重入调用", zap.String("op", op))
		return err
	}
	defer l.guard.release()

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx), tx)
	})
	if err != nil {
		l.logger.Info("账本操作失败", zap.String("op", op), zap.Error(err))
		return err
	}
	l.logger.Debug("账本操作完成", zap.String("op", op))
	return nil
}

// transfer 请求宿主划转资金，任何失败都归为 ErrTransferFailed
func (l *Ledger) transfer(ctx context.Context, tx *gorm.DB, from, to string, amount int64, reference string) error {
	if err := l.host.Move(ctx, tx, from, to, amount, reference); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

func (l *Ledger) notify(ctx context.Context, tx *gorm.DB, event Event) error {
	if err := l.notifier.Notify(ctx, tx, event); err != nil {
		return fmt.Errorf("写入事件 %s 失败: %w", event.Type, err)
	}
	return nil
}

// loadCampaign 事务内加锁读取活动
func (l *Ledger) loadCampaign(ctx context.Context, tx *gorm.DB, id int64) (*model.Campaign, error) {
	campaign, err := l.campaignRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, fmt.Errorf("%w: 活动 %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("查询活动失败: %w", err)
	}
	return campaign, nil
}

func (l *Ledger) loadSettings(ctx context.Context, tx *gorm.DB) (*model.Settings, error) {
	settings, err := l.settingsRepo.GetForUpdate(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("读取账本配置失败: %w", err)
	}
	return settings, nil
}

func campaignRef(id int64, action string) string {
	return fmt.Sprintf("campaign:%d:%s", id, action)
}
