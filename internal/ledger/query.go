package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"
)

// 查询不获取非重入锁，只读取已提交的状态；
// 在收款方回调中调用时读取的是外层操作事务内的状态

// MaxPageSize 分页和列表查询的单次上限
const MaxPageSize = 100

type CampaignDetail struct {
	*model.Campaign
	Phase           Phase `json:"phase"`
	ProgressPercent int64 `json:"progress_percent"`
	SecondsLeft     int64 `json:"seconds_left"`
	Successful      bool  `json:"successful"`
}

type ContributorEntry struct {
	Seq         int64  `json:"seq"`
	Contributor string `json:"contributor"`
	Amount      int64  `json:"amount"`
}

type ContributorPage struct {
	Total  int64               `json:"total"`
	Offset int                 `json:"offset"`
	Limit  int                 `json:"limit"`
	Items  []*ContributorEntry `json:"items"`
}

// Reconciliation 单个活动的对账结果
// 紧急提取会清零 raised 但保留出资记录作为赔付依据，此时 Drained 为 true
type Reconciliation struct {
	CampaignID    int64 `json:"campaign_id"`
	Raised        int64 `json:"raised"`
	Contributions int64 `json:"contributions"`
	Drained       bool  `json:"drained"`
	Balanced      bool  `json:"balanced"`
}

type GuardState struct {
	Owner         string `json:"owner"`
	PendingOwner  string `json:"pending_owner,omitempty"`
	Paused        bool   `json:"paused"`
	FeePercent    int64  `json:"fee_percent"`
	FeeBalance    int64  `json:"fee_balance"`
	CampaignCount int64  `json:"campaign_count"`
	Busy          bool   `json:"busy"`
}

func (l *Ledger) Campaign(ctx context.Context, id int64) (*model.Campaign, error) {
	campaign, err := l.campaignRepo.GetByID(ctx, l.conn(ctx), id)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, fmt.Errorf("%w: 活动 %d", ErrNotFound, id)
		}
		return nil, err
	}
	return campaign, nil
}

// CampaignDetail 活动详情，附带推导出的阶段和进度
func (l *Ledger) CampaignDetail(ctx context.Context, id int64) (*CampaignDetail, error) {
	campaign, err := l.Campaign(ctx, id)
	if err != nil {
		return nil, err
	}
	progress, err := percentOf(campaign.Raised, campaign.Goal)
	if err != nil {
		return nil, err
	}
	now := l.now()
	return &CampaignDetail{
		Campaign:        campaign,
		Phase:           PhaseOf(campaign, now),
		ProgressPercent: progress,
		SecondsLeft:     int64(remaining(campaign, now) / time.Second),
		Successful:      campaign.Raised >= campaign.Goal,
	}, nil
}

func (l *Ledger) Phase(ctx context.Context, id int64) (Phase, error) {
	campaign, err := l.Campaign(ctx, id)
	if err != nil {
		return 0, err
	}
	return PhaseOf(campaign, l.now()), nil
}

// Progress 募集进度百分比，向下取整，超额募集时可以超过 100
func (l *Ledger) Progress(ctx context.Context, id int64) (int64, error) {
	campaign, err := l.Campaign(ctx, id)
	if err != nil {
		return 0, err
	}
	return percentOf(campaign.Raised, campaign.Goal)
}

// TimeRemaining 距截止时间的剩余时长，已截止返回 0
func (l *Ledger) TimeRemaining(ctx context.Context, id int64) (time.Duration, error) {
	campaign, err := l.Campaign(ctx, id)
	if err != nil {
		return 0, err
	}
	return remaining(campaign, l.now()), nil
}

func remaining(c *model.Campaign, now time.Time) time.Duration {
	if !now.Before(c.Deadline) {
		return 0
	}
	return c.Deadline.Sub(now)
}

// IsSuccessful 是否达到募集目标
func (l *Ledger) IsSuccessful(ctx context.Context, id int64) (bool, error) {
	campaign, err := l.Campaign(ctx, id)
	if err != nil {
		return false, err
	}
	return campaign.Raised >= campaign.Goal, nil
}

// Contribution 账户在活动中的当前出资余额，退款后为 0
func (l *Ledger) Contribution(ctx context.Context, id int64, account string) (int64, error) {
	if _, err := l.Campaign(ctx, id); err != nil {
		return 0, err
	}
	contribution, err := l.contributionRepo.Get(ctx, l.conn(ctx), id, account)
	if err != nil {
		return 0, err
	}
	if contribution == nil {
		return 0, nil
	}
	return contribution.Amount, nil
}

// Contributors 按首次出资顺序分页列出出资人，limit 必须在 1-MaxPageSize 之间
func (l *Ledger) Contributors(ctx context.Context, id int64, offset, limit int) (*ContributorPage, error) {
	if offset < 0 || limit < 1 || limit > MaxPageSize {
		return nil, fmt.Errorf("%w: offset 不能为负数，limit 必须在 1-%d 之间", ErrInvalidInput, MaxPageSize)
	}
	if _, err := l.Campaign(ctx, id); err != nil {
		return nil, err
	}

	conn := l.conn(ctx)
	total, err := l.contributionRepo.CountContributors(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	rows, err := l.contributionRepo.ListContributors(ctx, conn, id, offset, limit)
	if err != nil {
		return nil, err
	}
	accounts := make([]string, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, row.Contributor)
	}
	amounts, err := l.contributionRepo.ListAmounts(ctx, conn, id, accounts)
	if err != nil {
		return nil, err
	}

	page := &ContributorPage{
		Total:  total,
		Offset: offset,
		Limit:  limit,
		Items:  make([]*ContributorEntry, 0, len(rows)),
	}
	for _, row := range rows {
		page.Items = append(page.Items, &ContributorEntry{
			Seq:         row.Seq,
			Contributor: row.Contributor,
			Amount:      amounts[row.Contributor],
		})
	}
	return page, nil
}

// CreatorCampaigns 账户发起的活动，按 ID 升序
func (l *Ledger) CreatorCampaigns(ctx context.Context, creator string) ([]*model.Campaign, error) {
	return l.campaignRepo.ListByCreator(ctx, l.conn(ctx), creator)
}

// DonorCampaigns 账户出资过的活动，包括已退款的
func (l *Ledger) DonorCampaigns(ctx context.Context, donor string) ([]*model.Campaign, error) {
	conn := l.conn(ctx)
	ids, err := l.contributionRepo.ListCampaignIDsByContributor(ctx, conn, donor)
	if err != nil {
		return nil, err
	}
	return l.campaignRepo.ListByIDs(ctx, conn, ids)
}

// ActiveCampaignsByCategory 分类下仍可出资的活动，最多返回 limit 条
func (l *Ledger) ActiveCampaignsByCategory(ctx context.Context, category model.Category, limit int) ([]*model.Campaign, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: 未知分类 %q", ErrInvalidInput, category)
	}
	if limit < 1 || limit > MaxPageSize {
		return nil, fmt.Errorf("%w: limit 必须在 1-%d 之间", ErrInvalidInput, MaxPageSize)
	}
	return l.campaignRepo.ListOpenByCategory(ctx, l.conn(ctx), category, l.now(), limit)
}

func (l *Ledger) Milestones(ctx context.Context, id int64) ([]*model.Milestone, error) {
	if _, err := l.Campaign(ctx, id); err != nil {
		return nil, err
	}
	return l.milestoneRepo.List(ctx, l.conn(ctx), id)
}

func (l *Ledger) Updates(ctx context.Context, id int64) ([]*model.CampaignUpdate, error) {
	if _, err := l.Campaign(ctx, id); err != nil {
		return nil, err
	}
	return l.campaignRepo.ListUpdates(ctx, l.conn(ctx), id)
}

func (l *Ledger) GuardState(ctx context.Context) (*GuardState, error) {
	settings, err := l.settingsRepo.Get(ctx, l.conn(ctx))
	if err != nil {
		return nil, err
	}
	return &GuardState{
		Owner:         settings.Owner,
		PendingOwner:  settings.PendingOwner,
		Paused:        settings.Paused,
		FeePercent:    settings.FeePercent,
		FeeBalance:    settings.FeeBalance,
		CampaignCount: settings.CampaignCount,
		Busy:          l.Busy(),
	}, nil
}

func (l *Ledger) IsDenylisted(ctx context.Context, account string) (bool, error) {
	return l.settingsRepo.IsDenylisted(ctx, l.conn(ctx), account)
}

// Liabilities 托管账户应持有的资金：未结算活动的募集总额加上平台费余额
func (l *Ledger) Liabilities(ctx context.Context) (int64, error) {
	conn := l.conn(ctx)
	raised, err := l.campaignRepo.SumUnsettledRaised(ctx, conn)
	if err != nil {
		return 0, err
	}
	settings, err := l.settingsRepo.Get(ctx, conn)
	if err != nil {
		return 0, err
	}
	return addAmount(raised, settings.FeeBalance)
}

// ReconcileCampaign 核对活动的 raised 与出资余额之和
func (l *Ledger) ReconcileCampaign(ctx context.Context, id int64) (*Reconciliation, error) {
	campaign, err := l.Campaign(ctx, id)
	if err != nil {
		return nil, err
	}
	sum, err := l.contributionRepo.SumByCampaign(ctx, l.conn(ctx), id)
	if err != nil {
		return nil, err
	}
	drained := campaign.Withdrawn && campaign.Raised == 0 && sum > 0
	return &Reconciliation{
		CampaignID:    id,
		Raised:        campaign.Raised,
		Contributions: sum,
		Drained:       drained,
		Balanced:      drained || campaign.Raised == sum,
	}, nil
}
