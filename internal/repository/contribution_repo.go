package repository

import (
	"context"
	"errors"

	"crowdfund/internal/model"

	"gorm.io/gorm"
)

type ContributionRepository struct {
	db *gorm.DB
}

func NewContributionRepository(db *gorm.DB) *ContributionRepository {
	return &ContributionRepository{db: db}
}

// Get 查询出资记录，不存在时返回 nil, nil
func (r *ContributionRepository) Get(ctx context.Context, tx *gorm.DB, campaignID int64, contributor string) (*model.Contribution, error) {
	if tx == nil {
		tx = r.db
	}
	var contribution model.Contribution
	err := tx.WithContext(ctx).
		Where("campaign_id = ? AND contributor = ?", campaignID, contributor).
		First(&contribution).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contribution, nil
}

func (r *ContributionRepository) Create(ctx context.Context, tx *gorm.DB, contribution *model.Contribution) error {
	return tx.WithContext(ctx).Create(contribution).Error
}

func (r *ContributionRepository) SetAmount(ctx context.Context, tx *gorm.DB, id int64, amount int64) error {
	return tx.WithContext(ctx).
		Model(&model.Contribution{}).
		Where("id = ?", id).
		Update("amount", amount).Error
}

// ============================================================================
// 出资人索引
// ============================================================================

// AppendContributor 在出资人索引末尾追加一条记录，Seq 为该活动当前的出资人数量
func (r *ContributionRepository) AppendContributor(ctx context.Context, tx *gorm.DB, campaignID int64, contributor string) error {
	count, err := r.CountContributors(ctx, tx, campaignID)
	if err != nil {
		return err
	}
	return tx.WithContext(ctx).Create(&model.CampaignContributor{
		CampaignID:  campaignID,
		Contributor: contributor,
		Seq:         count,
	}).Error
}

func (r *ContributionRepository) CountContributors(ctx context.Context, tx *gorm.DB, campaignID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.CampaignContributor{}).
		Where("campaign_id = ?", campaignID).
		Count(&count).Error
	return count, err
}

func (r *ContributionRepository) IsContributor(ctx context.Context, tx *gorm.DB, campaignID int64, contributor string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.CampaignContributor{}).
		Where("campaign_id = ? AND contributor = ?", campaignID, contributor).
		Count(&count).Error
	return count > 0, err
}

// ListContributors 按首次出资顺序分页返回出资人
func (r *ContributionRepository) ListContributors(ctx context.Context, tx *gorm.DB, campaignID int64, offset, limit int) ([]*model.CampaignContributor, error) {
	if tx == nil {
		tx = r.db
	}
	var contributors []*model.CampaignContributor
	err := tx.WithContext(ctx).
		Where("campaign_id = ? AND seq >= ?", campaignID, offset).
		Order("seq ASC").
		Limit(limit).
		Find(&contributors).Error
	return contributors, err
}

// ListAmounts 批量查询出资余额，返回 contributor -> amount
func (r *ContributionRepository) ListAmounts(ctx context.Context, tx *gorm.DB, campaignID int64, contributors []string) (map[string]int64, error) {
	if tx == nil {
		tx = r.db
	}
	amounts := make(map[string]int64, len(contributors))
	if len(contributors) == 0 {
		return amounts, nil
	}
	var rows []*model.Contribution
	err := tx.WithContext(ctx).
		Where("campaign_id = ? AND contributor IN ?", campaignID, contributors).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		amounts[row.Contributor] = row.Amount
	}
	return amounts, nil
}

// ListCampaignIDsByContributor 查询账户出资过的活动 ID，按首次出资时间排序
func (r *ContributionRepository) ListCampaignIDsByContributor(ctx context.Context, tx *gorm.DB, contributor string) ([]int64, error) {
	if tx == nil {
		tx = r.db
	}
	var ids []int64
	err := tx.WithContext(ctx).
		Model(&model.CampaignContributor{}).
		Where("contributor = ?", contributor).
		Order("id ASC").
		Pluck("campaign_id", &ids).Error
	return ids, err
}

func (r *ContributionRepository) SumByCampaign(ctx context.Context, tx *gorm.DB, campaignID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var total int64
	err := tx.WithContext(ctx).
		Model(&model.Contribution{}).
		Where("campaign_id = ?", campaignID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
