package repository

import (
	"context"
	"errors"
	"time"

	"crowdfund/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrCampaignNotFound = errors.New("活动不存在")

type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func (r *CampaignRepository) Create(ctx context.Context, tx *gorm.DB, campaign *model.Campaign) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(campaign).Error
}

func (r *CampaignRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Campaign, error) {
	if tx == nil {
		tx = r.db
	}
	var campaign model.Campaign
	err := tx.WithContext(ctx).Where("id = ?", id).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return &campaign, nil
}

// GetByIDForUpdate 加锁读取活动，只能在事务中调用
func (r *CampaignRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Campaign, error) {
	var campaign model.Campaign
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return &campaign, nil
}

func (r *CampaignRepository) ExistsDedupeKey(ctx context.Context, tx *gorm.DB, key string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("dedupe_key = ?", key).
		Count(&count).Error
	return count > 0, err
}

// Update 按 ID 更新指定字段
// 活动 ID 从 0 开始，不能依赖 gorm 的主键零值判断，统一显式指定条件
func (r *CampaignRepository) Update(ctx context.Context, tx *gorm.DB, id int64, fields map[string]interface{}) error {
	return tx.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *CampaignRepository) ListByCreator(ctx context.Context, tx *gorm.DB, creator string) ([]*model.Campaign, error) {
	if tx == nil {
		tx = r.db
	}
	var campaigns []*model.Campaign
	err := tx.WithContext(ctx).
		Where("creator = ?", creator).
		Order("id ASC").
		Find(&campaigns).Error
	return campaigns, err
}

func (r *CampaignRepository) ListByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*model.Campaign, error) {
	if tx == nil {
		tx = r.db
	}
	var campaigns []*model.Campaign
	if len(ids) == 0 {
		return campaigns, nil
	}
	err := tx.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&campaigns).Error
	return campaigns, err
}

// ListOpenByCategory 按分类查询仍可出资的活动，按 ID 升序，最多 limit 条
func (r *CampaignRepository) ListOpenByCategory(ctx context.Context, tx *gorm.DB, category model.Category, now time.Time, limit int) ([]*model.Campaign, error) {
	if tx == nil {
		tx = r.db
	}
	var campaigns []*model.Campaign
	err := tx.WithContext(ctx).
		Where("category = ? AND active = ? AND withdrawn = ? AND deadline > ?", category, true, false, now).
		Order("id ASC").
		Limit(limit).
		Find(&campaigns).Error
	return campaigns, err
}

// ListEndedWithoutNotice 查询已到截止时间但尚未发出截止通知的活动
func (r *CampaignRepository) ListEndedWithoutNotice(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*model.Campaign, error) {
	if tx == nil {
		tx = r.db
	}
	var campaigns []*model.Campaign
	notified := r.db.Model(&model.DeadlineNotice{}).Select("campaign_id")
	err := tx.WithContext(ctx).
		Where("deadline <= ? AND id NOT IN (?)", now, notified).
		Order("id ASC").
		Limit(limit).
		Find(&campaigns).Error
	return campaigns, err
}

// CreateDeadlineNotice 记录截止通知，已存在时返回 false
func (r *CampaignRepository) CreateDeadlineNotice(ctx context.Context, tx *gorm.DB, campaignID int64) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.DeadlineNotice{CampaignID: campaignID})
	return result.RowsAffected > 0, result.Error
}

// SumUnsettledRaised 统计所有未提取活动的已募集金额，用于托管账户对账
func (r *CampaignRepository) SumUnsettledRaised(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var total int64
	err := tx.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("withdrawn = ?", false).
		Select("COALESCE(SUM(raised), 0)").
		Scan(&total).Error
	return total, err
}

// ============================================================================
// 活动公告
// ============================================================================

func (r *CampaignRepository) CountUpdates(ctx context.Context, tx *gorm.DB, campaignID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.CampaignUpdate{}).
		Where("campaign_id = ?", campaignID).
		Count(&count).Error
	return count, err
}

func (r *CampaignRepository) CreateUpdate(ctx context.Context, tx *gorm.DB, update *model.CampaignUpdate) error {
	return tx.WithContext(ctx).Create(update).Error
}

func (r *CampaignRepository) ListUpdates(ctx context.Context, tx *gorm.DB, campaignID int64) ([]*model.CampaignUpdate, error) {
	if tx == nil {
		tx = r.db
	}
	var updates []*model.CampaignUpdate
	err := tx.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("seq ASC").
		Find(&updates).Error
	return updates, err
}
