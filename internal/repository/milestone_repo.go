package repository

import (
	"context"
	"errors"

	"crowdfund/internal/model"

	"gorm.io/gorm"
)

var ErrMilestoneNotFound = errors.New("里程碑不存在")

type MilestoneRepository struct {
	db *gorm.DB
}

func NewMilestoneRepository(db *gorm.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

func (r *MilestoneRepository) Count(ctx context.Context, tx *gorm.DB, campaignID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.Milestone{}).
		Where("campaign_id = ?", campaignID).
		Count(&count).Error
	return count, err
}

func (r *MilestoneRepository) Create(ctx context.Context, tx *gorm.DB, milestone *model.Milestone) error {
	return tx.WithContext(ctx).Create(milestone).Error
}

func (r *MilestoneRepository) Get(ctx context.Context, tx *gorm.DB, campaignID, index int64) (*model.Milestone, error) {
	if tx == nil {
		tx = r.db
	}
	var milestone model.Milestone
	err := tx.WithContext(ctx).
		Where("campaign_id = ? AND idx = ?", campaignID, index).
		First(&milestone).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		return nil, err
	}
	return &milestone, nil
}

func (r *MilestoneRepository) Update(ctx context.Context, tx *gorm.DB, id int64, fields map[string]interface{}) error {
	return tx.WithContext(ctx).
		Model(&model.Milestone{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *MilestoneRepository) HasApproval(ctx context.Context, tx *gorm.DB, milestoneID int64, approver string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.MilestoneApproval{}).
		Where("milestone_id = ? AND approver = ?", milestoneID, approver).
		Count(&count).Error
	return count > 0, err
}

func (r *MilestoneRepository) CreateApproval(ctx context.Context, tx *gorm.DB, approval *model.MilestoneApproval) error {
	return tx.WithContext(ctx).Create(approval).Error
}

func (r *MilestoneRepository) List(ctx context.Context, tx *gorm.DB, campaignID int64) ([]*model.Milestone, error) {
	if tx == nil {
		tx = r.db
	}
	var milestones []*model.Milestone
	err := tx.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("idx ASC").
		Find(&milestones).Error
	return milestones, err
}
