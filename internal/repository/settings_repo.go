package repository

import (
	"context"
	"errors"

	"crowdfund/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSettingsNotInitialized = errors.New("账本配置未初始化")

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Init 写入初始配置，已存在时保持原值
func (r *SettingsRepository) Init(ctx context.Context, owner string, feePercent int64) error {
	settings := &model.Settings{
		ID:         model.SettingsID,
		Owner:      owner,
		FeePercent: feePercent,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(settings).Error
}

func (r *SettingsRepository) Get(ctx context.Context, tx *gorm.DB) (*model.Settings, error) {
	if tx == nil {
		tx = r.db
	}
	var settings model.Settings
	err := tx.WithContext(ctx).Where("id = ?", model.SettingsID).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingsNotInitialized
		}
		return nil, err
	}
	return &settings, nil
}

// GetForUpdate 事务内加锁读取全局配置
func (r *SettingsRepository) GetForUpdate(ctx context.Context, tx *gorm.DB) (*model.Settings, error) {
	var settings model.Settings
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", model.SettingsID).
		First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingsNotInitialized
		}
		return nil, err
	}
	return &settings, nil
}

func (r *SettingsRepository) Update(ctx context.Context, tx *gorm.DB, fields map[string]interface{}) error {
	return tx.WithContext(ctx).
		Model(&model.Settings{}).
		Where("id = ?", model.SettingsID).
		Updates(fields).Error
}

// ============================================================================
// 黑名单
// ============================================================================

func (r *SettingsRepository) IsDenylisted(ctx context.Context, tx *gorm.DB, accountID string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.DenylistEntry{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count > 0, err
}

func (r *SettingsRepository) AddDenylist(ctx context.Context, tx *gorm.DB, accountID string) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.DenylistEntry{AccountID: accountID}).Error
}

func (r *SettingsRepository) RemoveDenylist(ctx context.Context, tx *gorm.DB, accountID string) error {
	return tx.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&model.DenylistEntry{}).Error
}
