package repository

import (
	"context"
	"time"

	"alumniportal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FeeRepository interface {
	Create(ctx context.Context, fee *model.FeeCatalogEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.FeeCatalogEntry, error)
	ListActive(ctx context.Context, requestType string, now time.Time) ([]model.FeeCatalogEntry, error)
	Update(ctx context.Context, fee *model.FeeCatalogEntry) error
}

type feeRepository struct {
	db *gorm.DB
}

func NewFeeRepository(db *gorm.DB) FeeRepository {
	return &feeRepository{db: db}
}

func (r *feeRepository) Create(ctx context.Context, fee *model.FeeCatalogEntry) error {
	return GetDB(ctx, r.db).Create(fee).Error
}

func (r *feeRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.FeeCatalogEntry, error) {
	var fee model.FeeCatalogEntry
	if err := GetDB(ctx, r.db).First(&fee, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &fee, nil
}

func (r *feeRepository) ListActive(ctx context.Context, requestType string, now time.Time) ([]model.FeeCatalogEntry, error) {
	var fees []model.FeeCatalogEntry
	query := GetDB(ctx, r.db).
		Where("is_active = ? AND valid_from <= ? AND valid_to >= ?", true, now, now)
	if requestType != "" {
		query = query.Where("request_type = ?", requestType)
	}
	if err := query.Order("valid_from DESC").Find(&fees).Error; err != nil {
		return nil, err
	}
	return fees, nil
}

func (r *feeRepository) Update(ctx context.Context, fee *model.FeeCatalogEntry) error {
	return GetDB(ctx, r.db).Save(fee).Error
}
