package repository

import (
	"context"

	"alumniportal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryRepository appends one row per successful status transition.
type HistoryRepository interface {
	Append(ctx context.Context, entry *model.StatusHistory) error
	ListForRequest(ctx context.Context, requestType string, requestID uuid.UUID) ([]model.StatusHistory, error)
}

type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Append(ctx context.Context, entry *model.StatusHistory) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *historyRepository) ListForRequest(ctx context.Context, requestType string, requestID uuid.UUID) ([]model.StatusHistory, error) {
	var entries []model.StatusHistory
	err := GetDB(ctx, r.db).
		Where("request_type = ? AND request_id = ?", requestType, requestID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}
