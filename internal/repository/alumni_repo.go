package repository

import (
	"context"

	"alumniportal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AlumniRepository interface {
	Create(ctx context.Context, alumni *model.Alumni) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Alumni, error)
	FindByEmail(ctx context.Context, email string) (*model.Alumni, error)
	List(ctx context.Context, page, limit int) ([]model.Alumni, int64, error)
}

type alumniRepository struct {
	db *gorm.DB
}

func NewAlumniRepository(db *gorm.DB) AlumniRepository {
	return &alumniRepository{db: db}
}

func (r *alumniRepository) Create(ctx context.Context, alumni *model.Alumni) error {
	return GetDB(ctx, r.db).Create(alumni).Error
}

func (r *alumniRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Alumni, error) {
	var alumni model.Alumni
	if err := GetDB(ctx, r.db).First(&alumni, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &alumni, nil
}

func (r *alumniRepository) FindByEmail(ctx context.Context, email string) (*model.Alumni, error) {
	var alumni model.Alumni
	if err := GetDB(ctx, r.db).First(&alumni, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &alumni, nil
}

func (r *alumniRepository) List(ctx context.Context, page, limit int) ([]model.Alumni, int64, error) {
	var rows []model.Alumni
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Alumni{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}
