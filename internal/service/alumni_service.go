package service

import (
	"context"

	"alumniportal/internal/model"
	"alumniportal/internal/repository"
	"alumniportal/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateAlumniRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	BranchID string `json:"branch_id" binding:"required,uuid"`
}

type AlumniService interface {
	Create(ctx context.Context, req CreateAlumniRequest) (*model.Alumni, error)
	GetByID(ctx context.Context, id string) (*model.Alumni, error)
	List(ctx context.Context, page, limit int) ([]model.Alumni, int64, error)
}

type alumniService struct {
	alumni repository.AlumniRepository
}

func NewAlumniService(alumni repository.AlumniRepository) AlumniService {
	return &alumniService{alumni: alumni}
}

func (s *alumniService) Create(ctx context.Context, req CreateAlumniRequest) (*model.Alumni, error) {
	branchID, err := uuid.Parse(req.BranchID)
	if err != nil {
		return nil, apperror.Validation("invalid branch_id")
	}

	if existing, err := s.alumni.FindByEmail(ctx, req.Email); err == nil && existing != nil {
		return nil, apperror.New(apperror.CodeConflict, "alumni with this email already exists")
	}

	record := &model.Alumni{
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		BranchID:      branchID,
		WalletBalance: decimal.Zero,
	}
	if err := s.alumni.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *alumniService) GetByID(ctx context.Context, id string) (*model.Alumni, error) {
	alumniID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("invalid alumni id")
	}
	record, err := s.alumni.FindByID(ctx, alumniID)
	if err != nil {
		return nil, apperror.NotFound("alumni not found")
	}
	return record, nil
}

func (s *alumniService) List(ctx context.Context, page, limit int) ([]model.Alumni, int64, error) {
	return s.alumni.List(ctx, page, limit)
}
