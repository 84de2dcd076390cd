package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"alumniportal/internal/feecache"
	"alumniportal/internal/model"
	"alumniportal/internal/repository"
	"alumniportal/internal/scope"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateFeeRequest struct {
	Name        string `json:"name" binding:"required"`
	RequestType string `json:"request_type" binding:"required,oneof=MEMBERSHIP CERTIFICATE SYNDICATE"`
	Amount      string `json:"amount" binding:"required"`
	ValidFrom   string `json:"valid_from" binding:"required"` // RFC 3339
	ValidTo     string `json:"valid_to" binding:"required"`
}

type UpdateFeeRequest struct {
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	ValidFrom string `json:"valid_from"`
	ValidTo   string `json:"valid_to"`
	IsActive  *bool  `json:"is_active"`
}

// FeeService manages the fee catalog. Mutations invalidate the redis cache so
// the lifecycle engine's read-through never serves a stale window or amount
// past the TTL.
type FeeService interface {
	Create(ctx context.Context, actor scope.Actor, req CreateFeeRequest) (*model.FeeCatalogEntry, error)
	Update(ctx context.Context, actor scope.Actor, id string, req UpdateFeeRequest) (*model.FeeCatalogEntry, error)
	ListActive(ctx context.Context, requestType string) ([]model.FeeCatalogEntry, error)
}

type feeService struct {
	fees   repository.FeeRepository
	audits repository.AuditRepository
	cache  *feecache.Cache
	now    func() time.Time
}

func NewFeeService(fees repository.FeeRepository, audits repository.AuditRepository, cache *feecache.Cache) FeeService {
	return &feeService{fees: fees, audits: audits, cache: cache, now: time.Now}
}

func (s *feeService) Create(ctx context.Context, actor scope.Actor, req CreateFeeRequest) (*model.FeeCatalogEntry, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		return nil, errors.New("amount must be a non-negative decimal")
	}

	validFrom, err := time.Parse(time.RFC3339, req.ValidFrom)
	if err != nil {
		return nil, errors.New("valid_from must be RFC 3339")
	}
	validTo, err := time.Parse(time.RFC3339, req.ValidTo)
	if err != nil {
		return nil, errors.New("valid_to must be RFC 3339")
	}
	if !validTo.After(validFrom) {
		return nil, errors.New("valid_to must be after valid_from")
	}

	fee := &model.FeeCatalogEntry{
		Name:        req.Name,
		RequestType: req.RequestType,
		Amount:      amount,
		ValidFrom:   validFrom,
		ValidTo:     validTo,
		IsActive:    true,
	}
	if err := s.fees.Create(ctx, fee); err != nil {
		return nil, err
	}

	s.auditFee(ctx, actor, model.ActionCreateFee, fee)
	return fee, nil
}

func (s *feeService) Update(ctx context.Context, actor scope.Actor, id string, req UpdateFeeRequest) (*model.FeeCatalogEntry, error) {
	feeID, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.New("invalid fee id")
	}

	fee, err := s.fees.FindByID(ctx, feeID)
	if err != nil {
		return nil, errors.New("fee not found")
	}

	if req.Name != "" {
		fee.Name = req.Name
	}
	if req.Amount != "" {
		amount, parseErr := decimal.NewFromString(req.Amount)
		if parseErr != nil || amount.IsNegative() {
			return nil, errors.New("amount must be a non-negative decimal")
		}
		fee.Amount = amount
	}
	if req.ValidFrom != "" {
		validFrom, parseErr := time.Parse(time.RFC3339, req.ValidFrom)
		if parseErr != nil {
			return nil, errors.New("valid_from must be RFC 3339")
		}
		fee.ValidFrom = validFrom
	}
	if req.ValidTo != "" {
		validTo, parseErr := time.Parse(time.RFC3339, req.ValidTo)
		if parseErr != nil {
			return nil, errors.New("valid_to must be RFC 3339")
		}
		fee.ValidTo = validTo
	}
	if req.IsActive != nil {
		fee.IsActive = *req.IsActive
	}

	if err := s.fees.Update(ctx, fee); err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, fee.ID)
	}
	s.auditFee(ctx, actor, model.ActionUpdateFee, fee)
	return fee, nil
}

func (s *feeService) ListActive(ctx context.Context, requestType string) ([]model.FeeCatalogEntry, error) {
	return s.fees.ListActive(ctx, requestType, s.now())
}

func (s *feeService) auditFee(ctx context.Context, actor scope.Actor, action string, fee *model.FeeCatalogEntry) {
	details, _ := json.Marshal(map[string]any{
		"request_type": fee.RequestType,
		"amount":       fee.Amount.StringFixed(4),
		"is_active":    fee.IsActive,
	})
	actorID := actor.ID
	_ = s.audits.Log(ctx, &model.AuditLog{
		UserID:     &actorID,
		Action:     action,
		EntityID:   fee.ID.String(),
		EntityName: fee.Name,
		Details:    string(details),
	})
}
