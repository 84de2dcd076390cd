package service

import (
	"context"
	"encoding/json"
	"errors"

	"alumniportal/internal/model"
	"alumniportal/internal/repository"
	"alumniportal/internal/scope"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletBalanceResponse struct {
	AlumniID uuid.UUID       `json:"alumni_id"`
	Balance  decimal.Decimal `json:"balance"`
}

// WalletService exposes balance reads and the staff top-up path. Debits never
// go through here: the lifecycle engine owns them so a debit can never happen
// outside a request-creation transaction.
type WalletService interface {
	Balance(ctx context.Context, alumniID string) (*WalletBalanceResponse, error)
	Credit(ctx context.Context, actor scope.Actor, alumniID string, amount string) (*WalletBalanceResponse, error)
}

type walletService struct {
	wallet repository.WalletRepository
	audits repository.AuditRepository
}

func NewWalletService(wallet repository.WalletRepository, audits repository.AuditRepository) WalletService {
	return &walletService{wallet: wallet, audits: audits}
}

func (s *walletService) Balance(ctx context.Context, alumniID string) (*WalletBalanceResponse, error) {
	id, err := uuid.Parse(alumniID)
	if err != nil {
		return nil, errors.New("invalid alumni id")
	}

	balance, err := s.wallet.Balance(ctx, id)
	if err != nil {
		return nil, err
	}
	return &WalletBalanceResponse{AlumniID: id, Balance: balance}, nil
}

func (s *walletService) Credit(ctx context.Context, actor scope.Actor, alumniID string, amount string) (*WalletBalanceResponse, error) {
	id, err := uuid.Parse(alumniID)
	if err != nil {
		return nil, errors.New("invalid alumni id")
	}

	value, err := decimal.NewFromString(amount)
	if err != nil || !value.IsPositive() {
		return nil, errors.New("amount must be a positive decimal")
	}

	balance, err := s.wallet.Credit(ctx, id, value)
	if err != nil {
		return nil, err
	}

	details, _ := json.Marshal(map[string]any{
		"alumni_id": id.String(),
		"amount":    value.StringFixed(4),
	})
	actorID := actor.ID
	_ = s.audits.Log(ctx, &model.AuditLog{
		UserID:   &actorID,
		Action:   model.ActionWalletCredit,
		EntityID: id.String(),
		Details:  string(details),
	})

	return &WalletBalanceResponse{AlumniID: id, Balance: balance}, nil
}
