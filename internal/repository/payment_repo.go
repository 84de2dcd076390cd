package repository

import (
	"context"

	"alumniportal/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentRepository is append-only: no update or delete methods exist. The
// recomputed SUM is always taken over the ledger rows, never trusted from a
// cached column, so concurrent recordings converge on the correct total.
type PaymentRepository interface {
	Append(ctx context.Context, tx *model.PaymentTransaction) error
	SumForRequest(ctx context.Context, requestType string, requestID uuid.UUID) (decimal.Decimal, error)
	ListForRequest(ctx context.Context, requestType string, requestID uuid.UUID) ([]model.PaymentTransaction, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Append(ctx context.Context, tx *model.PaymentTransaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *paymentRepository) SumForRequest(ctx context.Context, requestType string, requestID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := GetDB(ctx, r.db).Model(&model.PaymentTransaction{}).
		Select("SUM(amount)").
		Where("request_type = ? AND request_id = ?", requestType, requestID).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *paymentRepository) ListForRequest(ctx context.Context, requestType string, requestID uuid.UUID) ([]model.PaymentTransaction, error) {
	var txs []model.PaymentTransaction
	err := GetDB(ctx, r.db).
		Where("request_type = ? AND request_id = ?", requestType, requestID).
		Order("created_at ASC").
		Find(&txs).Error
	return txs, err
}
