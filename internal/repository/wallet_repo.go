package repository

import (
	"context"
	"errors"

	"alumniportal/internal/model"
	"alumniportal/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletRepository is the only code path that mutates an alumni wallet
// balance. Debit and Credit are single conditional UPDATEs, so two concurrent
// requests for the same alumni can never lose a debit or drive the balance
// negative, whichever order the database applies them in.
type WalletRepository interface {
	Balance(ctx context.Context, alumniID uuid.UUID) (decimal.Decimal, error)
	Debit(ctx context.Context, alumniID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(ctx context.Context, alumniID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) Balance(ctx context.Context, alumniID uuid.UUID) (decimal.Decimal, error) {
	var alumni model.Alumni
	if err := GetDB(ctx, r.db).Select("id", "wallet_balance").First(&alumni, "id = ?", alumniID).Error; err != nil {
		return decimal.Zero, err
	}
	return alumni.WalletBalance, nil
}

// Debit subtracts amount, guarded by wallet_balance >= amount. Zero rows
// affected means the guard failed; callers are expected to have clamped the
// amount already, so InsufficientFunds here is a defensive invariant check.
func (r *walletRepository) Debit(ctx context.Context, alumniID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, apperror.Validation("debit amount must not be negative", "alumni_id", alumniID.String())
	}
	if amount.IsZero() {
		return r.Balance(ctx, alumniID)
	}

	db := GetDB(ctx, r.db)
	res := db.Model(&model.Alumni{}).
		Where("id = ? AND wallet_balance >= ?", alumniID, amount).
		Update("wallet_balance", gorm.Expr("wallet_balance - ?", amount))
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish a missing alumni from a guard failure.
		if _, err := r.Balance(ctx, alumniID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return decimal.Zero, apperror.NotFound("alumni not found", "alumni_id", alumniID.String())
			}
			return decimal.Zero, err
		}
		return decimal.Zero, apperror.InsufficientFunds(alumniID.String())
	}

	return r.Balance(ctx, alumniID)
}

func (r *walletRepository) Credit(ctx context.Context, alumniID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, apperror.Validation("credit amount must not be negative", "alumni_id", alumniID.String())
	}

	db := GetDB(ctx, r.db)
	res := db.Model(&model.Alumni{}).
		Where("id = ?", alumniID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount))
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, apperror.NotFound("alumni not found", "alumni_id", alumniID.String())
	}

	return r.Balance(ctx, alumniID)
}
