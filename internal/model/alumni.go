package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Alumni is the portal member profile. WalletBalance is the prepaid balance
// consumed by the split-payment engine; it is mutated only through the
// WalletRepository debit/credit operations and never set directly.
type Alumni struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	FullName      string          `gorm:"type:varchar(255);not null" json:"full_name"`
	Email         string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone         string          `gorm:"type:varchar(20)" json:"phone"`
	BranchID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"branch_id"`
	WalletBalance decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"wallet_balance"` // never negative
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName pins the table; gorm's pluralizer mangles "alumni".
func (Alumni) TableName() string {
	return "alumni"
}

// Branch is an organizational unit; staff visibility is scoped to it.
type Branch struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	City      string    `gorm:"type:varchar(100)" json:"city"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
