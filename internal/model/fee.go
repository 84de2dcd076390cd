package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeCatalogEntry is a priceable item (subscription fee, certificate fee,
// syndicate fee) valid within a season window. The amount is snapshotted onto
// the request at creation and never recomputed retroactively.
type FeeCatalogEntry struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(100);not null" json:"name"`
	RequestType string          `gorm:"type:varchar(20);not null;index" json:"request_type"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	ValidFrom   time.Time       `gorm:"not null" json:"valid_from"`
	ValidTo     time.Time       `gorm:"not null" json:"valid_to"`
	IsActive    bool            `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// AvailableAt reports whether the fee may back a new request at the given time.
func (f *FeeCatalogEntry) AvailableAt(now time.Time) bool {
	return f.IsActive && !now.Before(f.ValidFrom) && !now.After(f.ValidTo)
}
