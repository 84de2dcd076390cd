package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentTransaction is an append-only ledger row for an external gateway
// payment. One table serves all request types via the RequestType
// discriminator. Rows are never updated or deleted; the SUM of amounts per
// request is the source of truth for "amount paid via gateway".
type PaymentTransaction struct {
	ID                uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestType       string          `gorm:"type:varchar(20);not null;index:idx_payment_request" json:"request_type"`
	RequestID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_payment_request" json:"request_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	ExternalReference string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"external_reference"`
	PaidBy            *uuid.UUID      `gorm:"type:uuid" json:"paid_by"`
	CreatedAt         time.Time       `gorm:"index" json:"created_at"`
}

// StatusHistory records every successful status transition for audit.
// Shared across request types via the discriminator, like the payment ledger.
type StatusHistory struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestType string     `gorm:"type:varchar(20);not null;index:idx_history_request" json:"request_type"`
	RequestID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_history_request" json:"request_id"`
	OldStatus   string     `gorm:"type:varchar(30);not null" json:"old_status"`
	NewStatus   string     `gorm:"type:varchar(30);not null" json:"new_status"`
	Note        string     `gorm:"type:text" json:"note"`
	ActorID     *uuid.UUID `gorm:"type:uuid" json:"actor_id"`
	CreatedAt   time.Time  `json:"created_at"`
}
