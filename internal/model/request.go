package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequestType enum constants — one physical table per type, same column shape
const (
	RequestTypeMembership  = "MEMBERSHIP"
	RequestTypeCertificate = "CERTIFICATE"
	RequestTypeSyndicate   = "SYNDICATE"
)

// Statuses shared by every request type. Type-specific forward states
// (READY_FOR_PICKUP, OUT_FOR_DELIVERY, ...) are declared alongside the
// transition tables in the lifecycle package.
const (
	StatusPending  = "PENDING"
	StatusPaid     = "PAID"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// DeliveryMethod enum constants
const (
	DeliveryPickup = "PICKUP"
	DeliveryHome   = "HOME_DELIVERY"
)

// RequestCore is the shared shape of membership_requests, certificate_requests
// and syndicate_requests. The engine reads and writes it through a table-bound
// repository, so the three tables stay column-identical by construction.
//
// Amount invariant: TotalAmount = UsedWalletAmount + GatewayAmount, and
// RemainingAmount = GatewayAmount - sum(payment ledger rows), clamped at zero.
// The ledger sum is authoritative; RemainingAmount is a cached convenience.
type RequestCore struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_owner_idem,where:deleted_at IS NULL" json:"owner_id"`
	Owner           *Alumni         `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	BranchID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"branch_id"` // fixed at creation, never reassigned
	FeeID           uuid.UUID       `gorm:"type:uuid;not null" json:"fee_id"`
	IdempotencyKey  string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_owner_idem,where:deleted_at IS NULL" json:"idempotency_key"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_amount"` // fee snapshot at creation
	UsedWalletAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"used_wallet_amount"`
	GatewayAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"gateway_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"remaining_amount"`
	Status          string          `gorm:"type:varchar(30);not null;default:'PENDING';index" json:"status"`
	DeliveryMethod  string          `gorm:"type:varchar(20)" json:"delivery_method,omitempty"` // PICKUP or HOME_DELIVERY where applicable
	AttachmentRef   string          `gorm:"type:varchar(255)" json:"attachment_ref,omitempty"` // opaque blob identifier, binary stored elsewhere
	Details         string          `gorm:"type:jsonb" json:"details,omitempty"`               // type-specific extras snapshot
	AdminNotes      string          `gorm:"type:text" json:"admin_notes"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// RequestTables maps request types to their physical tables.
var RequestTables = map[string]string{
	RequestTypeMembership:  "membership_requests",
	RequestTypeCertificate: "certificate_requests",
	RequestTypeSyndicate:   "syndicate_requests",
}
