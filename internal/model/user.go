package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Staff capability codes. Embedded in the JWT at login and carried on the
// scope.Actor value object — never read from ambient state inside the engine.
const (
	CapRequestsRead   = "requests.read"
	CapRequestsWrite  = "requests.write"
	CapRequestsGlobal = "requests.global_view"
	CapPaymentsRecord = "payments.record"
	CapFeesManage     = "fees.manage"
	CapWalletManage   = "wallet.manage"
	CapUsersRead      = "users.read"
	CapUsersWrite     = "users.write"
)

// User represents a staff account. BranchID bounds what the account may see
// and touch unless it holds the global-view capability; a staff account with
// no branch sees nothing.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password     string         `gorm:"type:varchar(255);not null" json:"-"` // Omit password from JSON requests/responses
	Role         string         `gorm:"type:varchar(50);not null" json:"role"` // admin, manager, staff
	BranchID     *uuid.UUID     `gorm:"type:uuid;index" json:"branch_id"`
	Capabilities []string       `gorm:"serializer:json;type:jsonb" json:"capabilities"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
