package query

import (
	"context"
	"time"

	"alumniportal/internal/model"
	"alumniportal/internal/scope"
	"alumniportal/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Filter narrows a request listing. Zero values mean "no constraint".
type Filter struct {
	Status         string
	DeliveryMethod string
	DateFrom       *time.Time
	DateTo         *time.Time
	Text           string // matches owner name or email
	Page           int
	Limit          int
	SortBy         string // created_at, total_amount, status
	SortDesc       bool
}

// Summary is the list projection. Deliberately excludes the split breakdown
// and idempotency key: list views never expose payment internals.
type Summary struct {
	ID             uuid.UUID       `json:"id"`
	OwnerName      string          `json:"owner_name"`
	BranchID       uuid.UUID       `json:"branch_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         string          `json:"status"`
	DeliveryMethod string          `json:"delivery_method,omitempty"`
	RequestDate    time.Time       `json:"request_date"`
}

var sortColumns = map[string]string{
	"created_at":   "r.created_at",
	"total_amount": "r.total_amount",
	"status":       "r.status",
}

// RequestQueryService lists requests of every type, always through the branch
// scope guard first.
type RequestQueryService struct {
	db    *gorm.DB
	guard *scope.Guard
}

func NewRequestQueryService(db *gorm.DB, guard *scope.Guard) *RequestQueryService {
	return &RequestQueryService{db: db, guard: guard}
}

// List returns the total count and one page of summaries for the given
// request type, scoped to the actor.
func (s *RequestQueryService) List(ctx context.Context, actor scope.Actor, requestType string, filter Filter) ([]Summary, int64, error) {
	table, ok := model.RequestTables[requestType]
	if !ok {
		return nil, 0, apperror.Validation("unknown request type", "request_type", requestType)
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	base := s.db.WithContext(ctx).
		Table(table+" AS r").
		Joins("JOIN alumni a ON a.id = r.owner_id").
		Where("r.deleted_at IS NULL").
		Scopes(s.scopeOn(actor))

	base = applyFilter(base, filter)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := orderClause(filter)
	offset := (filter.Page - 1) * filter.Limit

	var rows []Summary
	err := base.Session(&gorm.Session{}).
		Select("r.id, a.full_name AS owner_name, r.branch_id, r.total_amount, r.status, r.delivery_method, r.created_at AS request_date").
		Order(order).
		Offset(offset).
		Limit(filter.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// scopeOn qualifies the guard's branch predicate with the request alias.
func (s *RequestQueryService) scopeOn(actor scope.Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if actor.IsAlumni {
			return db.Where("r.owner_id = ?", actor.ID)
		}
		if actor.Has(model.CapRequestsGlobal) {
			return db
		}
		if actor.BranchID == nil {
			return db.Where("1 = 0")
		}
		return db.Where("r.branch_id = ?", *actor.BranchID)
	}
}

func applyFilter(db *gorm.DB, filter Filter) *gorm.DB {
	if filter.Status != "" {
		db = db.Where("r.status = ?", filter.Status)
	}
	if filter.DeliveryMethod != "" {
		db = db.Where("r.delivery_method = ?", filter.DeliveryMethod)
	}
	if filter.DateFrom != nil {
		db = db.Where("r.created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		db = db.Where("r.created_at <= ?", *filter.DateTo)
	}
	if filter.Text != "" {
		like := "%" + filter.Text + "%"
		db = db.Where("a.full_name ILIKE ? OR a.email ILIKE ?", like, like)
	}
	return db
}

func orderClause(filter Filter) string {
	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = "r.created_at"
	}
	if filter.SortDesc {
		return column + " DESC"
	}
	return column + " ASC"
}
