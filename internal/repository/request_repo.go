package repository

import (
	"context"
	"errors"

	"alumniportal/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestRepository persists one request type. The three implementations are
// the same code bound to different tables, which keeps the column shape of
// membership_requests, certificate_requests and syndicate_requests identical.
type RequestRepository interface {
	RequestType() string
	Create(ctx context.Context, req *model.RequestCore) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RequestCore, error)
	// FindByIDForUpdate takes a row lock so concurrent payment recordings
	// serialize on the request.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RequestCore, error)
	FindByIdempotencyKey(ctx context.Context, ownerID uuid.UUID, key string) (*model.RequestCore, error)
	Update(ctx context.Context, req *model.RequestCore) error
}

type requestRepository struct {
	db          *gorm.DB
	requestType string
	table       string
}

// NewRequestRepository binds a repository to the table of the given request
// type. Unknown types panic at wiring time, not at runtime.
func NewRequestRepository(db *gorm.DB, requestType string) RequestRepository {
	table, ok := model.RequestTables[requestType]
	if !ok {
		panic("unknown request type: " + requestType)
	}
	return &requestRepository{db: db, requestType: requestType, table: table}
}

func (r *requestRepository) RequestType() string {
	return r.requestType
}

func (r *requestRepository) Create(ctx context.Context, req *model.RequestCore) error {
	return GetDB(ctx, r.db).Table(r.table).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RequestCore, error) {
	var req model.RequestCore
	if err := GetDB(ctx, r.db).Table(r.table).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RequestCore, error) {
	var req model.RequestCore
	if err := GetDB(ctx, r.db).Table(r.table).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) FindByIdempotencyKey(ctx context.Context, ownerID uuid.UUID, key string) (*model.RequestCore, error) {
	var req model.RequestCore
	if err := GetDB(ctx, r.db).Table(r.table).
		First(&req, "owner_id = ? AND idempotency_key = ?", ownerID, key).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) Update(ctx context.Context, req *model.RequestCore) error {
	return GetDB(ctx, r.db).Table(r.table).Save(req).Error
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. The (owner_id, idempotency_key) constraint is the real source of
// truth for idempotent creation; the application-level lookup is only a fast
// path to avoid this error on retries.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
