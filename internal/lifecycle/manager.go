package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"alumniportal/internal/model"
	"alumniportal/internal/notify"
	"alumniportal/internal/repository"
	"alumniportal/internal/scope"
	"alumniportal/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FeeSource resolves fee catalog entries. The redis read-through cache and the
// plain repository both satisfy it.
type FeeSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.FeeCatalogEntry, error)
}

// CreateInput is the creation command for one request.
type CreateInput struct {
	OwnerID        uuid.UUID
	FeeID          uuid.UUID
	IdempotencyKey string
	DeliveryMethod string
	TargetBranchID *uuid.UUID // overrides the owner's home branch when set
	AttachmentRef  string
	Details        string
}

// CreateResult reports whether the returned request already existed, so
// callers can answer duplicate submissions with 200 instead of 201.
type CreateResult struct {
	Request   *model.RequestCore
	Duplicate bool
}

// RequestDetail is the full aggregate view: the request plus its payment
// ledger and transition history.
type RequestDetail struct {
	Request  *model.RequestCore        `json:"request"`
	Payments []model.PaymentTransaction `json:"payments"`
	History  []model.StatusHistory      `json:"history"`
}

// Manager is the request lifecycle engine. One instance per request type,
// parameterized by a Definition; all money movement and every status change
// go through it inside a single transaction boundary.
type Manager struct {
	def      Definition
	txm      repository.TransactionManager
	requests repository.RequestRepository
	wallet   repository.WalletRepository
	payments repository.PaymentRepository
	history  repository.HistoryRepository
	audits   repository.AuditRepository
	alumni   repository.AlumniRepository
	fees     FeeSource
	guard    *scope.Guard
	events   notify.Publisher
	log      *zap.Logger
	now      func() time.Time
}

type ManagerDeps struct {
	Tx       repository.TransactionManager
	Requests repository.RequestRepository
	Wallet   repository.WalletRepository
	Payments repository.PaymentRepository
	History  repository.HistoryRepository
	Audits   repository.AuditRepository
	Alumni   repository.AlumniRepository
	Fees     FeeSource
	Guard    *scope.Guard
	Events   notify.Publisher
	Log      *zap.Logger
	Now      func() time.Time
}

func NewManager(def Definition, deps ManagerDeps) *Manager {
	m := &Manager{
		def:      def,
		txm:      deps.Tx,
		requests: deps.Requests,
		wallet:   deps.Wallet,
		payments: deps.Payments,
		history:  deps.History,
		audits:   deps.Audits,
		alumni:   deps.Alumni,
		fees:     deps.Fees,
		guard:    deps.Guard,
		events:   deps.Events,
		log:      deps.Log,
		now:      deps.Now,
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Definition exposes the transition table, mainly for handlers and tests.
func (m *Manager) Definition() Definition {
	return m.def
}

// CreateRequest creates a request exactly once per (owner, idempotency key).
// The wallet debit and the insert share one transaction; a lost race against
// the unique constraint falls back to returning the winner row unchanged.
func (m *Manager) CreateRequest(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.IdempotencyKey == "" {
		return nil, apperror.Validation("idempotency key is required")
	}
	if m.def.RequiresDeliveryMethod && input.DeliveryMethod == "" {
		return nil, apperror.Validation("delivery method is required", "request_type", m.def.Type)
	}
	if input.DeliveryMethod != "" &&
		input.DeliveryMethod != model.DeliveryPickup && input.DeliveryMethod != model.DeliveryHome {
		return nil, apperror.Validation("unknown delivery method", "delivery_method", input.DeliveryMethod)
	}

	// Fast path: retried submissions return the stored row with no new side
	// effects. The DB unique constraint stays the source of truth below.
	if existing, err := m.requests.FindByIdempotencyKey(ctx, input.OwnerID, input.IdempotencyKey); err == nil {
		m.log.Debug("duplicate submission returned existing request",
			zap.String("request_type", m.def.Type),
			zap.String("request_id", existing.ID.String()))
		requestsCreated.WithLabelValues(m.def.Type, "duplicate").Inc()
		return &CreateResult{Request: existing, Duplicate: true}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fee, err := m.fees.FindByID(ctx, input.FeeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.FeeUnavailable(input.FeeID.String())
		}
		return nil, err
	}
	if fee.RequestType != m.def.Type {
		return nil, apperror.Validation("fee does not price this request type",
			"fee_id", fee.ID.String(), "request_type", m.def.Type)
	}
	if !fee.AvailableAt(m.now()) {
		requestsCreated.WithLabelValues(m.def.Type, "rejected").Inc()
		return nil, apperror.FeeUnavailable(fee.ID.String())
	}

	var req *model.RequestCore
	err = m.txm.RunInTx(ctx, func(txCtx context.Context) error {
		owner, err := m.alumni.FindByID(txCtx, input.OwnerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("alumni not found", "alumni_id", input.OwnerID.String())
			}
			return err
		}

		branchID := owner.BranchID
		if input.TargetBranchID != nil {
			branchID = *input.TargetBranchID
		}

		// Split: wallet first, gateway for the remainder. The debit is
		// clamped to the balance, so InsufficientFunds from the repository
		// would indicate a bug, not a user error.
		total := fee.Amount
		balance, err := m.wallet.Balance(txCtx, input.OwnerID)
		if err != nil {
			return err
		}
		usedWallet := decimal.Min(balance, total)
		gateway := total.Sub(usedWallet)

		if usedWallet.IsPositive() {
			if _, err := m.wallet.Debit(txCtx, input.OwnerID, usedWallet); err != nil {
				return err
			}
		}

		req = &model.RequestCore{
			OwnerID:          input.OwnerID,
			BranchID:         branchID,
			FeeID:            fee.ID,
			IdempotencyKey:   input.IdempotencyKey,
			TotalAmount:      total,
			UsedWalletAmount: usedWallet,
			GatewayAmount:    gateway,
			RemainingAmount:  gateway,
			Status:           model.StatusPending,
			DeliveryMethod:   input.DeliveryMethod,
			AttachmentRef:    input.AttachmentRef,
			Details:          input.Details,
		}
		if err := m.requests.Create(txCtx, req); err != nil {
			return err
		}

		// Wallet fully covers the cost: no external payment is owed.
		if gateway.IsZero() {
			if err := m.transition(txCtx, req, model.StatusPaid, "wallet covered full amount", nil); err != nil {
				return err
			}
			if err := m.requests.Update(txCtx, req); err != nil {
				return err
			}
		}

		if usedWallet.IsPositive() {
			if err := m.audit(txCtx, nil, model.ActionWalletDebit, req.ID.String(), map[string]any{
				"alumni_id": input.OwnerID.String(),
				"amount":    usedWallet.StringFixed(4),
			}); err != nil {
				return err
			}
		}
		return m.audit(txCtx, nil, model.ActionCreateRequest, req.ID.String(), map[string]any{
			"request_type":       m.def.Type,
			"fee_id":             fee.ID.String(),
			"total_amount":       total.StringFixed(4),
			"used_wallet_amount": usedWallet.StringFixed(4),
			"gateway_amount":     gateway.StringFixed(4),
		})
	})
	if err != nil {
		// Lost the insert race: another retry committed first. The
		// transaction rolled back, so the wallet was debited exactly once,
		// by the winner.
		if repository.IsUniqueViolation(err) {
			existing, readErr := m.requests.FindByIdempotencyKey(ctx, input.OwnerID, input.IdempotencyKey)
			if readErr != nil {
				return nil, readErr
			}
			requestsCreated.WithLabelValues(m.def.Type, "duplicate").Inc()
			return &CreateResult{Request: existing, Duplicate: true}, nil
		}
		return nil, err
	}

	requestsCreated.WithLabelValues(m.def.Type, "created").Inc()
	m.log.Info("request created",
		zap.String("request_type", m.def.Type),
		zap.String("request_id", req.ID.String()),
		zap.String("status", req.Status),
		zap.String("total_amount", req.TotalAmount.StringFixed(4)),
		zap.String("gateway_amount", req.GatewayAmount.StringFixed(4)))

	if req.Status == model.StatusPaid {
		m.publish(ctx, req, model.StatusPending, model.StatusPaid)
	}
	return &CreateResult{Request: req}, nil
}

// RecordGatewayPayment appends an immutable ledger row and, when the ledger
// sum reaches the gateway amount, advances PENDING to PAID. The total is
// always recomputed from the ledger, never trusted from the cached column.
func (m *Manager) RecordGatewayPayment(ctx context.Context, actor scope.Actor, requestID uuid.UUID, amount decimal.Decimal, externalRef string) (*model.RequestCore, error) {
	if !amount.IsPositive() {
		return nil, apperror.Validation("payment amount must be positive", "request_id", requestID.String())
	}
	if externalRef == "" {
		return nil, apperror.Validation("external reference is required", "request_id", requestID.String())
	}

	var req *model.RequestCore
	var oldStatus string
	err := m.txm.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = m.requests.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("request not found", "request_id", requestID.String())
			}
			return err
		}

		if err := m.authorizePayment(txCtx, actor, req); err != nil {
			return err
		}

		if m.def.IsTerminal(req.Status) {
			return apperror.InvalidTransition(req.ID.String(), req.Status, model.StatusPaid)
		}

		paid, err := m.payments.SumForRequest(txCtx, m.def.Type, req.ID)
		if err != nil {
			return err
		}
		if req.GatewayAmount.IsZero() || paid.GreaterThanOrEqual(req.GatewayAmount) {
			return apperror.AlreadySettled(req.ID.String())
		}

		remainder := req.GatewayAmount.Sub(paid)
		if amount.GreaterThan(remainder) {
			return apperror.Validation("payment exceeds the outstanding amount",
				"request_id", req.ID.String(), "remaining_amount", remainder.StringFixed(4))
		}

		var paidBy *uuid.UUID
		if actor.ID != uuid.Nil {
			id := actor.ID
			paidBy = &id
		}
		entry := &model.PaymentTransaction{
			RequestType:       m.def.Type,
			RequestID:         req.ID,
			Amount:            amount,
			ExternalReference: externalRef,
			PaidBy:            paidBy,
		}
		if err := m.payments.Append(txCtx, entry); err != nil {
			return err
		}

		req.RemainingAmount = remainder.Sub(amount)
		oldStatus = req.Status
		if req.RemainingAmount.IsZero() && req.Status == model.StatusPending {
			if err := m.transition(txCtx, req, model.StatusPaid, "gateway payment completed", paidBy); err != nil {
				return err
			}
		}
		if err := m.requests.Update(txCtx, req); err != nil {
			return err
		}

		return m.audit(txCtx, paidBy, model.ActionRecordGatewayPayment, req.ID.String(), map[string]any{
			"request_type":     m.def.Type,
			"amount":           amount.StringFixed(4),
			"external_ref":     externalRef,
			"remaining_amount": req.RemainingAmount.StringFixed(4),
		})
	})
	if err != nil {
		return nil, err
	}

	paymentsRecorded.WithLabelValues(m.def.Type).Inc()
	if req.Status != oldStatus {
		m.publish(ctx, req, oldStatus, req.Status)
	}
	return req, nil
}

// ApproveRequest moves a request from PAID to APPROVED. The critical business
// invariant: no request may be approved while money is owed, checked against
// the ledger sum even though PAID status implies it.
func (m *Manager) ApproveRequest(ctx context.Context, actor scope.Actor, requestID uuid.UUID) (*model.RequestCore, error) {
	var req *model.RequestCore
	err := m.txm.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = m.requests.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("request not found", "request_id", requestID.String())
			}
			return err
		}

		if err := m.authorizeStaff(txCtx, actor, req); err != nil {
			return err
		}

		if req.GatewayAmount.IsPositive() {
			paid, err := m.payments.SumForRequest(txCtx, m.def.Type, req.ID)
			if err != nil {
				return err
			}
			if paid.LessThan(req.GatewayAmount) {
				return apperror.PaymentRequired(req.ID.String())
			}
		}

		if req.Status != model.StatusPaid || !m.def.CanTransition(req.Status, model.StatusApproved) {
			return apperror.InvalidTransition(req.ID.String(), req.Status, model.StatusApproved)
		}

		actorID := actor.ID
		if err := m.transition(txCtx, req, model.StatusApproved, "", &actorID); err != nil {
			return err
		}
		if err := m.requests.Update(txCtx, req); err != nil {
			return err
		}

		return m.audit(txCtx, &actorID, model.ActionApproveRequest, req.ID.String(), map[string]any{
			"request_type": m.def.Type,
		})
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, req, model.StatusPaid, model.StatusApproved)
	return req, nil
}

// RejectRequest is allowed from any non-terminal status and is itself
// terminal. The wallet portion is refunded, since the service will never be
// rendered; gateway refunds are the gateway operator's problem.
func (m *Manager) RejectRequest(ctx context.Context, actor scope.Actor, requestID uuid.UUID, reason string) (*model.RequestCore, error) {
	var req *model.RequestCore
	var oldStatus string
	err := m.txm.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = m.requests.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("request not found", "request_id", requestID.String())
			}
			return err
		}

		if err := m.authorizeStaff(txCtx, actor, req); err != nil {
			return err
		}

		if m.def.IsTerminal(req.Status) {
			return apperror.InvalidTransition(req.ID.String(), req.Status, model.StatusRejected)
		}

		if req.UsedWalletAmount.IsPositive() {
			if _, err := m.wallet.Credit(txCtx, req.OwnerID, req.UsedWalletAmount); err != nil {
				return err
			}
			actorID := actor.ID
			if err := m.audit(txCtx, &actorID, model.ActionWalletCredit, req.ID.String(), map[string]any{
				"alumni_id": req.OwnerID.String(),
				"amount":    req.UsedWalletAmount.StringFixed(4),
				"reason":    "request rejected",
			}); err != nil {
				return err
			}
		}

		oldStatus = req.Status
		if reason != "" {
			if req.AdminNotes != "" {
				req.AdminNotes += "\n"
			}
			req.AdminNotes += "Rejected: " + reason
		}
		actorID := actor.ID
		if err := m.transition(txCtx, req, model.StatusRejected, reason, &actorID); err != nil {
			return err
		}
		if err := m.requests.Update(txCtx, req); err != nil {
			return err
		}

		return m.audit(txCtx, &actorID, model.ActionRejectRequest, req.ID.String(), map[string]any{
			"request_type": m.def.Type,
			"reason":       reason,
		})
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, req, oldStatus, model.StatusRejected)
	return req, nil
}

// ChangeStatus performs a type-specific guarded transition: look up the
// allowed next states for the current state, reject if the target is not in
// the set. PAID and REJECTED have dedicated operations and cannot be set here.
func (m *Manager) ChangeStatus(ctx context.Context, actor scope.Actor, requestID uuid.UUID, newStatus, note string) (*model.RequestCore, error) {
	if newStatus == model.StatusPaid || newStatus == model.StatusPending {
		return nil, apperror.Validation("status is payment-driven and cannot be set directly", "status", newStatus)
	}
	if newStatus == model.StatusRejected {
		return m.RejectRequest(ctx, actor, requestID, note)
	}
	if newStatus == model.StatusApproved {
		return m.ApproveRequest(ctx, actor, requestID)
	}

	var req *model.RequestCore
	var oldStatus string
	err := m.txm.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = m.requests.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("request not found", "request_id", requestID.String())
			}
			return err
		}

		if err := m.authorizeStaff(txCtx, actor, req); err != nil {
			return err
		}

		if m.def.IsTerminal(req.Status) || !m.def.CanTransition(req.Status, newStatus) {
			return apperror.InvalidTransition(req.ID.String(), req.Status, newStatus)
		}
		if required := m.def.RequiredDelivery(newStatus); required != "" && req.DeliveryMethod != required {
			return apperror.InvalidTransition(req.ID.String(), req.Status, newStatus)
		}

		oldStatus = req.Status
		actorID := actor.ID
		if err := m.transition(txCtx, req, newStatus, note, &actorID); err != nil {
			return err
		}
		if err := m.requests.Update(txCtx, req); err != nil {
			return err
		}

		return m.audit(txCtx, &actorID, model.ActionChangeStatus, req.ID.String(), map[string]any{
			"request_type": m.def.Type,
			"from":         oldStatus,
			"to":           newStatus,
			"note":         note,
		})
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, req, oldStatus, newStatus)
	return req, nil
}

// GetRequest returns the aggregate with its ledger and history, scoped to
// what the actor may see: owners read their own, staff read their branch.
func (m *Manager) GetRequest(ctx context.Context, actor scope.Actor, requestID uuid.UUID) (*RequestDetail, error) {
	req, err := m.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("request not found", "request_id", requestID.String())
		}
		return nil, err
	}

	if actor.IsAlumni {
		if req.OwnerID != actor.ID {
			return nil, apperror.BranchScope(req.ID.String())
		}
	} else if !m.guard.CanTouch(actor, req.BranchID) {
		return nil, apperror.BranchScope(req.ID.String())
	}

	payments, err := m.payments.ListForRequest(ctx, m.def.Type, req.ID)
	if err != nil {
		return nil, err
	}
	history, err := m.history.ListForRequest(ctx, m.def.Type, req.ID)
	if err != nil {
		return nil, err
	}

	return &RequestDetail{Request: req, Payments: payments, History: history}, nil
}

// transition mutates the status in memory, appends the history row, bumps the
// metric, and fires the OnPaid hook. Callers persist the request afterwards.
func (m *Manager) transition(ctx context.Context, req *model.RequestCore, newStatus, note string, actorID *uuid.UUID) error {
	oldStatus := req.Status
	req.Status = newStatus

	entry := &model.StatusHistory{
		RequestType: m.def.Type,
		RequestID:   req.ID,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		Note:        note,
		ActorID:     actorID,
	}
	if err := m.history.Append(ctx, entry); err != nil {
		return err
	}
	transitionsTotal.WithLabelValues(m.def.Type, oldStatus, newStatus).Inc()

	if newStatus == model.StatusPaid && m.def.OnPaid != nil {
		return m.def.OnPaid(ctx, req)
	}
	return nil
}

// authorizePayment lets the owner, or staff holding the payments capability
// within branch scope, record a payment. Rejections are warned for the audit
// trail but write nothing: the surrounding transaction rolls back anyway.
func (m *Manager) authorizePayment(_ context.Context, actor scope.Actor, req *model.RequestCore) error {
	if actor.IsAlumni {
		if actor.ID == req.OwnerID {
			return nil
		}
	} else if actor.Has(model.CapPaymentsRecord) && m.guard.CanTouch(actor, req.BranchID) {
		return nil
	}

	m.log.Warn("unauthorized payment attempt",
		zap.String("request_id", req.ID.String()),
		zap.String("actor_id", actor.ID.String()))
	return apperror.UnauthorizedPayment(req.ID.String())
}

// authorizeStaff enforces branch scope on single-request mutations.
func (m *Manager) authorizeStaff(_ context.Context, actor scope.Actor, req *model.RequestCore) error {
	if actor.IsAlumni || !m.guard.CanTouch(actor, req.BranchID) {
		m.log.Warn("branch scope violation",
			zap.String("request_id", req.ID.String()),
			zap.String("actor_id", actor.ID.String()))
		return apperror.BranchScope(req.ID.String())
	}
	return nil
}

func (m *Manager) audit(ctx context.Context, actorID *uuid.UUID, action, entityID string, details map[string]any) error {
	payload, _ := json.Marshal(details)
	return m.audits.Log(ctx, &model.AuditLog{
		UserID:     actorID,
		Action:     action,
		EntityID:   entityID,
		EntityName: m.def.Type,
		Details:    string(payload),
	})
}

func (m *Manager) publish(ctx context.Context, req *model.RequestCore, oldStatus, newStatus string) {
	if m.events == nil {
		return
	}
	m.events.PublishStatusChange(ctx, notify.StatusEvent{
		RequestType: m.def.Type,
		RequestID:   req.ID,
		OwnerID:     req.OwnerID,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		Timestamp:   m.now(),
	})
}
