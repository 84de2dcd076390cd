package lifecycle

import (
	"context"
	"testing"
	"time"

	"alumniportal/internal/model"
	"alumniportal/internal/scope"
	"alumniportal/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- in-memory fakes ---

type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type fakeRequestRepo struct {
	requestType string
	rows        map[uuid.UUID]*model.RequestCore
}

func newFakeRequestRepo(requestType string) *fakeRequestRepo {
	return &fakeRequestRepo{requestType: requestType, rows: map[uuid.UUID]*model.RequestCore{}}
}

func (r *fakeRequestRepo) RequestType() string { return r.requestType }

func (r *fakeRequestRepo) Create(_ context.Context, req *model.RequestCore) error {
	for _, row := range r.rows {
		if row.OwnerID == req.OwnerID && row.IdempotencyKey == req.IdempotencyKey {
			return &pgconn.PgError{Code: "23505", ConstraintName: "idx_owner_idem"}
		}
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	copied := *req
	r.rows[req.ID] = &copied
	return nil
}

func (r *fakeRequestRepo) FindByID(_ context.Context, id uuid.UUID) (*model.RequestCore, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (r *fakeRequestRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RequestCore, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeRequestRepo) FindByIdempotencyKey(_ context.Context, ownerID uuid.UUID, key string) (*model.RequestCore, error) {
	for _, row := range r.rows {
		if row.OwnerID == ownerID && row.IdempotencyKey == key {
			copied := *row
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRequestRepo) Update(_ context.Context, req *model.RequestCore) error {
	copied := *req
	r.rows[req.ID] = &copied
	return nil
}

// raceRequestRepo simulates losing the insert race: the fast-path lookup
// misses, the insert hits the unique constraint, the fallback read succeeds.
type raceRequestRepo struct {
	*fakeRequestRepo
	misses int
}

func (r *raceRequestRepo) FindByIdempotencyKey(ctx context.Context, ownerID uuid.UUID, key string) (*model.RequestCore, error) {
	if r.misses > 0 {
		r.misses--
		return nil, gorm.ErrRecordNotFound
	}
	return r.fakeRequestRepo.FindByIdempotencyKey(ctx, ownerID, key)
}

type fakeWalletRepo struct {
	balances map[uuid.UUID]decimal.Decimal
	debits   int
	credits  int
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{balances: map[uuid.UUID]decimal.Decimal{}}
}

func (r *fakeWalletRepo) Balance(_ context.Context, alumniID uuid.UUID) (decimal.Decimal, error) {
	return r.balances[alumniID], nil
}

func (r *fakeWalletRepo) Debit(_ context.Context, alumniID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	balance := r.balances[alumniID]
	if balance.LessThan(amount) {
		return decimal.Zero, apperror.InsufficientFunds(alumniID.String())
	}
	r.balances[alumniID] = balance.Sub(amount)
	r.debits++
	return r.balances[alumniID], nil
}

func (r *fakeWalletRepo) Credit(_ context.Context, alumniID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	r.balances[alumniID] = r.balances[alumniID].Add(amount)
	r.credits++
	return r.balances[alumniID], nil
}

type fakePaymentRepo struct {
	rows []model.PaymentTransaction
}

func (r *fakePaymentRepo) Append(_ context.Context, tx *model.PaymentTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	r.rows = append(r.rows, *tx)
	return nil
}

func (r *fakePaymentRepo) SumForRequest(_ context.Context, requestType string, requestID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, row := range r.rows {
		if row.RequestType == requestType && row.RequestID == requestID {
			sum = sum.Add(row.Amount)
		}
	}
	return sum, nil
}

func (r *fakePaymentRepo) ListForRequest(_ context.Context, requestType string, requestID uuid.UUID) ([]model.PaymentTransaction, error) {
	var out []model.PaymentTransaction
	for _, row := range r.rows {
		if row.RequestType == requestType && row.RequestID == requestID {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeHistoryRepo struct {
	rows []model.StatusHistory
}

func (r *fakeHistoryRepo) Append(_ context.Context, entry *model.StatusHistory) error {
	r.rows = append(r.rows, *entry)
	return nil
}

func (r *fakeHistoryRepo) ListForRequest(_ context.Context, requestType string, requestID uuid.UUID) ([]model.StatusHistory, error) {
	var out []model.StatusHistory
	for _, row := range r.rows {
		if row.RequestType == requestType && row.RequestID == requestID {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeAuditRepo struct {
	rows []model.AuditLog
}

func (r *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	r.rows = append(r.rows, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, _ string, _, _ int) ([]model.AuditLog, int64, error) {
	return r.rows, int64(len(r.rows)), nil
}

func (r *fakeAuditRepo) ListByEntity(_ context.Context, entityID string) ([]model.AuditLog, error) {
	var out []model.AuditLog
	for _, row := range r.rows {
		if row.EntityID == entityID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) actions() []string {
	var out []string
	for _, row := range r.rows {
		out = append(out, row.Action)
	}
	return out
}

type fakeAlumniRepo struct {
	rows map[uuid.UUID]*model.Alumni
}

func (r *fakeAlumniRepo) Create(_ context.Context, alumni *model.Alumni) error {
	if alumni.ID == uuid.Nil {
		alumni.ID = uuid.New()
	}
	r.rows[alumni.ID] = alumni
	return nil
}

func (r *fakeAlumniRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Alumni, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (r *fakeAlumniRepo) FindByEmail(_ context.Context, email string) (*model.Alumni, error) {
	for _, row := range r.rows {
		if row.Email == email {
			return row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAlumniRepo) List(_ context.Context, _, _ int) ([]model.Alumni, int64, error) {
	return nil, 0, nil
}

type fakeFeeSource struct {
	rows map[uuid.UUID]*model.FeeCatalogEntry
}

func (r *fakeFeeSource) FindByID(_ context.Context, id uuid.UUID) (*model.FeeCatalogEntry, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

// --- harness ---

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	manager  *Manager
	requests *fakeRequestRepo
	wallet   *fakeWalletRepo
	payments *fakePaymentRepo
	history  *fakeHistoryRepo
	audits   *fakeAuditRepo
	alumni   *fakeAlumniRepo
	fees     *fakeFeeSource

	owner    *model.Alumni
	fee      *model.FeeCatalogEntry
	branchID uuid.UUID
}

func newFixture(t *testing.T, def Definition, balance, feeAmount string) *fixture {
	t.Helper()

	f := &fixture{
		requests: newFakeRequestRepo(def.Type),
		wallet:   newFakeWalletRepo(),
		payments: &fakePaymentRepo{},
		history:  &fakeHistoryRepo{},
		audits:   &fakeAuditRepo{},
		alumni:   &fakeAlumniRepo{rows: map[uuid.UUID]*model.Alumni{}},
		fees:     &fakeFeeSource{rows: map[uuid.UUID]*model.FeeCatalogEntry{}},
		branchID: uuid.New(),
	}

	f.owner = &model.Alumni{
		ID:            uuid.New(),
		FullName:      "Ada Example",
		Email:         "ada@example.org",
		BranchID:      f.branchID,
		WalletBalance: decimal.RequireFromString(balance),
	}
	f.alumni.rows[f.owner.ID] = f.owner
	f.wallet.balances[f.owner.ID] = decimal.RequireFromString(balance)

	f.fee = &model.FeeCatalogEntry{
		ID:          uuid.New(),
		Name:        "annual fee",
		RequestType: def.Type,
		Amount:      decimal.RequireFromString(feeAmount),
		ValidFrom:   testNow.AddDate(0, -1, 0),
		ValidTo:     testNow.AddDate(0, 1, 0),
		IsActive:    true,
	}
	f.fees.rows[f.fee.ID] = f.fee

	f.manager = NewManager(def, ManagerDeps{
		Tx:       fakeTx{},
		Requests: f.requests,
		Wallet:   f.wallet,
		Payments: f.payments,
		History:  f.history,
		Audits:   f.audits,
		Alumni:   f.alumni,
		Fees:     f.fees,
		Guard:    scope.NewGuard(model.CapRequestsGlobal),
		Now:      func() time.Time { return testNow },
	})
	return f
}

func (f *fixture) createInput(key string) CreateInput {
	return CreateInput{OwnerID: f.owner.ID, FeeID: f.fee.ID, IdempotencyKey: key}
}

func (f *fixture) mustCreate(t *testing.T, key string) *model.RequestCore {
	t.Helper()
	result, err := f.manager.CreateRequest(context.Background(), f.createInput(key))
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	return result.Request
}

func (f *fixture) ownerActor() scope.Actor {
	return scope.Actor{ID: f.owner.ID, IsAlumni: true}
}

func (f *fixture) staffActor(caps ...string) scope.Actor {
	branchID := f.branchID
	return scope.Actor{ID: uuid.New(), Role: "staff", BranchID: &branchID, Capabilities: caps}
}

func mustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if got := apperror.CodeOf(err); got != code {
		t.Fatalf("expected code %s, got %s (%v)", code, got, err)
	}
}

// --- creation ---

func TestCreateRequestSplitsWalletThenGateway(t *testing.T) {
	tests := []struct {
		name       string
		balance    string
		feeAmount  string
		wantWallet string
		wantGate   string
		wantStatus string
	}{
		{"partial wallet cover", "40", "100", "40", "60", model.StatusPending},
		{"empty wallet", "0", "100", "0", "100", model.StatusPending},
		{"exact cover", "100", "100", "100", "0", model.StatusPaid},
		{"surplus never overdrawn", "150", "100", "100", "0", model.StatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Membership(), tt.balance, tt.feeAmount)

			req := f.mustCreate(t, "key-1")

			if !req.UsedWalletAmount.Equal(mustDecimal(tt.wantWallet)) {
				t.Fatalf("used wallet = %s, want %s", req.UsedWalletAmount, tt.wantWallet)
			}
			if !req.GatewayAmount.Equal(mustDecimal(tt.wantGate)) {
				t.Fatalf("gateway = %s, want %s", req.GatewayAmount, tt.wantGate)
			}
			if !req.UsedWalletAmount.Add(req.GatewayAmount).Equal(req.TotalAmount) {
				t.Fatalf("split does not add up: %s + %s != %s",
					req.UsedWalletAmount, req.GatewayAmount, req.TotalAmount)
			}
			if req.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s", req.Status, tt.wantStatus)
			}

			wantBalance := mustDecimal(tt.balance).Sub(mustDecimal(tt.wantWallet))
			if got := f.wallet.balances[f.owner.ID]; !got.Equal(wantBalance) {
				t.Fatalf("balance after create = %s, want %s", got, wantBalance)
			}
		})
	}
}

func TestCreateRequestIdempotent(t *testing.T) {
	f := newFixture(t, Membership(), "40", "100")

	first, err := f.manager.CreateRequest(context.Background(), f.createInput("key-1"))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.Duplicate {
		t.Fatal("first create marked duplicate")
	}

	second, err := f.manager.CreateRequest(context.Background(), f.createInput("key-1"))
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("retry not marked duplicate")
	}
	if second.Request.ID != first.Request.ID {
		t.Fatalf("retry returned a different request: %s vs %s", second.Request.ID, first.Request.ID)
	}
	if f.wallet.debits != 1 {
		t.Fatalf("wallet debited %d times, want 1", f.wallet.debits)
	}
	if len(f.requests.rows) != 1 {
		t.Fatalf("stored %d requests, want 1", len(f.requests.rows))
	}

	// A different key is a different request.
	third, err := f.manager.CreateRequest(context.Background(), f.createInput("key-2"))
	if err != nil {
		t.Fatalf("third create: %v", err)
	}
	if third.Duplicate || third.Request.ID == first.Request.ID {
		t.Fatal("distinct key did not create a new request")
	}
}

func TestCreateRequestLostInsertRace(t *testing.T) {
	f := newFixture(t, Membership(), "40", "100")
	winner := f.mustCreate(t, "key-1")

	// Next lookup misses, insert collides with the winner row.
	f.manager.requests = &raceRequestRepo{fakeRequestRepo: f.requests, misses: 1}

	result, err := f.manager.CreateRequest(context.Background(), f.createInput("key-1"))
	if err != nil {
		t.Fatalf("CreateRequest after lost race: %v", err)
	}
	if !result.Duplicate {
		t.Fatal("lost race not reported as duplicate")
	}
	if result.Request.ID != winner.ID {
		t.Fatalf("lost race returned %s, want winner %s", result.Request.ID, winner.ID)
	}
}

func TestCreateRequestFeeGuards(t *testing.T) {
	t.Run("missing idempotency key", func(t *testing.T) {
		f := newFixture(t, Membership(), "0", "100")
		_, err := f.manager.CreateRequest(context.Background(), CreateInput{OwnerID: f.owner.ID, FeeID: f.fee.ID})
		assertCode(t, err, apperror.CodeValidation)
	})

	t.Run("inactive fee", func(t *testing.T) {
		f := newFixture(t, Membership(), "0", "100")
		f.fee.IsActive = false
		_, err := f.manager.CreateRequest(context.Background(), f.createInput("key-1"))
		assertCode(t, err, apperror.CodeFeeUnavailable)
	})

	t.Run("fee out of season", func(t *testing.T) {
		f := newFixture(t, Membership(), "0", "100")
		f.fee.ValidTo = testNow.AddDate(0, 0, -1)
		_, err := f.manager.CreateRequest(context.Background(), f.createInput("key-1"))
		assertCode(t, err, apperror.CodeFeeUnavailable)
	})

	t.Run("unknown fee", func(t *testing.T) {
		f := newFixture(t, Membership(), "0", "100")
		input := f.createInput("key-1")
		input.FeeID = uuid.New()
		_, err := f.manager.CreateRequest(context.Background(), input)
		assertCode(t, err, apperror.CodeFeeUnavailable)
	})

	t.Run("fee for another request type", func(t *testing.T) {
		f := newFixture(t, Membership(), "0", "100")
		f.fee.RequestType = model.RequestTypeCertificate
		_, err := f.manager.CreateRequest(context.Background(), f.createInput("key-1"))
		assertCode(t, err, apperror.CodeValidation)
	})

	t.Run("failed create leaves no side effects", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		f.fee.IsActive = false
		_, _ = f.manager.CreateRequest(context.Background(), f.createInput("key-1"))
		if f.wallet.debits != 0 {
			t.Fatalf("rejected create debited the wallet %d times", f.wallet.debits)
		}
		if len(f.requests.rows) != 0 {
			t.Fatal("rejected create stored a request")
		}
	})
}

func TestCreateRequestDeliveryMethod(t *testing.T) {
	t.Run("required for certificates", func(t *testing.T) {
		f := newFixture(t, Certificate(), "0", "100")
		_, err := f.manager.CreateRequest(context.Background(), f.createInput("key-1"))
		assertCode(t, err, apperror.CodeValidation)
	})

	t.Run("unknown method rejected", func(t *testing.T) {
		f := newFixture(t, Certificate(), "0", "100")
		input := f.createInput("key-1")
		input.DeliveryMethod = "CARRIER_PIGEON"
		_, err := f.manager.CreateRequest(context.Background(), input)
		assertCode(t, err, apperror.CodeValidation)
	})

	t.Run("accepted with pickup", func(t *testing.T) {
		f := newFixture(t, Certificate(), "0", "100")
		input := f.createInput("key-1")
		input.DeliveryMethod = model.DeliveryPickup
		result, err := f.manager.CreateRequest(context.Background(), input)
		if err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
		if result.Request.DeliveryMethod != model.DeliveryPickup {
			t.Fatalf("delivery method = %s", result.Request.DeliveryMethod)
		}
	})
}

// --- gateway payments ---

func TestRecordGatewayPayment(t *testing.T) {
	t.Run("full remainder settles and pays", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		req := f.mustCreate(t, "key-1")

		got, err := f.manager.RecordGatewayPayment(context.Background(), f.ownerActor(), req.ID, mustDecimal("60"), "gw-1")
		if err != nil {
			t.Fatalf("RecordGatewayPayment: %v", err)
		}
		if got.Status != model.StatusPaid {
			t.Fatalf("status = %s, want PAID", got.Status)
		}
		if !got.RemainingAmount.IsZero() {
			t.Fatalf("remaining = %s, want 0", got.RemainingAmount)
		}
	})

	t.Run("partial payment keeps pending", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		req := f.mustCreate(t, "key-1")

		got, err := f.manager.RecordGatewayPayment(context.Background(), f.ownerActor(), req.ID, mustDecimal("25"), "gw-1")
		if err != nil {
			t.Fatalf("RecordGatewayPayment: %v", err)
		}
		if got.Status != model.StatusPending {
			t.Fatalf("status = %s, want PENDING", got.Status)
		}
		if !got.RemainingAmount.Equal(mustDecimal("35")) {
			t.Fatalf("remaining = %s, want 35", got.RemainingAmount)
		}

		got, err = f.manager.RecordGatewayPayment(context.Background(), f.ownerActor(), req.ID, mustDecimal("35"), "gw-2")
		if err != nil {
			t.Fatalf("second payment: %v", err)
		}
		if got.Status != model.StatusPaid {
			t.Fatalf("status after second payment = %s, want PAID", got.Status)
		}
		if len(f.payments.rows) != 2 {
			t.Fatalf("ledger has %d rows, want 2", len(f.payments.rows))
		}
	})

	t.Run("overpayment rejected", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		req := f.mustCreate(t, "key-1")
		_, err := f.manager.RecordGatewayPayment(context.Background(), f.ownerActor(), req.ID, mustDecimal("61"), "gw-1")
		assertCode(t, err, apperror.CodeValidation)
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		req := f.mustCreate(t, "key-1")
		_, err := f.manager.RecordGatewayPayment(context.Background(), f.ownerActor(), req.ID, decimal.Zero, "gw-1")
		assertCode(t, err, apperror.CodeValidation)
	})

	t.Run("wallet-covered request is already settled", func(t *testing.T) {
		f := newFixture(t, Membership(), "150", "100")
		req := f.mustCreate(t, "key-1")
		_, err := f.manager.RecordGatewayPayment(context.Background(), f.ownerActor(), req.ID, mustDecimal("1"), "gw-1")
		assertCode(t, err, apperror.CodeAlreadySettled)
	})

	t.Run("settled request takes no more payments", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		req := f.mustCreate(t, "key-1")
		if _, err := f.manager.RecordGatewayPayment(context.Background(), f.ownerActor(), req.ID, mustDecimal("60"), "gw-1"); err != nil {
			t.Fatalf("settling payment: %v", err)
		}
		_, err := f.manager.RecordGatewayPayment(context.Background(), f.ownerActor(), req.ID, mustDecimal("10"), "gw-2")
		assertCode(t, err, apperror.CodeAlreadySettled)
	})

	t.Run("rejected request takes no payments", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		req := f.mustCreate(t, "key-1")
		staff := f.staffActor(model.CapRequestsWrite)
		if _, err := f.manager.RejectRequest(context.Background(), staff, req.ID, "dup"); err != nil {
			t.Fatalf("RejectRequest: %v", err)
		}
		_, err := f.manager.RecordGatewayPayment(context.Background(), f.ownerActor(), req.ID, mustDecimal("60"), "gw-1")
		assertCode(t, err, apperror.CodeInvalidTransition)
	})
}

func TestRecordGatewayPaymentAuthorization(t *testing.T) {
	t.Run("other alumni cannot pay", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		req := f.mustCreate(t, "key-1")
		stranger := scope.Actor{ID: uuid.New(), IsAlumni: true}
		_, err := f.manager.RecordGatewayPayment(context.Background(), stranger, req.ID, mustDecimal("60"), "gw-1")
		assertCode(t, err, apperror.CodeUnauthorizedPayment)
	})

	t.Run("staff in branch with capability can pay", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		req := f.mustCreate(t, "key-1")
		staff := f.staffActor(model.CapPaymentsRecord)
		if _, err := f.manager.RecordGatewayPayment(context.Background(), staff, req.ID, mustDecimal("60"), "gw-1"); err != nil {
			t.Fatalf("staff payment: %v", err)
		}
	})

	t.Run("staff outside branch cannot pay", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		req := f.mustCreate(t, "key-1")
		otherBranch := uuid.New()
		staff := scope.Actor{ID: uuid.New(), BranchID: &otherBranch, Capabilities: []string{model.CapPaymentsRecord}}
		_, err := f.manager.RecordGatewayPayment(context.Background(), staff, req.ID, mustDecimal("60"), "gw-1")
		assertCode(t, err, apperror.CodeUnauthorizedPayment)
	})

	t.Run("staff without capability cannot pay", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		req := f.mustCreate(t, "key-1")
		staff := f.staffActor()
		_, err := f.manager.RecordGatewayPayment(context.Background(), staff, req.ID, mustDecimal("60"), "gw-1")
		assertCode(t, err, apperror.CodeUnauthorizedPayment)
	})
}

// --- approval ---

func TestApproveRequest(t *testing.T) {
	t.Run("paid request approves", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		req := f.mustCreate(t, "key-1")
		staff := f.staffActor(model.CapRequestsWrite)

		if _, err := f.manager.RecordGatewayPayment(context.Background(), f.ownerActor(), req.ID, mustDecimal("60"), "gw-1"); err != nil {
			t.Fatalf("payment: %v", err)
		}
		got, err := f.manager.ApproveRequest(context.Background(), staff, req.ID)
		if err != nil {
			t.Fatalf("ApproveRequest: %v", err)
		}
		if got.Status != model.StatusApproved {
			t.Fatalf("status = %s, want APPROVED", got.Status)
		}
	})

	t.Run("wallet-covered request approves without ledger rows", func(t *testing.T) {
		f := newFixture(t, Membership(), "150", "100")
		req := f.mustCreate(t, "key-1")
		staff := f.staffActor(model.CapRequestsWrite)

		got, err := f.manager.ApproveRequest(context.Background(), staff, req.ID)
		if err != nil {
			t.Fatalf("ApproveRequest: %v", err)
		}
		if got.Status != model.StatusApproved {
			t.Fatalf("status = %s, want APPROVED", got.Status)
		}
	})

	t.Run("unpaid request demands payment", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		req := f.mustCreate(t, "key-1")
		staff := f.staffActor(model.CapRequestsWrite)
		_, err := f.manager.ApproveRequest(context.Background(), staff, req.ID)
		assertCode(t, err, apperror.CodePaymentRequired)
	})

	t.Run("approved request does not approve twice", func(t *testing.T) {
		f := newFixture(t, Membership(), "150", "100")
		req := f.mustCreate(t, "key-1")
		staff := f.staffActor(model.CapRequestsWrite)
		if _, err := f.manager.ApproveRequest(context.Background(), staff, req.ID); err != nil {
			t.Fatalf("first approve: %v", err)
		}
		_, err := f.manager.ApproveRequest(context.Background(), staff, req.ID)
		assertCode(t, err, apperror.CodeInvalidTransition)
	})

	t.Run("alumni cannot approve", func(t *testing.T) {
		f := newFixture(t, Membership(), "150", "100")
		req := f.mustCreate(t, "key-1")
		_, err := f.manager.ApproveRequest(context.Background(), f.ownerActor(), req.ID)
		assertCode(t, err, apperror.CodeBranchScope)
	})
}

// --- rejection ---

func TestRejectRequestRefundsWallet(t *testing.T) {
	f := newFixture(t, Membership(), "40", "100")
	req := f.mustCreate(t, "key-1")
	staff := f.staffActor(model.CapRequestsWrite)

	if got := f.wallet.balances[f.owner.ID]; !got.IsZero() {
		t.Fatalf("balance after create = %s, want 0", got)
	}

	got, err := f.manager.RejectRequest(context.Background(), staff, req.ID, "incomplete documents")
	if err != nil {
		t.Fatalf("RejectRequest: %v", err)
	}
	if got.Status != model.StatusRejected {
		t.Fatalf("status = %s, want REJECTED", got.Status)
	}
	if balance := f.wallet.balances[f.owner.ID]; !balance.Equal(mustDecimal("40")) {
		t.Fatalf("balance after refund = %s, want 40", balance)
	}
	if got.AdminNotes != "Rejected: incomplete documents" {
		t.Fatalf("admin notes = %q", got.AdminNotes)
	}

	// Terminal: nothing moves a rejected request.
	_, err = f.manager.RejectRequest(context.Background(), staff, req.ID, "again")
	assertCode(t, err, apperror.CodeInvalidTransition)
	_, err = f.manager.ChangeStatus(context.Background(), staff, req.ID, StatusActive, "")
	assertCode(t, err, apperror.CodeInvalidTransition)
	if f.wallet.credits != 1 {
		t.Fatalf("wallet credited %d times, want 1", f.wallet.credits)
	}
}

// --- guarded transitions ---

func TestChangeStatus(t *testing.T) {
	settle := func(t *testing.T, f *fixture, req *model.RequestCore, staff scope.Actor) {
		t.Helper()
		if req.GatewayAmount.IsPositive() {
			if _, err := f.manager.RecordGatewayPayment(context.Background(), f.ownerActor(), req.ID, req.GatewayAmount, "gw"); err != nil {
				t.Fatalf("settle: %v", err)
			}
		}
		if _, err := f.manager.ApproveRequest(context.Background(), staff, req.ID); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}

	t.Run("membership activates after approval", func(t *testing.T) {
		f := newFixture(t, Membership(), "100", "100")
		req := f.mustCreate(t, "key-1")
		staff := f.staffActor(model.CapRequestsWrite)
		settle(t, f, req, staff)

		got, err := f.manager.ChangeStatus(context.Background(), staff, req.ID, StatusActive, "")
		if err != nil {
			t.Fatalf("ChangeStatus: %v", err)
		}
		if got.Status != StatusActive {
			t.Fatalf("status = %s, want ACTIVE", got.Status)
		}
	})

	t.Run("payment statuses cannot be set directly", func(t *testing.T) {
		f := newFixture(t, Membership(), "100", "100")
		req := f.mustCreate(t, "key-1")
		staff := f.staffActor(model.CapRequestsWrite)

		_, err := f.manager.ChangeStatus(context.Background(), staff, req.ID, model.StatusPaid, "")
		assertCode(t, err, apperror.CodeValidation)
		_, err = f.manager.ChangeStatus(context.Background(), staff, req.ID, model.StatusPending, "")
		assertCode(t, err, apperror.CodeValidation)
	})

	t.Run("skipping a state is rejected", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		req := f.mustCreate(t, "key-1")
		staff := f.staffActor(model.CapRequestsWrite)
		_, err := f.manager.ChangeStatus(context.Background(), staff, req.ID, StatusActive, "")
		assertCode(t, err, apperror.CodeInvalidTransition)
	})

	t.Run("delivery fork follows the chosen method", func(t *testing.T) {
		f := newFixture(t, Certificate(), "100", "100")
		input := f.createInput("key-1")
		input.DeliveryMethod = model.DeliveryHome
		result, err := f.manager.CreateRequest(context.Background(), input)
		if err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
		req := result.Request
		staff := f.staffActor(model.CapRequestsWrite)
		settle(t, f, req, staff)

		// Pickup leg is closed for home delivery.
		_, err = f.manager.ChangeStatus(context.Background(), staff, req.ID, StatusReadyForPickup, "")
		assertCode(t, err, apperror.CodeInvalidTransition)

		got, err := f.manager.ChangeStatus(context.Background(), staff, req.ID, StatusOutForDelivery, "")
		if err != nil {
			t.Fatalf("out for delivery: %v", err)
		}
		if got.Status != StatusOutForDelivery {
			t.Fatalf("status = %s", got.Status)
		}

		got, err = f.manager.ChangeStatus(context.Background(), staff, req.ID, StatusDelivered, "")
		if err != nil {
			t.Fatalf("delivered: %v", err)
		}

		// DELIVERED is terminal, nothing moves backwards.
		_, err = f.manager.ChangeStatus(context.Background(), staff, got.ID, StatusOutForDelivery, "")
		assertCode(t, err, apperror.CodeInvalidTransition)
	})

	t.Run("rejected target delegates to rejection and refunds", func(t *testing.T) {
		f := newFixture(t, Membership(), "40", "100")
		req := f.mustCreate(t, "key-1")
		staff := f.staffActor(model.CapRequestsWrite)

		got, err := f.manager.ChangeStatus(context.Background(), staff, req.ID, model.StatusRejected, "expired")
		if err != nil {
			t.Fatalf("ChangeStatus to REJECTED: %v", err)
		}
		if got.Status != model.StatusRejected {
			t.Fatalf("status = %s", got.Status)
		}
		if f.wallet.credits != 1 {
			t.Fatalf("wallet credited %d times, want 1", f.wallet.credits)
		}
	})
}

// --- reads ---

func TestGetRequestScope(t *testing.T) {
	f := newFixture(t, Membership(), "40", "100")
	req := f.mustCreate(t, "key-1")

	t.Run("owner reads own request", func(t *testing.T) {
		detail, err := f.manager.GetRequest(context.Background(), f.ownerActor(), req.ID)
		if err != nil {
			t.Fatalf("GetRequest: %v", err)
		}
		if detail.Request.ID != req.ID {
			t.Fatalf("got request %s", detail.Request.ID)
		}
		if len(detail.History) == 0 && req.Status != model.StatusPending {
			t.Fatal("expected history entries")
		}
	})

	t.Run("other alumni blocked", func(t *testing.T) {
		stranger := scope.Actor{ID: uuid.New(), IsAlumni: true}
		_, err := f.manager.GetRequest(context.Background(), stranger, req.ID)
		assertCode(t, err, apperror.CodeBranchScope)
	})

	t.Run("staff in branch reads", func(t *testing.T) {
		if _, err := f.manager.GetRequest(context.Background(), f.staffActor(), req.ID); err != nil {
			t.Fatalf("GetRequest: %v", err)
		}
	})

	t.Run("staff outside branch blocked", func(t *testing.T) {
		otherBranch := uuid.New()
		staff := scope.Actor{ID: uuid.New(), BranchID: &otherBranch}
		_, err := f.manager.GetRequest(context.Background(), staff, req.ID)
		assertCode(t, err, apperror.CodeBranchScope)
	})

	t.Run("global capability overrides branch", func(t *testing.T) {
		otherBranch := uuid.New()
		staff := scope.Actor{ID: uuid.New(), BranchID: &otherBranch, Capabilities: []string{model.CapRequestsGlobal}}
		if _, err := f.manager.GetRequest(context.Background(), staff, req.ID); err != nil {
			t.Fatalf("GetRequest: %v", err)
		}
	})
}

func TestStatusHistoryTrail(t *testing.T) {
	f := newFixture(t, Membership(), "40", "100")
	req := f.mustCreate(t, "key-1")
	staff := f.staffActor(model.CapRequestsWrite)

	if _, err := f.manager.RecordGatewayPayment(context.Background(), f.ownerActor(), req.ID, mustDecimal("60"), "gw-1"); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if _, err := f.manager.ApproveRequest(context.Background(), staff, req.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	history, err := f.history.ListForRequest(context.Background(), model.RequestTypeMembership, req.ID)
	if err != nil {
		t.Fatalf("ListForRequest: %v", err)
	}
	want := [][2]string{
		{model.StatusPending, model.StatusPaid},
		{model.StatusPaid, model.StatusApproved},
	}
	if len(history) != len(want) {
		t.Fatalf("history has %d rows, want %d", len(history), len(want))
	}
	for i, w := range want {
		if history[i].OldStatus != w[0] || history[i].NewStatus != w[1] {
			t.Fatalf("history[%d] = %s->%s, want %s->%s",
				i, history[i].OldStatus, history[i].NewStatus, w[0], w[1])
		}
	}

	actions := f.audits.actions()
	if len(actions) == 0 {
		t.Fatal("no audit rows written")
	}
}
