package fee

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/clinic_backend/internal/repo"
	"github.com/Alijeyrad/clinic_backend/internal/service/events"
	"github.com/Alijeyrad/clinic_backend/pkg/authorize"
	"github.com/Alijeyrad/clinic_backend/pkg/observability"
	"github.com/Alijeyrad/clinic_backend/pkg/redis"
	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
	"github.com/Alijeyrad/clinic_backend/pkg/zarinpal"
)

const (
	// MethodOnline marks fees settled through the payment gateway.
	MethodOnline = "online"

	paymentTTL = time.Hour
)

func paymentKey(authority string) string { return "payment:" + authority }

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type ListRequest struct {
	PatientID *uuid.UUID
	Status    string
}

type CreateRequest struct {
	PatientID     uuid.UUID
	Amount        decimal.Decimal
	Service       string
	Status        string
	PaymentMethod string
}

type UpdateRequest struct {
	Amount        *decimal.Decimal
	Service       *string
	Status        *string
	PaymentMethod *string
}

// Ledger is the revenue summary over a set of fees.
type Ledger struct {
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	PendingPayments decimal.Decimal `json:"pending_payments"`
	PaidCount       int             `json:"paid_count"`
	PendingCount    int             `json:"pending_count"`
}

type PaymentLink struct {
	URL       string `json:"url"`
	Authority string `json:"authority"`
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	List(ctx context.Context, p *reqctx.Principal, req ListRequest) ([]*repo.Fee, error)
	Get(ctx context.Context, p *reqctx.Principal, id uuid.UUID) (*repo.Fee, error)
	Create(ctx context.Context, req CreateRequest) (*repo.Fee, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*repo.Fee, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Revenue(ctx context.Context) (*Ledger, error)

	// StartPayment opens a gateway session for a pending fee.
	StartPayment(ctx context.Context, p *reqctx.Principal, id uuid.UUID) (*PaymentLink, error)
	// VerifyPayment settles the fee behind authority once the gateway
	// redirects back. Verifying a settled fee again returns it unchanged.
	VerifyPayment(ctx context.Context, authority, status string) (*repo.Fee, error)
}

// Gateway is the payment provider. *zarinpal.Client satisfies it.
type Gateway interface {
	RequestPayment(ctx context.Context, amount int64, desc, callbackURL string) (authority, payURL string, err error)
	VerifyPayment(ctx context.Context, authority string, amount int64) (refID int64, cardPan string, alreadyVerified bool, err error)
}

type Deps struct {
	Store   *repo.Store
	KV      redis.KV
	Gateway Gateway // nil disables online payment
	Events  events.Publisher
	Metrics *observability.Metrics
}

type Options struct {
	CallbackURL string
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type feeService struct {
	store   *repo.Store
	kv      redis.KV
	gw      Gateway
	events  events.Publisher
	metrics *observability.Metrics
	opts    Options
}

func New(d Deps, opts Options) Service {
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	return &feeService{
		store:   d.Store,
		kv:      d.KV,
		gw:      d.Gateway,
		events:  d.Events,
		metrics: d.Metrics,
		opts:    opts,
	}
}

func (s *feeService) List(ctx context.Context, p *reqctx.Principal, req ListRequest) ([]*repo.Fee, error) {
	patientID, ok := authorize.ScopeFilter(p, req.PatientID)
	if !ok {
		return nil, ErrForbidden
	}
	status := repo.FeeStatus(req.Status)
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, req.Status)
	}
	out, err := s.store.Fees.List(ctx, repo.FeeFilter{PatientID: patientID, Status: status})
	if err != nil {
		return nil, fmt.Errorf("list fees: %w", err)
	}
	return out, nil
}

func (s *feeService) Get(ctx context.Context, p *reqctx.Principal, id uuid.UUID) (*repo.Fee, error) {
	f, err := s.store.Fees.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		if !p.IsDoctor() {
			return nil, ErrForbidden
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get fee: %w", err)
	}
	if !authorize.CanAccess(p, f.PatientID) {
		return nil, ErrForbidden
	}
	return f, nil
}

func (s *feeService) Create(ctx context.Context, req CreateRequest) (*repo.Fee, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	f := &repo.Fee{
		PatientID:     req.PatientID,
		Amount:        req.Amount,
		Service:       strings.TrimSpace(req.Service),
		Status:        repo.FeeStatus(strings.TrimSpace(req.Status)),
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
	}
	if f.Status == "" {
		f.Status = repo.FeePending
	}
	if err := validate(f); err != nil {
		return nil, err
	}
	if f.Status == repo.FeePaid {
		now := time.Now()
		f.PaidAt = &now
	}

	if err := s.store.Fees.Create(ctx, f); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("create fee: %w", err)
	}
	if f.Status == repo.FeePaid {
		s.settled(ctx, f)
	}
	return f, nil
}

func (s *feeService) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*repo.Fee, error) {
	f, err := s.store.Fees.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get fee: %w", err)
	}
	prev := f.Status

	if req.Amount != nil {
		f.Amount = *req.Amount
	}
	if req.Service != nil {
		f.Service = strings.TrimSpace(*req.Service)
	}
	if req.Status != nil {
		f.Status = repo.FeeStatus(strings.TrimSpace(*req.Status))
	}
	if req.PaymentMethod != nil {
		f.PaymentMethod = strings.TrimSpace(*req.PaymentMethod)
	}
	if err := validate(f); err != nil {
		return nil, err
	}

	switch {
	case f.Status == repo.FeePaid && f.PaidAt == nil:
		now := time.Now()
		f.PaidAt = &now
	case f.Status == repo.FeePending:
		f.PaidAt = nil
		f.PaymentRef = ""
	}

	if err := s.store.Fees.Update(ctx, f); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update fee: %w", err)
	}
	if f.Status == repo.FeePaid && prev != repo.FeePaid {
		s.settled(ctx, f)
	}
	return f, nil
}

func (s *feeService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Fees.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete fee: %w", err)
	}
	return nil
}

func (s *feeService) Revenue(ctx context.Context) (*Ledger, error) {
	all, err := s.store.Fees.List(ctx, repo.FeeFilter{})
	if err != nil {
		return nil, fmt.Errorf("list fees: %w", err)
	}
	l := Aggregate(all)
	return &l, nil
}

// ---------------------------------------------------------------------------
// Online payment
// ---------------------------------------------------------------------------

func (s *feeService) StartPayment(ctx context.Context, p *reqctx.Principal, id uuid.UUID) (*PaymentLink, error) {
	if s.gw == nil {
		return nil, ErrPaymentsDisabled
	}
	f, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if f.Status != repo.FeePending {
		return nil, ErrNotPayable
	}
	amount, err := zarinpal.Amount(f.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	authority, payURL, err := s.gw.RequestPayment(ctx, amount, "Clinic fee: "+f.Service, s.opts.CallbackURL)
	if err != nil {
		slog.ErrorContext(ctx, "fee: payment request failed", "fee_id", f.ID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if err := s.kv.Set(ctx, paymentKey(authority), f.ID.String(), paymentTTL); err != nil {
		return nil, fmt.Errorf("store authority: %w", err)
	}
	return &PaymentLink{URL: payURL, Authority: authority}, nil
}

func (s *feeService) VerifyPayment(ctx context.Context, authority, status string) (*repo.Fee, error) {
	if s.gw == nil {
		return nil, ErrPaymentsDisabled
	}
	if authority == "" {
		return nil, fmt.Errorf("%w: authority is required", ErrInvalidInput)
	}
	if status != "OK" {
		s.forgetAuthority(ctx, authority)
		return nil, ErrPaymentFailed
	}

	v, err := s.kv.Get(ctx, paymentKey(authority))
	if errors.Is(err, redis.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load authority: %w", err)
	}
	feeID, err := uuid.Parse(v)
	if err != nil {
		return nil, ErrPaymentNotFound
	}

	f, err := s.store.Fees.GetByID(ctx, feeID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get fee: %w", err)
	}
	if f.Status == repo.FeePaid {
		return f, nil
	}

	amount, err := zarinpal.Amount(f.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	refID, _, _, err := s.gw.VerifyPayment(ctx, authority, amount)
	if err != nil {
		if errors.Is(err, zarinpal.ErrPaymentFailed) {
			return nil, ErrPaymentFailed
		}
		slog.ErrorContext(ctx, "fee: payment verify failed", "fee_id", f.ID, "authority", authority, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	now := time.Now()
	f.Status = repo.FeePaid
	f.PaymentMethod = MethodOnline
	f.PaymentRef = strconv.FormatInt(refID, 10)
	f.PaidAt = &now
	if err := s.store.Fees.Update(ctx, f); err != nil {
		return nil, fmt.Errorf("update fee: %w", err)
	}
	s.forgetAuthority(ctx, authority)

	s.settled(ctx, f)
	return f, nil
}

func (s *feeService) settled(ctx context.Context, f *repo.Fee) {
	method := f.PaymentMethod
	if method == "" {
		method = "unspecified"
	}
	s.metrics.FeePaid(ctx, method)
	events.Emit(ctx, s.events, events.FeePaid, events.FeePaidEvent{
		FeeID:     f.ID,
		PatientID: f.PatientID,
		Amount:    f.Amount,
		Method:    f.PaymentMethod,
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// Aggregate sums amounts per status with decimal arithmetic. No rows yields
// zero totals.
func Aggregate(fees []*repo.Fee) Ledger {
	l := Ledger{TotalRevenue: decimal.Zero, PendingPayments: decimal.Zero}
	for _, f := range fees {
		switch f.Status {
		case repo.FeePaid:
			l.TotalRevenue = l.TotalRevenue.Add(f.Amount)
			l.PaidCount++
		case repo.FeePending:
			l.PendingPayments = l.PendingPayments.Add(f.Amount)
			l.PendingCount++
		}
	}
	return l
}

// amountScale and maxAmount mirror the NUMERIC(12, 2) amount column.
const amountScale = 2

var maxAmount = decimal.New(1, 10)

// forgetAuthority drops a used payment authority. The fee row is already
// settled or still pending either way, so a failure only leaves a key to expire.
func (s *feeService) forgetAuthority(ctx context.Context, authority string) {
	if err := s.kv.Delete(ctx, paymentKey(authority)); err != nil {
		slog.WarnContext(ctx, "fee: failed to delete payment authority", "authority", authority, "err", err)
	}
}

func validate(f *repo.Fee) error {
	if !f.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if !f.Amount.Equal(f.Amount.Round(amountScale)) {
		return fmt.Errorf("%w: amount allows at most %d decimal places", ErrInvalidInput, amountScale)
	}
	if f.Amount.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: amount must be below %s", ErrInvalidInput, maxAmount)
	}
	if f.Service == "" {
		return fmt.Errorf("%w: service is required", ErrInvalidInput)
	}
	if !f.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	return nil
}
