package fee

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/clinic_backend/internal/repo"
	"github.com/Alijeyrad/clinic_backend/internal/repo/repotest"
	"github.com/Alijeyrad/clinic_backend/internal/service/events"
	"github.com/Alijeyrad/clinic_backend/pkg/redis/redistest"
	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
	"github.com/Alijeyrad/clinic_backend/pkg/zarinpal"
)

type fakeGateway struct {
	requested []int64
	verifyErr error
	refID     int64
}

func (g *fakeGateway) RequestPayment(_ context.Context, amount int64, _, _ string) (string, string, error) {
	g.requested = append(g.requested, amount)
	authority := "A" + uuid.NewString()
	return authority, "https://pay.example/StartPay/" + authority, nil
}

func (g *fakeGateway) VerifyPayment(_ context.Context, _ string, _ int64) (int64, string, bool, error) {
	if g.verifyErr != nil {
		return 0, "", false, g.verifyErr
	}
	return g.refID, "6037****1234", false, nil
}

type fixture struct {
	svc    Service
	store  *repo.Store
	gw     *fakeGateway
	kv     *redistest.Memory
	events *events.Recorder
}

func newFixture(t *testing.T, withGateway bool) *fixture {
	t.Helper()
	store, _ := repotest.NewStore()
	f := &fixture{store: store, kv: redistest.New(), events: &events.Recorder{}}
	deps := Deps{Store: store, KV: f.kv, Events: f.events}
	if withGateway {
		f.gw = &fakeGateway{refID: 987654}
		deps.Gateway = f.gw
	}
	f.svc = New(deps, Options{CallbackURL: "https://clinic.example/api/v1/fees/payments/verify"})
	return f
}

func (f *fixture) patient(t *testing.T) (uuid.UUID, *reqctx.Principal) {
	t.Helper()
	p := &repo.Patient{Name: "P", Status: repo.PatientActive}
	require.NoError(t, f.store.Patients.Create(context.Background(), p))
	return p.ID, &reqctx.Principal{IdentityID: uuid.New(), Role: reqctx.RolePatient, PatientID: &p.ID}
}

var doc = &reqctx.Principal{IdentityID: uuid.New(), Role: reqctx.RoleDoctor}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAggregate(t *testing.T) {
	empty := Aggregate(nil)
	assert.True(t, empty.TotalRevenue.IsZero())
	assert.True(t, empty.PendingPayments.IsZero())
	assert.Equal(t, "0", empty.TotalRevenue.String())

	fees := []*repo.Fee{
		{Amount: dec("0.1"), Status: repo.FeePaid},
		{Amount: dec("0.2"), Status: repo.FeePaid},
		{Amount: dec("150.50"), Status: repo.FeePending},
		{Amount: dec("49.50"), Status: repo.FeePending},
	}
	l := Aggregate(fees)
	assert.True(t, l.TotalRevenue.Equal(dec("0.3")), "no float drift: %s", l.TotalRevenue)
	assert.True(t, l.PendingPayments.Equal(dec("200")))
	assert.Equal(t, 2, l.PaidCount)
	assert.Equal(t, 2, l.PendingCount)

	onlyPending := Aggregate(fees[2:])
	assert.True(t, onlyPending.TotalRevenue.IsZero())
}

func TestCreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	pid, _ := f.patient(t)

	tests := []struct {
		name string
		req  CreateRequest
		err  error
	}{
		{"zero amount", CreateRequest{PatientID: pid, Amount: decimal.Zero, Service: "visit"}, ErrInvalidInput},
		{"negative amount", CreateRequest{PatientID: pid, Amount: dec("-5"), Service: "visit"}, ErrInvalidInput},
		{"missing service", CreateRequest{PatientID: pid, Amount: dec("10"), Service: "  "}, ErrInvalidInput},
		{"bad status", CreateRequest{PatientID: pid, Amount: dec("10"), Service: "visit", Status: "void"}, ErrInvalidInput},
		{"missing patient id", CreateRequest{Amount: dec("10"), Service: "visit"}, ErrInvalidInput},
		{"unknown patient", CreateRequest{PatientID: uuid.New(), Amount: dec("10"), Service: "visit"}, ErrPatientNotFound},
		{"sub-cent amount", CreateRequest{PatientID: pid, Amount: dec("10.005"), Service: "visit"}, ErrInvalidInput},
		{"rounds to zero", CreateRequest{PatientID: pid, Amount: dec("0.001"), Service: "visit"}, ErrInvalidInput},
		{"overflows column", CreateRequest{PatientID: pid, Amount: dec("10000000000"), Service: "visit"}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	edge, err := f.svc.Create(ctx, CreateRequest{PatientID: pid, Amount: dec("9999999999.99"), Service: "surgery"})
	require.NoError(t, err)
	assert.True(t, edge.Amount.Equal(dec("9999999999.99")))
	require.NoError(t, f.svc.Delete(ctx, edge.ID))

	fee, err := f.svc.Create(ctx, CreateRequest{PatientID: pid, Amount: dec("120.50"), Service: "consultation"})
	require.NoError(t, err)
	assert.Equal(t, repo.FeePending, fee.Status)
	assert.Nil(t, fee.PaidAt)

	paid := "paid"
	cash := "cash"
	got, err := f.svc.Update(ctx, fee.ID, UpdateRequest{Status: &paid, PaymentMethod: &cash})
	require.NoError(t, err)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, []string{events.FeePaid}, f.events.Subjects())

	pending := "pending"
	got, err = f.svc.Update(ctx, fee.ID, UpdateRequest{Status: &pending})
	require.NoError(t, err)
	assert.Nil(t, got.PaidAt)

	zero := decimal.Zero
	_, err = f.svc.Update(ctx, fee.ID, UpdateRequest{Amount: &zero})
	assert.ErrorIs(t, err, ErrInvalidInput)
	precise := dec("1.234")
	_, err = f.svc.Update(ctx, fee.ID, UpdateRequest{Amount: &precise})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Update(ctx, uuid.New(), UpdateRequest{})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, fee.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, fee.ID), ErrNotFound)
}

func TestRevenue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	pid, _ := f.patient(t)

	l, err := f.svc.Revenue(ctx)
	require.NoError(t, err)
	assert.True(t, l.TotalRevenue.IsZero())

	for _, c := range []struct{ amount, status string }{
		{"100", "paid"}, {"50.25", "paid"}, {"30", "pending"},
	} {
		_, err := f.svc.Create(ctx, CreateRequest{PatientID: pid, Amount: dec(c.amount), Service: "s", Status: c.status})
		require.NoError(t, err)
	}
	l, err = f.svc.Revenue(ctx)
	require.NoError(t, err)
	assert.True(t, l.TotalRevenue.Equal(dec("150.25")))
	assert.True(t, l.PendingPayments.Equal(dec("30")))
}

func TestScoping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	a, selfA := f.patient(t)
	b, _ := f.patient(t)

	mine, err := f.svc.Create(ctx, CreateRequest{PatientID: a, Amount: dec("10"), Service: "s"})
	require.NoError(t, err)
	theirs, err := f.svc.Create(ctx, CreateRequest{PatientID: b, Amount: dec("20"), Service: "s"})
	require.NoError(t, err)

	list, err := f.svc.List(ctx, selfA, ListRequest{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	_, err = f.svc.List(ctx, selfA, ListRequest{PatientID: &b})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get(ctx, selfA, theirs.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get(ctx, selfA, uuid.New())
	assert.ErrorIs(t, err, ErrForbidden)

	all, err := f.svc.List(ctx, doc, ListRequest{Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestOnlinePayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	pid, self := f.patient(t)
	_, other := f.patient(t)

	fee, err := f.svc.Create(ctx, CreateRequest{PatientID: pid, Amount: dec("250000"), Service: "session"})
	require.NoError(t, err)

	_, err = f.svc.StartPayment(ctx, other, fee.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	link, err := f.svc.StartPayment(ctx, self, fee.ID)
	require.NoError(t, err)
	assert.Contains(t, link.URL, link.Authority)
	assert.Equal(t, []int64{250000}, f.gw.requested)
	assert.Equal(t, 1, f.kv.Len())

	_, err = f.svc.VerifyPayment(ctx, "unknown", "OK")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	got, err := f.svc.VerifyPayment(ctx, link.Authority, "OK")
	require.NoError(t, err)
	assert.Equal(t, repo.FeePaid, got.Status)
	assert.Equal(t, MethodOnline, got.PaymentMethod)
	assert.Equal(t, "987654", got.PaymentRef)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, []string{events.FeePaid}, f.events.Subjects())

	_, err = f.svc.StartPayment(ctx, self, fee.ID)
	assert.ErrorIs(t, err, ErrNotPayable)
}

func TestOnlinePaymentFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.svc.StartPayment(ctx, doc, uuid.New())
		assert.ErrorIs(t, err, ErrPaymentsDisabled)
	})

	t.Run("cancelled by user", func(t *testing.T) {
		f := newFixture(t, true)
		pid, _ := f.patient(t)
		fee, err := f.svc.Create(ctx, CreateRequest{PatientID: pid, Amount: dec("1000"), Service: "s"})
		require.NoError(t, err)
		link, err := f.svc.StartPayment(ctx, doc, fee.ID)
		require.NoError(t, err)

		_, err = f.svc.VerifyPayment(ctx, link.Authority, "NOK")
		assert.ErrorIs(t, err, ErrPaymentFailed)
		assert.Zero(t, f.kv.Len())

		got, err := f.svc.Get(ctx, doc, fee.ID)
		require.NoError(t, err)
		assert.Equal(t, repo.FeePending, got.Status)
	})

	t.Run("gateway rejects", func(t *testing.T) {
		f := newFixture(t, true)
		pid, _ := f.patient(t)
		fee, err := f.svc.Create(ctx, CreateRequest{PatientID: pid, Amount: dec("1000"), Service: "s"})
		require.NoError(t, err)
		link, err := f.svc.StartPayment(ctx, doc, fee.ID)
		require.NoError(t, err)

		f.gw.verifyErr = zarinpal.ErrPaymentFailed
		_, err = f.svc.VerifyPayment(ctx, link.Authority, "OK")
		assert.ErrorIs(t, err, ErrPaymentFailed)

		f.gw.verifyErr = errors.New("timeout")
		_, err = f.svc.VerifyPayment(ctx, link.Authority, "OK")
		assert.ErrorIs(t, err, ErrGateway)
	})

	t.Run("authority cleanup failure is logged", func(t *testing.T) {
		var buf bytes.Buffer
		prev := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
		t.Cleanup(func() { slog.SetDefault(prev) })

		f := newFixture(t, true)
		pid, _ := f.patient(t)
		fee, err := f.svc.Create(ctx, CreateRequest{PatientID: pid, Amount: dec("1000"), Service: "s"})
		require.NoError(t, err)
		link, err := f.svc.StartPayment(ctx, doc, fee.ID)
		require.NoError(t, err)

		f.kv.FailDelete = true
		got, err := f.svc.VerifyPayment(ctx, link.Authority, "OK")
		require.NoError(t, err)
		assert.Equal(t, repo.FeePaid, got.Status)
		assert.Equal(t, 1, f.kv.Len())
		assert.Contains(t, buf.String(), "failed to delete payment authority")
	})

	t.Run("fractional amount", func(t *testing.T) {
		f := newFixture(t, true)
		pid, _ := f.patient(t)
		fee, err := f.svc.Create(ctx, CreateRequest{PatientID: pid, Amount: dec("10.5"), Service: "s"})
		require.NoError(t, err)
		_, err = f.svc.StartPayment(ctx, doc, fee.ID)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Empty(t, f.gw.requested)
	})
}
