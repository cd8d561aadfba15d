package appointment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/clinic_backend/internal/repo"
	"github.com/Alijeyrad/clinic_backend/internal/repo/repotest"
	"github.com/Alijeyrad/clinic_backend/internal/service/events"
	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	svc    Service
	store  *repo.Store
	events *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, _ := repotest.NewStore()
	rec := &events.Recorder{}
	return &fixture{svc: New(store, rec, nil), store: store, events: rec}
}

func (f *fixture) patient(t *testing.T) (*repo.Patient, *reqctx.Principal) {
	t.Helper()
	p := &repo.Patient{Name: "P", Status: repo.PatientActive}
	require.NoError(t, f.store.Patients.Create(context.Background(), p))
	return p, &reqctx.Principal{IdentityID: uuid.New(), Role: reqctx.RolePatient, PatientID: &p.ID}
}

var doc = &reqctx.Principal{IdentityID: uuid.New(), Role: reqctx.RoleDoctor}

func TestCreateConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p, self := f.patient(t)

	first, err := f.svc.Create(ctx, self, CreateRequest{Date: "2024-03-01", Time: "10:00", Reason: "checkup"})
	require.NoError(t, err)
	assert.Equal(t, repo.AppointmentScheduled, first.Status)
	assert.Equal(t, p.ID, first.PatientID)

	_, err = f.svc.Create(ctx, doc, CreateRequest{PatientID: &p.ID, Date: "2024-03-01", Time: "10:00:00"})
	assert.ErrorIs(t, err, ErrSlotConflict)

	// Another time on the same day is free.
	_, err = f.svc.Create(ctx, doc, CreateRequest{PatientID: &p.ID, Date: "2024-03-01", Time: "10:30"})
	require.NoError(t, err)

	// Cancelling frees the slot.
	_, err = f.svc.Update(ctx, first.ID, UpdateRequest{Status: ptr("cancelled")})
	require.NoError(t, err)
	again, err := f.svc.Create(ctx, doc, CreateRequest{PatientID: &p.ID, Date: "2024-03-01", Time: "10:00"})
	require.NoError(t, err)

	// Reinstating the cancelled one now collides.
	_, err = f.svc.Update(ctx, first.ID, UpdateRequest{Status: ptr("scheduled")})
	assert.ErrorIs(t, err, ErrSlotConflict)

	// A completed appointment no longer holds the slot.
	_, err = f.svc.Update(ctx, again.ID, UpdateRequest{Status: ptr("completed")})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, doc, CreateRequest{PatientID: &p.ID, Date: "2024-03-01", Time: "10:00"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		events.AppointmentCreated,
		events.AppointmentCreated,
		events.AppointmentCancelled,
		events.AppointmentCreated,
		events.AppointmentCreated,
	}, f.events.Subjects())
}

func TestCreatePreconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p, self := f.patient(t)
	other, _ := f.patient(t)

	tests := []struct {
		name string
		who  *reqctx.Principal
		req  CreateRequest
		err  error
	}{
		{"missing date", self, CreateRequest{Time: "10:00"}, ErrInvalidInput},
		{"missing time", self, CreateRequest{Date: "2024-03-01"}, ErrInvalidInput},
		{"doctor without patient", doc, CreateRequest{Date: "2024-03-01", Time: "10:00"}, ErrInvalidInput},
		{"bad date", self, CreateRequest{Date: "01/03/2024", Time: "10:00"}, ErrInvalidInput},
		{"bad time", self, CreateRequest{Date: "2024-03-01", Time: "25:00"}, ErrInvalidInput},
		{"patient booking for another", self, CreateRequest{PatientID: &other.ID, Date: "2024-03-01", Time: "10:00"}, ErrForbidden},
		{"unlinked patient", &reqctx.Principal{Role: reqctx.RolePatient}, CreateRequest{Date: "2024-03-01", Time: "10:00"}, ErrInvalidInput},
		{"unknown patient", doc, CreateRequest{PatientID: ptr(uuid.New()), Date: "2024-03-01", Time: "10:00"}, ErrPatientNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.who, tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	// Naming oneself explicitly is fine.
	_, err := f.svc.Create(ctx, self, CreateRequest{PatientID: &p.ID, Date: "2024-03-02", Time: "09:00"})
	assert.NoError(t, err)
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to repo.AppointmentStatus
		ok       bool
	}{
		{repo.AppointmentScheduled, repo.AppointmentCompleted, true},
		{repo.AppointmentScheduled, repo.AppointmentCancelled, true},
		{repo.AppointmentCancelled, repo.AppointmentScheduled, true},
		{repo.AppointmentCancelled, repo.AppointmentCompleted, false},
		{repo.AppointmentCompleted, repo.AppointmentScheduled, false},
		{repo.AppointmentCompleted, repo.AppointmentCancelled, false},
		{repo.AppointmentCompleted, repo.AppointmentCompleted, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p, _ := f.patient(t)

	a, err := f.svc.Create(ctx, doc, CreateRequest{PatientID: &p.ID, Date: "2024-03-01", Time: "10:00"})
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, doc, CreateRequest{PatientID: &p.ID, Date: "2024-03-01", Time: "11:00"})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, b.ID, UpdateRequest{Time: ptr("10:00")})
	assert.ErrorIs(t, err, ErrSlotConflict, "rescheduling re-runs the conflict check")

	got, err := f.svc.Update(ctx, b.ID, UpdateRequest{Date: ptr("2024-03-02"), Reason: ptr("moved")})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02", got.Date)
	assert.Equal(t, "moved", got.Reason)

	_, err = f.svc.Update(ctx, a.ID, UpdateRequest{Status: ptr("completed")})
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, a.ID, UpdateRequest{Status: ptr("scheduled")})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.Update(ctx, a.ID, UpdateRequest{Date: ptr("2024-04-01")})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.Update(ctx, a.ID, UpdateRequest{Reason: ptr("notes after visit")})
	assert.NoError(t, err)

	_, err = f.svc.Update(ctx, a.ID, UpdateRequest{Status: ptr("archived")})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Update(ctx, uuid.New(), UpdateRequest{})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, a.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, a.ID), ErrNotFound)
}

func TestScoping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, selfA := f.patient(t)
	b, selfB := f.patient(t)

	mine, err := f.svc.Create(ctx, selfA, CreateRequest{Date: "2024-03-01", Time: "10:00"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, selfB, CreateRequest{Date: "2024-03-01", Time: "11:00"})
	require.NoError(t, err)

	list, err := f.svc.List(ctx, selfA, ListRequest{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].PatientID)

	_, err = f.svc.List(ctx, selfA, ListRequest{PatientID: &b.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	all, err := f.svc.List(ctx, doc, ListRequest{Date: "2024-03-01"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyB, err := f.svc.List(ctx, doc, ListRequest{PatientID: &b.ID, Status: "scheduled"})
	require.NoError(t, err)
	assert.Len(t, onlyB, 1)

	_, err = f.svc.Get(ctx, selfB, mine.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get(ctx, selfB, uuid.New())
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get(ctx, doc, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := f.svc.Get(ctx, selfA, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	_, err = f.svc.List(ctx, doc, ListRequest{Status: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
