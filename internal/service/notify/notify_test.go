package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/clinic_backend/internal/repo"
	"github.com/Alijeyrad/clinic_backend/internal/repo/repotest"
	"github.com/Alijeyrad/clinic_backend/internal/service/events"
)

type notice struct{ phone, date, clock, status string }

type fakeTexter struct {
	enabled bool
	sent    []notice
}

func (f *fakeTexter) IsEnabled() bool { return f.enabled }

func (f *fakeTexter) SendAppointmentNotice(_ context.Context, phone, date, clock, status string) error {
	f.sent = append(f.sent, notice{phone, date, clock, status})
	return nil
}

func TestHandleAppointment(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore()
	withPhone := &repo.Patient{Name: "A", Phone: "09121234567"}
	noPhone := &repo.Patient{Name: "B"}
	require.NoError(t, store.Patients.Create(ctx, withPhone))
	require.NoError(t, store.Patients.Create(ctx, noPhone))

	sms := &fakeTexter{enabled: true}
	n := New(store.Patients, sms)

	data, err := json.Marshal(events.AppointmentEvent{
		AppointmentID: uuid.New(), PatientID: withPhone.ID, Date: "2024-03-01", Time: "10:00", Status: "scheduled",
	})
	require.NoError(t, err)
	require.NoError(t, n.HandleAppointment(ctx, data))
	require.Len(t, sms.sent, 1)
	assert.Equal(t, notice{"09121234567", "2024-03-01", "10:00", "scheduled"}, sms.sent[0])

	require.NoError(t, n.Appointment(ctx, events.AppointmentEvent{PatientID: noPhone.ID}))
	require.NoError(t, n.Appointment(ctx, events.AppointmentEvent{PatientID: uuid.New()}))
	assert.Len(t, sms.sent, 1)

	assert.Error(t, n.HandleAppointment(ctx, []byte("{")))
}

func TestDisabledTexterSkips(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore()
	p := &repo.Patient{Name: "A", Phone: "09121234567"}
	require.NoError(t, store.Patients.Create(ctx, p))

	sms := &fakeTexter{}
	require.NoError(t, New(store.Patients, sms).Appointment(ctx, events.AppointmentEvent{PatientID: p.ID}))
	assert.Empty(t, sms.sent)

	assert.NoError(t, New(store.Patients, nil).Appointment(ctx, events.AppointmentEvent{PatientID: p.ID}))
}
