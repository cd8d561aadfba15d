// Package notify texts patients about changes to their appointments. It is
// driven by the appointment events published on NATS.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Alijeyrad/clinic_backend/internal/repo"
	"github.com/Alijeyrad/clinic_backend/internal/service/events"
)

// Texter sends the appointment SMS. *sms.Client satisfies it.
type Texter interface {
	IsEnabled() bool
	SendAppointmentNotice(ctx context.Context, phone, date, clock, status string) error
}

type Notifier struct {
	patients repo.PatientRepository
	sms      Texter
}

func New(patients repo.PatientRepository, sms Texter) *Notifier {
	return &Notifier{patients: patients, sms: sms}
}

// HandleAppointment decodes an AppointmentEvent and notifies its patient.
func (n *Notifier) HandleAppointment(ctx context.Context, data []byte) error {
	var ev events.AppointmentEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode appointment event: %w", err)
	}
	return n.Appointment(ctx, ev)
}

// Appointment texts the patient behind ev. Patients without a phone number
// and a disabled SMS client are skipped silently.
func (n *Notifier) Appointment(ctx context.Context, ev events.AppointmentEvent) error {
	if n.sms == nil || !n.sms.IsEnabled() {
		return nil
	}
	p, err := n.patients.GetByID(ctx, ev.PatientID)
	if errors.Is(err, repo.ErrNotFound) {
		slog.DebugContext(ctx, "notify: patient gone", "patient_id", ev.PatientID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get patient: %w", err)
	}
	if p.Phone == "" {
		return nil
	}
	if err := n.sms.SendAppointmentNotice(ctx, p.Phone, ev.Date, ev.Time, ev.Status); err != nil {
		return fmt.Errorf("send appointment notice: %w", err)
	}
	return nil
}
