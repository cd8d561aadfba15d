package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/clinic_backend/internal/repo"
	"github.com/Alijeyrad/clinic_backend/internal/service/events"
	"github.com/Alijeyrad/clinic_backend/pkg/authorize"
	"github.com/Alijeyrad/clinic_backend/pkg/observability"
	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type ListRequest struct {
	PatientID *uuid.UUID
	Status    string
	Date      string
}

type CreateRequest struct {
	// PatientID is required for doctors. Patients always book for themselves.
	PatientID *uuid.UUID
	Date      string
	Time      string
	Reason    string
}

// UpdateRequest changes only the non-nil fields.
type UpdateRequest struct {
	Status *string
	Date   *string
	Time   *string
	Reason *string
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	List(ctx context.Context, p *reqctx.Principal, req ListRequest) ([]*repo.Appointment, error)
	Get(ctx context.Context, p *reqctx.Principal, id uuid.UUID) (*repo.Appointment, error)
	// Create books a slot. It fails with ErrSlotConflict when another
	// scheduled appointment holds the same date and time.
	Create(ctx context.Context, p *reqctx.Principal, req CreateRequest) (*repo.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*repo.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type appointmentService struct {
	store   *repo.Store
	events  events.Publisher
	metrics *observability.Metrics
}

// New returns the appointment service. pub and metrics may be nil.
func New(store *repo.Store, pub events.Publisher, metrics *observability.Metrics) Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &appointmentService{store: store, events: pub, metrics: metrics}
}

func (s *appointmentService) List(ctx context.Context, p *reqctx.Principal, req ListRequest) ([]*repo.Appointment, error) {
	patientID, ok := authorize.ScopeFilter(p, req.PatientID)
	if !ok {
		return nil, ErrForbidden
	}
	status := repo.AppointmentStatus(req.Status)
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, req.Status)
	}
	date := ""
	if req.Date != "" {
		var err error
		if date, err = NormalizeDate(req.Date); err != nil {
			return nil, err
		}
	}

	out, err := s.store.Appointments.List(ctx, repo.AppointmentFilter{PatientID: patientID, Status: status, Date: date})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return out, nil
}

func (s *appointmentService) Get(ctx context.Context, p *reqctx.Principal, id uuid.UUID) (*repo.Appointment, error) {
	a, err := s.store.Appointments.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		// A patient cannot tell a missing id from someone else's.
		if !p.IsDoctor() {
			return nil, ErrForbidden
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if !authorize.CanAccess(p, a.PatientID) {
		return nil, ErrForbidden
	}
	return a, nil
}

func (s *appointmentService) Create(ctx context.Context, p *reqctx.Principal, req CreateRequest) (*repo.Appointment, error) {
	if strings.TrimSpace(req.Date) == "" || strings.TrimSpace(req.Time) == "" {
		return nil, fmt.Errorf("%w: date and time are required", ErrInvalidInput)
	}
	patientID, err := targetPatient(p, req.PatientID)
	if err != nil {
		return nil, err
	}
	date, err := NormalizeDate(req.Date)
	if err != nil {
		return nil, err
	}
	at, err := NormalizeTime(req.Time)
	if err != nil {
		return nil, err
	}

	a := &repo.Appointment{
		PatientID: patientID,
		Date:      date,
		Time:      at,
		Reason:    strings.TrimSpace(req.Reason),
		Status:    repo.AppointmentScheduled,
	}
	// The repository locks the slot, checks it and inserts in one transaction;
	// the partial unique index backs it up.
	if err := s.store.Appointments.Create(ctx, a); err != nil {
		switch {
		case errors.Is(err, repo.ErrSlotTaken):
			s.metrics.SlotConflict(ctx)
			return nil, ErrSlotConflict
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.metrics.AppointmentBooked(ctx)
	events.Emit(ctx, s.events, events.AppointmentCreated, eventOf(a))
	return a, nil
}

// Update applies a doctor's change. Allowed status moves are scheduled to
// completed or cancelled, and cancelled back to scheduled. Completed is
// terminal. Any change that leaves the appointment scheduled re-checks the
// slot.
func (s *appointmentService) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*repo.Appointment, error) {
	a, err := s.store.Appointments.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	prev := *a

	if req.Status != nil {
		next := repo.AppointmentStatus(strings.TrimSpace(*req.Status))
		if !next.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *req.Status)
		}
		if !CanTransition(a.Status, next) {
			return nil, ErrInvalidTransition
		}
		a.Status = next
	}
	if req.Date != nil {
		if a.Date, err = NormalizeDate(*req.Date); err != nil {
			return nil, err
		}
	}
	if req.Time != nil {
		if a.Time, err = NormalizeTime(*req.Time); err != nil {
			return nil, err
		}
	}
	if req.Reason != nil {
		a.Reason = strings.TrimSpace(*req.Reason)
	}

	moved := a.Date != prev.Date || a.Time != prev.Time
	if prev.Status == repo.AppointmentCompleted && moved {
		return nil, ErrInvalidTransition
	}

	if err := s.store.Appointments.Update(ctx, a); err != nil {
		switch {
		case errors.Is(err, repo.ErrSlotTaken):
			s.metrics.SlotConflict(ctx)
			return nil, ErrSlotConflict
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	if a.Status == repo.AppointmentScheduled && (moved || prev.Status != repo.AppointmentScheduled) {
		s.metrics.AppointmentBooked(ctx)
	}
	if a.Status == repo.AppointmentCancelled && prev.Status != repo.AppointmentCancelled {
		events.Emit(ctx, s.events, events.AppointmentCancelled, eventOf(a))
	}
	return a, nil
}

func (s *appointmentService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Appointments.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// CanTransition reports whether a doctor may move an appointment from one
// status to another. Keeping the current status is always allowed.
func CanTransition(from, to repo.AppointmentStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case repo.AppointmentScheduled:
		return to == repo.AppointmentCompleted || to == repo.AppointmentCancelled
	case repo.AppointmentCancelled:
		return to == repo.AppointmentScheduled
	}
	return false
}

func targetPatient(p *reqctx.Principal, requested *uuid.UUID) (uuid.UUID, error) {
	switch {
	case p.IsPatient():
		if p.PatientID == nil {
			return uuid.Nil, fmt.Errorf("%w: no patient record is linked to this account", ErrInvalidInput)
		}
		if requested != nil && *requested != *p.PatientID {
			return uuid.Nil, ErrForbidden
		}
		return *p.PatientID, nil
	case p.IsDoctor():
		if requested == nil || *requested == uuid.Nil {
			return uuid.Nil, fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
		}
		return *requested, nil
	}
	return uuid.Nil, ErrForbidden
}

// NormalizeDate accepts YYYY-MM-DD.
func NormalizeDate(s string) (string, error) {
	d, err := time.Parse(repo.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	return d.Format(repo.DateLayout), nil
}

// NormalizeTime accepts HH:MM or HH:MM:SS and returns HH:MM.
func NormalizeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{repo.TimeLayout, "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(repo.TimeLayout), nil
		}
	}
	return "", fmt.Errorf("%w: time must be HH:MM", ErrInvalidInput)
}

func eventOf(a *repo.Appointment) events.AppointmentEvent {
	return events.AppointmentEvent{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		Date:          a.Date,
		Time:          a.Time,
		Status:        string(a.Status),
	}
}
