// Package repo is the relational store behind the clinic services. Each
// entity has a repository interface; NewPGStore backs them with Postgres and
// repotest.NewStore with memory.
package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	// ErrSlotTaken means another scheduled appointment holds the same date and time.
	ErrSlotTaken = errors.New("appointment slot already taken")
)

type IdentityRepository interface {
	// Create fails with ErrDuplicate when the email (case-insensitive) is taken.
	Create(ctx context.Context, i *Identity) error
	GetByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	// Delete removes the identity; the owned patient and everything hanging
	// off it go with it.
	Delete(ctx context.Context, id uuid.UUID) error
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByIdentityID(ctx context.Context, identityID uuid.UUID) (*Patient, error)
	// HasOpenInvite reports whether a patient without a login already holds
	// email. Create and Update fail with ErrDuplicate on such a clash.
	HasOpenInvite(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, f PatientFilter) ([]*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SetStatus(ctx context.Context, id uuid.UUID, status PatientStatus) error
	LinkIdentity(ctx context.Context, id, identityID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type AppointmentRepository interface {
	// Create inserts a scheduled appointment, failing with ErrSlotTaken if
	// the slot is held. The check and insert are atomic.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, f AppointmentFilter) ([]*Appointment, error)
	// Update may fail with ErrSlotTaken when it moves a scheduled appointment
	// onto a held slot.
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type FeeRepository interface {
	Create(ctx context.Context, f *Fee) error
	GetByID(ctx context.Context, id uuid.UUID) (*Fee, error)
	List(ctx context.Context, f FeeFilter) ([]*Fee, error)
	Update(ctx context.Context, f *Fee) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type DiagnosticRepository interface {
	Create(ctx context.Context, d *Diagnostic) error
	GetByID(ctx context.Context, id uuid.UUID) (*Diagnostic, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Diagnostic, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Transactor runs fn with a context whose repository calls share one
// transaction. Nested calls join the outer transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store bundles the repositories handed to the services.
type Store struct {
	Identities   IdentityRepository
	Patients     PatientRepository
	Appointments AppointmentRepository
	Fees         FeeRepository
	Diagnostics  DiagnosticRepository
	Tx           Transactor
}
