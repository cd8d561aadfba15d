package repo

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

type PatientStatus string

const (
	PatientPending PatientStatus = "pending"
	PatientActive  PatientStatus = "active"
)

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentCompleted, AppointmentCancelled:
		return true
	}
	return false
}

type FeeStatus string

const (
	FeePending FeeStatus = "pending"
	FeePaid    FeeStatus = "paid"
)

func (s FeeStatus) Valid() bool {
	return s == FeePending || s == FeePaid
}

// Layouts for the date and time columns exchanged with clients.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Identity struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Patient struct {
	ID         uuid.UUID     `json:"id"`
	IdentityID *uuid.UUID    `json:"identity_id"`
	Name       string        `json:"name"`
	Age        *int          `json:"age"`
	Gender     string        `json:"gender"`
	Phone      string        `json:"phone"`
	Email      string        `json:"email"`
	Address    string        `json:"address"`
	Diagnosis  string        `json:"diagnosis"`
	Treatment  string        `json:"treatment"`
	Medication string        `json:"medication"`
	Notes      string        `json:"notes"`
	LastVisit  *string       `json:"last_visit"`
	Status     PatientStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type Appointment struct {
	ID        uuid.UUID         `json:"id"`
	PatientID uuid.UUID         `json:"patient_id"`
	Date      string            `json:"date"`
	Time      string            `json:"time"`
	Reason    string            `json:"reason"`
	Status    AppointmentStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type Fee struct {
	ID            uuid.UUID       `json:"id"`
	PatientID     uuid.UUID       `json:"patient_id"`
	Amount        decimal.Decimal `json:"amount"`
	Service       string          `json:"service"`
	Status        FeeStatus       `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	PaymentRef    string          `json:"payment_ref,omitempty"`
	PaidAt        *time.Time      `json:"paid_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Diagnostic struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	UploadedBy *uuid.UUID `json:"uploaded_by"`
	Label      string     `json:"label"`
	FileName   string     `json:"file_name"`
	StorageKey string     `json:"-"`
	SizeBytes  int64      `json:"size_bytes"`
	MimeType   string     `json:"mime_type"`
	Notes      string     `json:"notes"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ---- filters ----

type PatientFilter struct {
	Status PatientStatus
}

type AppointmentFilter struct {
	PatientID *uuid.UUID
	Status    AppointmentStatus
	Date      string
}

type FeeFilter struct {
	PatientID *uuid.UUID
	Status    FeeStatus
}
