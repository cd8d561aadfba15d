package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Alijeyrad/clinic_backend/pkg/database"
)

type appointmentRepoPG struct{ pgBase }

const slotConstraint = "appointments_scheduled_slot_key"

const appointmentCols = `id, patient_id, to_char(appointment_date, 'YYYY-MM-DD'), appointment_time,
	reason, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.Date, &a.Time, &a.Reason, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// slotError maps a violation of the scheduled-slot index to ErrSlotTaken.
func slotError(err error) error {
	if c, ok := database.UniqueViolation(err); ok && c == slotConstraint {
		return ErrSlotTaken
	}
	if database.IsForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

// lockSlot serialises writers of one slot for the rest of the transaction,
// so the existence check below cannot interleave with a concurrent insert.
func lockSlot(ctx context.Context, q queryable, date, at string) error {
	_, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "slot:"+date+"T"+at)
	return err
}

func slotTaken(ctx context.Context, q queryable, date, at string, exclude uuid.UUID) (bool, error) {
	var taken bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE appointment_date = $1::date AND appointment_time = $2 AND status = 'scheduled' AND id <> $3)`,
		date, at, exclude,
	).Scan(&taken)
	return taken, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AppointmentScheduled
	}

	return r.inTx(ctx, func(q queryable) error {
		if a.Status == AppointmentScheduled {
			if err := lockSlot(ctx, q, a.Date, a.Time); err != nil {
				return fmt.Errorf("lock slot: %w", err)
			}
			taken, err := slotTaken(ctx, q, a.Date, a.Time, a.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrSlotTaken
			}
		}

		err := q.QueryRow(ctx, `
			INSERT INTO appointments (id, patient_id, appointment_date, appointment_time, reason, status)
			VALUES ($1, $2, $3::date, $4, $5, $6)
			RETURNING created_at, updated_at`,
			a.ID, a.PatientID, a.Date, a.Time, a.Reason, a.Status,
		).Scan(&a.CreatedAt, &a.UpdatedAt)
		return slotError(err)
	})
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter) ([]*Appointment, error) {
	query := `SELECT ` + appointmentCols + ` FROM appointments WHERE 1=1`
	var args []any
	idx := 1

	if f.PatientID != nil {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Date != "" {
		query += fmt.Sprintf(` AND appointment_date = $%d::date`, idx)
		args = append(args, f.Date)
	}
	query += ` ORDER BY appointment_date DESC, appointment_time DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	return r.inTx(ctx, func(q queryable) error {
		if a.Status == AppointmentScheduled {
			if err := lockSlot(ctx, q, a.Date, a.Time); err != nil {
				return fmt.Errorf("lock slot: %w", err)
			}
			taken, err := slotTaken(ctx, q, a.Date, a.Time, a.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrSlotTaken
			}
		}

		err := q.QueryRow(ctx, `
			UPDATE appointments SET appointment_date = $2::date, appointment_time = $3, reason = $4,
				status = $5, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at`,
			a.ID, a.Date, a.Time, a.Reason, a.Status,
		).Scan(&a.UpdatedAt)
		return slotError(notFound(err))
	})
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return expectOne(r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id))
}
