package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/clinic_backend/pkg/database"
)

type feeRepoPG struct{ pgBase }

// amount travels as text so NUMERIC precision survives the round trip.
const feeCols = `id, patient_id, amount::text, service, status, payment_method, payment_ref,
	paid_at, created_at, updated_at`

func scanFee(row pgx.Row) (*Fee, error) {
	var f Fee
	var amount string
	err := row.Scan(&f.ID, &f.PatientID, &amount, &f.Service, &f.Status, &f.PaymentMethod, &f.PaymentRef,
		&f.PaidAt, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	f.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse fee amount %q: %w", amount, err)
	}
	return &f, nil
}

func (r *feeRepoPG) Create(ctx context.Context, f *Fee) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.Status == "" {
		f.Status = FeePending
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO fees (id, patient_id, amount, service, status, payment_method, payment_ref, paid_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		f.ID, f.PatientID, f.Amount.String(), f.Service, f.Status, f.PaymentMethod, f.PaymentRef, f.PaidAt,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if database.IsForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

func (r *feeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Fee, error) {
	return scanFee(r.conn(ctx).QueryRow(ctx, `SELECT `+feeCols+` FROM fees WHERE id = $1`, id))
}

func (r *feeRepoPG) List(ctx context.Context, f FeeFilter) ([]*Fee, error) {
	query := `SELECT ` + feeCols + ` FROM fees WHERE 1=1`
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
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Fee
	for rows.Next() {
		fee, err := scanFee(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, fee)
	}
	return items, rows.Err()
}

func (r *feeRepoPG) Update(ctx context.Context, f *Fee) error {
	return notFound(r.conn(ctx).QueryRow(ctx, `
		UPDATE fees SET amount = $2::numeric, service = $3, status = $4, payment_method = $5,
			payment_ref = $6, paid_at = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		f.ID, f.Amount.String(), f.Service, f.Status, f.PaymentMethod, f.PaymentRef, f.PaidAt,
	).Scan(&f.UpdatedAt))
}

func (r *feeRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return expectOne(r.conn(ctx).Exec(ctx, `DELETE FROM fees WHERE id = $1`, id))
}
