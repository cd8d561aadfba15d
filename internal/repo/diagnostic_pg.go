package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Alijeyrad/clinic_backend/pkg/database"
)

type diagnosticRepoPG struct{ pgBase }

const diagnosticCols = `id, patient_id, uploaded_by, label, file_name, storage_key, size_bytes,
	mime_type, notes, created_at`

func scanDiagnostic(row pgx.Row) (*Diagnostic, error) {
	var d Diagnostic
	err := row.Scan(&d.ID, &d.PatientID, &d.UploadedBy, &d.Label, &d.FileName, &d.StorageKey, &d.SizeBytes,
		&d.MimeType, &d.Notes, &d.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (r *diagnosticRepoPG) Create(ctx context.Context, d *Diagnostic) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diagnostics (id, patient_id, uploaded_by, label, file_name, storage_key, size_bytes, mime_type, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		d.ID, d.PatientID, d.UploadedBy, d.Label, d.FileName, d.StorageKey, d.SizeBytes, d.MimeType, d.Notes,
	).Scan(&d.CreatedAt)
	if database.IsForeignKeyViolation(err) {
		return ErrNotFound
	}
	return duplicate(err)
}

func (r *diagnosticRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Diagnostic, error) {
	return scanDiagnostic(r.conn(ctx).QueryRow(ctx, `SELECT `+diagnosticCols+` FROM diagnostics WHERE id = $1`, id))
}

func (r *diagnosticRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Diagnostic, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+diagnosticCols+` FROM diagnostics WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Diagnostic
	for rows.Next() {
		d, err := scanDiagnostic(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *diagnosticRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return expectOne(r.conn(ctx).Exec(ctx, `DELETE FROM diagnostics WHERE id = $1`, id))
}
