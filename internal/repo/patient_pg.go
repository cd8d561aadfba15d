package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Alijeyrad/clinic_backend/pkg/crypto"
)

type patientRepoPG struct {
	pgBase
	cipher *crypto.FieldCipher
}

const patientCols = `id, identity_id, name, age, gender, phone, email, address,
	diagnosis, treatment, medication, notes, to_char(last_visit, 'YYYY-MM-DD'), status, created_at, updated_at`

func (r *patientRepoPG) scan(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.IdentityID, &p.Name, &p.Age, &p.Gender, &p.Phone, &p.Email, &p.Address,
		&p.Diagnosis, &p.Treatment, &p.Medication, &p.Notes, &p.LastVisit, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if err := r.open(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// sealed returns the four clinical fields encrypted, in column order.
func (r *patientRepoPG) sealed(p *Patient) ([4]string, error) {
	var out [4]string
	for i, plain := range [4]string{p.Diagnosis, p.Treatment, p.Medication, p.Notes} {
		c, err := r.cipher.Encrypt(plain)
		if err != nil {
			return out, fmt.Errorf("seal clinical field: %w", err)
		}
		out[i] = c
	}
	return out, nil
}

func (r *patientRepoPG) open(p *Patient) error {
	for _, f := range []*string{&p.Diagnosis, &p.Treatment, &p.Medication, &p.Notes} {
		plain, err := r.cipher.Decrypt(*f)
		if err != nil {
			return fmt.Errorf("open clinical field for patient %s: %w", p.ID, err)
		}
		*f = plain
	}
	return nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = PatientActive
	}
	s, err := r.sealed(p)
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, identity_id, name, age, gender, phone, email, address,
			diagnosis, treatment, medication, notes, last_visit, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13::date,$14)
		RETURNING created_at, updated_at`,
		p.ID, p.IdentityID, p.Name, p.Age, p.Gender, p.Phone, p.Email, p.Address,
		s[0], s[1], s[2], s[3], p.LastVisit, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return duplicate(err)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByIdentityID(ctx context.Context, identityID uuid.UUID) (*Patient, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE identity_id = $1`, identityID))
}

func (r *patientRepoPG) HasOpenInvite(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM patients WHERE identity_id IS NULL AND email <> '' AND lower(email) = lower($1))`,
		strings.TrimSpace(email),
	).Scan(&exists)
	return exists, err
}

func (r *patientRepoPG) List(ctx context.Context, f PatientFilter) ([]*Patient, error) {
	query := `SELECT ` + patientCols + ` FROM patients`
	var args []any
	if f.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	s, err := r.sealed(p)
	if err != nil {
		return err
	}
	return duplicate(notFound(r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET name=$2, age=$3, gender=$4, phone=$5, email=$6, address=$7,
			diagnosis=$8, treatment=$9, medication=$10, notes=$11, last_visit=$12::date, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.Age, p.Gender, p.Phone, p.Email, p.Address,
		s[0], s[1], s[2], s[3], p.LastVisit,
	).Scan(&p.UpdatedAt)))
}

func (r *patientRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status PatientStatus) error {
	return expectOne(r.conn(ctx).Exec(ctx,
		`UPDATE patients SET status = $2, updated_at = NOW() WHERE id = $1`, id, status))
}

func (r *patientRepoPG) LinkIdentity(ctx context.Context, id, identityID uuid.UUID) error {
	return expectOne(r.conn(ctx).Exec(ctx,
		`UPDATE patients SET identity_id = $2, updated_at = NOW() WHERE id = $1 AND identity_id IS NULL`, id, identityID))
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return expectOne(r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id))
}
