package repo

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type identityRepoPG struct{ pgBase }

const identityCols = `id, email, name, role, password_hash, created_at, updated_at`

func scanIdentity(row pgx.Row) (*Identity, error) {
	var i Identity
	err := row.Scan(&i.ID, &i.Email, &i.Name, &i.Role, &i.PasswordHash, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &i, nil
}

func (r *identityRepoPG) Create(ctx context.Context, i *Identity) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	i.Email = strings.TrimSpace(i.Email)
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO identities (id, email, name, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		i.ID, i.Email, i.Name, i.Role, i.PasswordHash,
	).Scan(&i.CreatedAt, &i.UpdatedAt)
	return duplicate(err)
}

func (r *identityRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	return scanIdentity(r.conn(ctx).QueryRow(ctx, `SELECT `+identityCols+` FROM identities WHERE id = $1`, id))
}

func (r *identityRepoPG) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	return scanIdentity(r.conn(ctx).QueryRow(ctx,
		`SELECT `+identityCols+` FROM identities WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
}

func (r *identityRepoPG) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM identities WHERE lower(email) = lower($1))`, strings.TrimSpace(email),
	).Scan(&exists)
	return exists, err
}

func (r *identityRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return expectOne(r.conn(ctx).Exec(ctx,
		`UPDATE identities SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash))
}

func (r *identityRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return expectOne(r.conn(ctx).Exec(ctx, `DELETE FROM identities WHERE id = $1`, id))
}
