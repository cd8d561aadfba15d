package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Alijeyrad/clinic_backend/pkg/crypto"
	"github.com/Alijeyrad/clinic_backend/pkg/database"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type txKey struct{}

// pgBase gives every Postgres repository transaction-aware access to the pool.
type pgBase struct{ pool *pgxpool.Pool }

func (b pgBase) conn(ctx context.Context) queryable {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return b.pool
}

// inTx runs fn inside the caller's transaction or a fresh one.
func (b pgBase) inTx(ctx context.Context, fn func(q queryable) error) error {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(tx)
	}
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error { return fn(tx) })
}

type pgTransactor struct{ pool *pgxpool.Pool }

func (t pgTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// NewPGStore wires every repository to pool. cipher seals the free-text
// clinical fields of patient rows.
func NewPGStore(pool *pgxpool.Pool, cipher *crypto.FieldCipher) *Store {
	base := pgBase{pool: pool}
	return &Store{
		Identities:   &identityRepoPG{base},
		Patients:     &patientRepoPG{pgBase: base, cipher: cipher},
		Appointments: &appointmentRepoPG{base},
		Fees:         &feeRepoPG{base},
		Diagnostics:  &diagnosticRepoPG{base},
		Tx:           pgTransactor{pool: pool},
	}
}

// notFound maps pgx.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func expectOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func duplicate(err error) error {
	if _, ok := database.UniqueViolation(err); ok {
		return ErrDuplicate
	}
	return err
}
