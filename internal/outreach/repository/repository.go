// Package repository provides the durable store for contact schedules, jobs,
// call attempts, and timeline events. Every schedule mutation and its job
// mirror are applied inside one transaction; the synchronizer in sync.go is
// the only code that touches jobs on behalf of a schedule.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx so the same statement
// helpers can run inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides database operations for the outreach engine.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new outreach repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// withTx runs fn inside a transaction, committing on nil error.
func (r *Repository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
