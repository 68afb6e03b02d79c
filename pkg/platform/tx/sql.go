package tx

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQL is the Postgres Runner. The lock key becomes a transaction-scoped
// advisory lock so two transactions on the same asset or distribution queue
// behind each other; nothing is visible to readers until commit.
type SQL struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQL builds a Postgres runner.
func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

func (r *SQL) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	ctx, cancel := withDeadline(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if key != "" {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
	}

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// View runs fn in a read-only repeatable read transaction so every query in
// fn sees the same committed snapshot. Inside a transaction fn joins it.
func (r *SQL) View(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	if err := checkContext(ctx); err != nil {
		return err
	}
	ctx, cancel := withDeadline(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit read tx: %w", err)
	}
	return nil
}
