// Package tx carries transactions through context so stores from different
// modules can join the same unit of work.
//
// A Runner serializes callers that share a lock key and makes fn
// all-or-nothing: SQL runners commit only when fn succeeds, in-memory runners
// replay the compensations registered with OnRollback when it fails. Reads
// outside a transaction go through View so they only see committed state.
package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "tessera/pkg/domain-errors"
)

// Runner executes fn as one exclusive unit of work for key. Runners are not
// re-entrant: fn must not call RunInTx again.
type Runner interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
	View(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// AllKeys makes View read a snapshot across every lock key.
const AllKeys = ""

// Read runs fn through r.View and returns its result.
func Read[T any](ctx context.Context, r Runner, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.View(ctx, key, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// DefaultTimeout bounds a transaction when the caller set no deadline.
const DefaultTimeout = 5 * time.Second

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Executor is the subset of *sql.DB and *sql.Tx used by stores.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Conn returns the context transaction when present, otherwise db.
func Conn(ctx context.Context, db *sql.DB) Executor {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return nil
}
