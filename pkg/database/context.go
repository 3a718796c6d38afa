package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx operations repositories need. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so repositories run the same SQL on
// the pool or inside an open transaction without knowing which.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type querierContextKey struct{}

// WithQuerier returns a context carrying the given querier. Used by WithTx
// to route repository calls through an open transaction.
func WithQuerier(ctx context.Context, q Querier) context.Context {
	return context.WithValue(ctx, querierContextKey{}, q)
}

// GetQuerier returns the querier from context, falling back to the pool.
func GetQuerier(ctx context.Context, db *DB) Querier {
	if q, ok := ctx.Value(querierContextKey{}).(Querier); ok {
		return q
	}
	return db.Pool
}

// WithTx runs fn inside a transaction. Repository calls made with the
// context passed to fn execute on that transaction; the commit is
// all-or-nothing. Nested calls join the already-open transaction.
func WithTx(ctx context.Context, db *DB, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(querierContextKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(WithQuerier(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
