// Package db provides PostgreSQL-backed repositories for the claims message
// queue and the domain records its handlers touch. Repositories accept a
// DBTX, satisfied by both *pgxpool.Pool and pgx.Tx, and join the transaction
// carried in the context when one is present.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner starts transactions. *pgxpool.Pool and pgx.Tx both satisfy it;
// beginning on a pgx.Tx opens a savepoint.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

// withTx returns a context carrying tx.
func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// txFromContext returns the transaction carried in ctx, if any.
func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// conn returns the transaction in ctx, falling back to base.
func conn(ctx context.Context, base DBTX) DBTX {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return base
}

// TxManager implements types.TransactionManager on top of a pgx pool.
type TxManager struct {
	pool TxBeginner
}

// NewTxManager creates a TxManager that begins transactions on pool.
func NewTxManager(pool TxBeginner) *TxManager {
	return &TxManager{pool: pool}
}

// RunInTx begins a transaction, runs fn with a context carrying it, and
// commits if fn returns nil. Any error or panic from fn rolls back. When ctx
// already carries a transaction, a savepoint is used so the inner unit can
// fail without poisoning the outer one.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var beginner TxBeginner = m.pool
	if outer, ok := txFromContext(ctx); ok {
		beginner = outer
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(withTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
