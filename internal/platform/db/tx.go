package db

import (
	"context"
	"database/sql"
	"fmt"
)

type contextKey string

// TxKey carries an open transaction through a request context so that
// repositories participate in the caller's transactional boundary.
const TxKey contextKey = "db_tx"

// WithTx begins a transaction and returns a derived context carrying it.
// The caller owns the transaction and must Commit or Rollback.
func WithTx(ctx context.Context, conn *sql.DB) (context.Context, *sql.Tx, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, TxKey, tx), tx, nil
}

// TxFromContext retrieves the transaction from context, or nil when the
// context carries none.
func TxFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(TxKey).(*sql.Tx)
	return tx
}

// RunInTx executes fn inside a single transaction. The transaction is
// committed when fn returns nil and rolled back otherwise, so partial writes
// are never observable to subsequent reads.
func RunInTx(ctx context.Context, conn *sql.DB, fn func(ctx context.Context) error) error {
	txCtx, tx, err := WithTx(ctx, conn)
	if err != nil {
		return err
	}
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
