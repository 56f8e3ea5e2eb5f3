package db

import (
	"context"
	"database/sql"

	"github.com/lmdevv/tabby-sub002/internal/errors"
)

// Querier is satisfied by *sql.DB and *sql.Tx, so every query function can run
// standalone or inside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a single transaction. Either every write made through
// tx commits or none do. fn must not use database directly.
//
// Errors returned by fn are passed through unchanged after rollback; begin and
// commit failures become TRANSACTION_FAILED.
func WithTx(ctx context.Context, database *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewTransactionFailed(err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		if _, ok := errors.As(err); ok {
			return err
		}
		return errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewTransactionFailed(err)
	}
	return nil
}
