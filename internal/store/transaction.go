package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/revisely/scheduler/internal/platform/logger"
)

// TxFn is a function that executes within a database transaction. The
// transaction is committed if the function returns nil, or rolled back if it
// returns an error.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// Runner executes a function atomically. The review processor depends on this
// interface so its two writes (memory state and session) commit or fail
// together, while tests can substitute a pass-through implementation.
type Runner interface {
	RunInTx(ctx context.Context, fn TxFn) error
}

// SQLRunner runs functions inside real database transactions.
type SQLRunner struct {
	db *sql.DB
}

// NewSQLRunner creates a Runner backed by the given database.
func NewSQLRunner(db *sql.DB) *SQLRunner {
	if db == nil {
		panic("db cannot be nil")
	}
	return &SQLRunner{db: db}
}

// RunInTx implements Runner using RunInTransaction.
func (r *SQLRunner) RunInTx(ctx context.Context, fn TxFn) error {
	return RunInTransaction(ctx, r.db, fn)
}

// PassthroughRunner invokes the function directly with a nil transaction.
// Paired with the in-memory stores, whose WithTx(nil) returns the store
// itself, it lets services run unchanged without a database. Atomicity across
// the two stores is not provided; this is a documented test-double behavior.
type PassthroughRunner struct{}

// RunInTx implements Runner.
func (PassthroughRunner) RunInTx(ctx context.Context, fn TxFn) error {
	return fn(ctx, nil)
}

// RunInTransaction executes the given function within a database transaction.
// If the function returns an error, the transaction is rolled back; otherwise
// it is committed. Panics roll the transaction back before propagating.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if txErr := tx.Rollback(); txErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", txErr.Error()),
					slog.Any("panic", p))
			} else {
				log.Error("rolled back transaction after panic",
					slog.Any("panic", p))
			}
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rollbackErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf(
				"error rolling back transaction: %v (original error: %w)",
				rollbackErr,
				err,
			)
		}
		log.Debug("rolled back transaction due to error",
			slog.String("error", err.Error()))
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}

	return nil
}
