package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Begin -> fn(tx) -> Commit.
// Rollback khi fn trả lỗi, panic, hoặc commit thất bại (Rollback sau Commit là no-op).

// TxFunc là function type được execute trong transaction
type TxFunc func(pgx.Tx) error

// Beginner is satisfied by *pgxpool.Pool and pgx.Tx.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

var (
	// ReadWrite là default của Postgres (READ COMMITTED)
	ReadWrite = pgx.TxOptions{}

	// SnapshotRead nhìn thấy một snapshot duy nhất trong suốt transaction
	SnapshotRead = pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}
)

// WithTransaction wraps fn in a READ COMMITTED read-write transaction.
func WithTransaction(ctx context.Context, pool *pgxpool.Pool, fn TxFunc) error {
	return WithTxOptions(ctx, pool, ReadWrite, fn)
}

// WithTxOptions runs fn inside a transaction started with opts.
func WithTxOptions(ctx context.Context, db Beginner, opts pgx.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			// ctx có thể đã bị cancel, rollback vẫn phải chạy
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// WithTransactionResult wraps function có return value trong transaction
func WithTransactionResult[T any](ctx context.Context, db Beginner, opts pgx.TxOptions, fn func(pgx.Tx) (T, error)) (T, error) {
	var result T
	err := WithTxOptions(ctx, db, opts, func(tx pgx.Tx) error {
		var fnErr error
		result, fnErr = fn(tx)
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
