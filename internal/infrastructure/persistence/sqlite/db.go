// Package sqlite carries the transaction plumbing shared by the SQLite
// repositories: a context-propagated transaction and the Querier seam the
// repositories run their statements through.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/procurahq/procura/internal/application/port"
)

type ctxKey struct{}

// Querier is the subset of sql.DB and sql.Tx the repositories use, so one
// statement path serves both transactional and direct execution.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// From returns the transaction carried by ctx, or db when the call runs
// outside one.
func From(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := ctx.Value(ctxKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// DB embeds sql.DB and adds context-scoped transactions on top of it.
type DB struct {
	*sql.DB
	logger *zap.Logger
}

func NewDB(sqlDB *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: sqlDB, logger: logger}
}

// WithTransaction implements port.TransactionManager. The transaction rides
// in the context, so every repository call inside fn joins it through From.
// A call that is already inside a transaction keeps using the outer one.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(ctxKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Rolled back transaction after panic", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, ctxKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

var _ port.TransactionManager = (*DB)(nil)
