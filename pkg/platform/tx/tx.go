// Package tx carries an open *sql.Tx through a context so that stores can
// join a transaction started by the service layer. The outbox append and the
// primary-store upsert must commit atomically; this is the seam that makes
// that possible without coupling services to database/sql.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type txKey struct{}

// With returns a context carrying the given transaction.
func With(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// From extracts the transaction from the context, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// Transactor runs a function within a transaction boundary. Stores resolve
// the executor via From(ctx) so every write inside fn shares one commit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLTransactor implements Transactor over *sql.DB.
type SQLTransactor struct {
	db *sql.DB
}

// NewSQLTransactor constructs a Transactor for the given database handle.
func NewSQLTransactor(db *sql.DB) *SQLTransactor {
	return &SQLTransactor{db: db}
}

// WithinTx begins a transaction, injects it into the context, runs fn, and
// commits. Any error from fn rolls the transaction back and is returned.
func (t *SQLTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback() // no-op after commit
	}()

	if err := fn(With(ctx, sqlTx)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// NoopTransactor runs the function without any transaction. Used with the
// in-memory stores where there is nothing to commit.
type NoopTransactor struct{}

// WithinTx invokes fn directly.
func (NoopTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
