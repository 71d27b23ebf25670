package sqlstore

import (
	"context"
	"fmt"

	"github.com/goliatone/go-issuer/core"
	"github.com/uptrace/bun"
)

type txContextKey struct{}

// TransactionContext runs a unit of work inside a bun transaction. Stores
// pick the transaction up from the context, and nested calls join the
// outer transaction.
type TransactionContext struct {
	db *bun.DB
}

func NewTransactionContext(db *bun.DB) *TransactionContext {
	return &TransactionContext{db: db}
}

func (t *TransactionContext) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	if t == nil || t.db == nil {
		return fmt.Errorf("sqlstore: transaction context is not configured")
	}
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}
	return t.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

func txFromContext(ctx context.Context) (bun.Tx, bool) {
	if ctx == nil {
		return bun.Tx{}, false
	}
	tx, ok := ctx.Value(txContextKey{}).(bun.Tx)
	return tx, ok
}

// conn returns the active transaction or the database handle.
func conn(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db
}

var _ core.TransactionContext = (*TransactionContext)(nil)
