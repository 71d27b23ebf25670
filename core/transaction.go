package core

import "context"

// NoopTransactionContext runs fn directly. It is used when no persistence
// client provides a transactional scope, e.g. with in-memory stores.
type NoopTransactionContext struct{}

func (NoopTransactionContext) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

var _ TransactionContext = NoopTransactionContext{}
