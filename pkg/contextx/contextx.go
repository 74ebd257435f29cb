// Package contextx carries cross-cutting values through context: the
// ambient database transaction.
package contextx

import "context"

type ctxKey int

const txKey ctxKey = iota

// WithTx returns a context carrying the given transaction handle.
// Repositories resolve it to join the caller's transaction.
func WithTx(ctx context.Context, tx any) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// GetTx returns the transaction handle carried by ctx, or nil.
func GetTx(ctx context.Context) any {
	return ctx.Value(txKey)
}
