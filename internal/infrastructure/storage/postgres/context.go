package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// ContextQuerier resolves the querier per call, so a component built once at
// startup (the numerator) joins whatever transaction the caller runs in.
type ContextQuerier struct {
	txManager *TxManager
}

// NewContextQuerier creates a querier bound to txManager.
func NewContextQuerier(txManager *TxManager) *ContextQuerier {
	return &ContextQuerier{txManager: txManager}
}

// QueryRow runs on the transaction in ctx, or on the pool.
func (q *ContextQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return q.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...)
}
