package db

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// ContextWithTx binds an open transaction to the context so repositories
// touched by one multi-step operation commit or roll back together.
func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction bound to the context, if any.
func TxFromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return nil
}
