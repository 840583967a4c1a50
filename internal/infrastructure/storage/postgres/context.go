package postgres

import (
	"context"
	"fmt"

	"setflow/internal/core/tenant"
)

// MustGetTxManager returns the tenant's *TxManager placed in ctx by the
// tenant middleware. Domain code depends on tx.Manager instead.
func MustGetTxManager(ctx context.Context) *TxManager {
	m, ok := tenant.MustGetTxManager(ctx).(*TxManager)
	if !ok || m == nil {
		panic(fmt.Sprintf("unexpected tx manager in context: %T", tenant.MustGetTxManager(ctx)))
	}
	return m
}

// QuerierFrom is a shortcut for MustGetTxManager(ctx).GetQuerier(ctx).
func QuerierFrom(ctx context.Context) Querier {
	return MustGetTxManager(ctx).GetQuerier(ctx)
}
