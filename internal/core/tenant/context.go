package tenant

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"setflow/internal/core/tx"
)

type poolKey struct{}
type txManagerKey struct{}
type tenantKey struct{}

var (
	ErrNoPoolInContext = errors.New("database pool not found in context")
	ErrNoTxManager     = errors.New("transaction manager not found in context")
)

func WithPool(ctx context.Context, pool *pgxpool.Pool) context.Context {
	return context.WithValue(ctx, poolKey{}, pool)
}

func GetPool(ctx context.Context) (*pgxpool.Pool, error) {
	if p, ok := ctx.Value(poolKey{}).(*pgxpool.Pool); ok && p != nil {
		return p, nil
	}
	return nil, ErrNoPoolInContext
}

// MustGetPool panics when the tenant middleware did not run.
func MustGetPool(ctx context.Context) *pgxpool.Pool {
	p, err := GetPool(ctx)
	if err != nil {
		panic(err)
	}
	return p
}

func WithTxManager(ctx context.Context, m tx.Manager) context.Context {
	return context.WithValue(ctx, txManagerKey{}, m)
}

func GetTxManager(ctx context.Context) (tx.Manager, error) {
	if m, ok := ctx.Value(txManagerKey{}).(tx.Manager); ok && m != nil {
		return m, nil
	}
	return nil, ErrNoTxManager
}

func MustGetTxManager(ctx context.Context) tx.Manager {
	m, err := GetTxManager(ctx)
	if err != nil {
		panic(err)
	}
	return m
}

func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, t)
}

func GetTenant(ctx context.Context) *Tenant {
	t, _ := ctx.Value(tenantKey{}).(*Tenant)
	return t
}

func GetTenantID(ctx context.Context) string {
	if t := GetTenant(ctx); t != nil {
		return t.ID
	}
	return ""
}
