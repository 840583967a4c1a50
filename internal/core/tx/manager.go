// Package tx is the transaction contract domain services depend on.
// The pgx implementation lives in infrastructure/storage/postgres.
package tx

import "context"

// Manager runs fn inside a transaction. Nested calls join the outer
// transaction; fn's error rolls everything back.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Func adapts a plain function to Manager. Tests use it to run fn directly.
type Func func(ctx context.Context, fn func(ctx context.Context) error) error

func (f Func) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// Direct runs fn with no transaction at all.
var Direct Manager = Func(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})
