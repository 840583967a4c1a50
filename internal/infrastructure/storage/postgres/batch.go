package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Statement is one query of a SendBatch round-trip.
type Statement struct {
	SQL  string
	Args []any
}

// ExecBatch sends all statements in one round-trip within the current
// transaction and fails on the first error.
func ExecBatch(ctx context.Context, stmts []Statement) error {
	if len(stmts) == 0 {
		return nil
	}
	t := MustGetTxManager(ctx).current(ctx)
	if t == nil {
		return fmt.Errorf("batch outside a transaction")
	}
	b := &pgx.Batch{}
	for _, s := range stmts {
		b.Queue(s.SQL, s.Args...)
	}
	res := t.SendBatch(ctx, b)
	defer res.Close()
	for i := range stmts {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return nil
}
