package numerator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "setflow/internal/core/numerator"
)

type fakeRow struct {
	val int64
	err error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.val
	return nil
}

// fakeSequences emulates sys_sequences: the second arg is the increment for
// reserve calls; set calls are recognised by their SQL.
type fakeSequences struct {
	mu    sync.Mutex
	vals  map[string]int64
	calls int
	fail  error
}

func newFakeSequences() *fakeSequences {
	return &fakeSequences{vals: make(map[string]int64)}
}

func (f *fakeSequences) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return &fakeRow{err: f.fail}
	}
	key := args[0].(string)
	n := args[1].(int64)
	if strings.Contains(sql, "SET current_val = $2") {
		f.vals[key] = n
	} else {
		f.vals[key] += n
	}
	return &fakeRow{val: f.vals[key]}
}

func TestGetNextNumber_Strict(t *testing.T) {
	db := newFakeSequences()
	svc := New(db)
	ctx := context.Background()
	now := time.Now()
	year := now.Format("2006")

	n1, err := svc.GetNextNumber(ctx, core.YearlyConfig("MNT"), nil, now)
	require.NoError(t, err)
	n2, err := svc.GetNextNumber(ctx, core.YearlyConfig("MNT"), nil, now)
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("MNT-%s-00001", year), n1)
	assert.Equal(t, fmt.Sprintf("MNT-%s-00002", year), n2)
	assert.Equal(t, 2, db.calls)
}

func TestGetNextNumber_CachedReservesBlocks(t *testing.T) {
	db := newFakeSequences()
	svc := New(db)
	ctx := context.Background()
	opts := &core.Options{Strategy: core.StrategyCached, RangeSize: 10}
	now := time.Now()

	first, err := svc.GetNextNumber(ctx, core.PlainConfig("AST"), opts, now)
	require.NoError(t, err)
	assert.Equal(t, "AST-00001", first)
	assert.Equal(t, int64(10), db.vals["AST"])

	for i := 0; i < 9; i++ {
		_, err := svc.GetNextNumber(ctx, core.PlainConfig("AST"), opts, now)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, db.calls, "block of ten served from memory")

	eleventh, err := svc.GetNextNumber(ctx, core.PlainConfig("AST"), opts, now)
	require.NoError(t, err)
	assert.Equal(t, "AST-00011", eleventh)
	assert.Equal(t, int64(20), db.vals["AST"])
}

func TestSetNextNumber_DropsCachedBlock(t *testing.T) {
	db := newFakeSequences()
	svc := New(db)
	ctx := context.Background()
	opts := &core.Options{Strategy: core.StrategyCached, RangeSize: 10}
	now := time.Now()

	_, err := svc.GetNextNumber(ctx, core.PlainConfig("AST"), opts, now)
	require.NoError(t, err)

	require.NoError(t, svc.SetNextNumber(ctx, core.PlainConfig("AST"), now, 500))

	next, err := svc.GetNextNumber(ctx, core.PlainConfig("AST"), opts, now)
	require.NoError(t, err)
	assert.Equal(t, "AST-00501", next)
}

func TestGetNextNumber_PropagatesDBError(t *testing.T) {
	db := newFakeSequences()
	db.fail = fmt.Errorf("connection reset")
	svc := New(db)

	_, err := svc.GetNextNumber(context.Background(), core.PlainConfig("AST"), nil, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
