package numerator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	period := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "AST-00042", Format(PlainConfig("AST"), period, 42))
	assert.Equal(t, "MNT-2026-00007", Format(YearlyConfig("MNT"), period, 7))
	assert.Equal(t, "X-2026-001", Format(Config{Prefix: "X", IncludeYear: true, PadWidth: 3}, period, 1))
}

func TestSequenceKey(t *testing.T) {
	period := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "AST", SequenceKey(PlainConfig("AST"), period))
	assert.Equal(t, "ASG_2026", SequenceKey(YearlyConfig("ASG"), period))
	assert.Equal(t, "M_2026_03", SequenceKey(Config{Prefix: "M", ResetPeriod: "month"}, period))
}

func TestParse(t *testing.T) {
	assert.Equal(t, int64(42), Parse("AST-00042"))
	assert.Equal(t, int64(7), Parse("MNT-2026-00007"))
	assert.Equal(t, int64(-1), Parse("garbage"))
	assert.Equal(t, int64(-1), Parse("AST-"))
}

func TestCounter(t *testing.T) {
	ctx := context.Background()
	c := NewCounter()
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	n1, err := c.GetNextNumber(ctx, PlainConfig("AST"), nil, now)
	require.NoError(t, err)
	n2, _ := c.GetNextNumber(ctx, PlainConfig("AST"), nil, now)
	assert.Equal(t, "AST-00001", n1)
	assert.Equal(t, "AST-00002", n2)

	require.NoError(t, c.SetNextNumber(ctx, PlainConfig("AST"), now, 99))
	n3, _ := c.GetNextNumber(ctx, PlainConfig("AST"), nil, now)
	assert.Equal(t, "AST-00100", n3)
}
