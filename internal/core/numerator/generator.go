// Package numerator holds the contract for human-readable sequential numbers
// such as asset codes (AST-00042) and record numbers (MNT-2026-00007).
package numerator

import (
	"context"
	"time"
)

// Strategy selects how numbers are reserved.
type Strategy int

const (
	// StrategyStrict hits the database for every number; no gaps.
	StrategyStrict Strategy = iota
	// StrategyCached reserves a block in memory; restarts leave gaps.
	StrategyCached
)

type Options struct {
	Strategy  Strategy
	RangeSize int64 // block size for StrategyCached, default 50
}

func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// Config describes one numbering sequence.
type Config struct {
	Prefix      string
	IncludeYear bool
	PadWidth    int    // default 5
	ResetPeriod string // "year", "month" or "" for never
}

// YearlyConfig is the format used by maintenance and assignment records.
func YearlyConfig(prefix string) Config {
	return Config{Prefix: prefix, IncludeYear: true, PadWidth: 5, ResetPeriod: "year"}
}

// PlainConfig never resets and has no year segment. Asset codes use it.
func PlainConfig(prefix string) Config {
	return Config{Prefix: prefix, PadWidth: 5}
}

// Generator produces the next number of a sequence.
// Implementations find their database handle in ctx.
type Generator interface {
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}

// Counter is an in-memory Generator for tests. It formats numbers like the
// real service but keeps sequences in a map.
type Counter struct {
	seq map[string]int64
}

func NewCounter() *Counter {
	return &Counter{seq: make(map[string]int64)}
}

func (c *Counter) GetNextNumber(_ context.Context, cfg Config, _ *Options, period time.Time) (string, error) {
	key := SequenceKey(cfg, period)
	c.seq[key]++
	return Format(cfg, period, c.seq[key]), nil
}

func (c *Counter) SetNextNumber(_ context.Context, cfg Config, period time.Time, value int64) error {
	c.seq[SequenceKey(cfg, period)] = value
	return nil
}

var _ Generator = (*Counter)(nil)
