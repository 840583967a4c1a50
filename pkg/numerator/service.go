// Package numerator implements sequential numbering on top of the
// sys_sequences table of a tenant database.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	core "setflow/internal/core/numerator"
	"setflow/internal/core/tenant"
)

// Querier is the subset of pgx used here. *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type block struct {
	current int64
	max     int64
}

// Service hands out numbers. One instance is shared by all tenants; cached
// blocks are keyed by tenant so they never leak across databases.
type Service struct {
	static     Querier
	useContext bool

	mu     sync.Mutex
	blocks map[string]*block
}

// New binds the service to a single querier (tests, CLIs).
func New(q Querier) *Service {
	return &Service{static: q, blocks: make(map[string]*block)}
}

// NewFromContext resolves the tenant pool from ctx on every call.
func NewFromContext() *Service {
	return &Service{useContext: true, blocks: make(map[string]*block)}
}

func (s *Service) querier(ctx context.Context) Querier {
	if s.useContext {
		return tenant.MustGetPool(ctx)
	}
	return s.static
}

func (s *Service) cacheKey(ctx context.Context, key string) string {
	if s.useContext {
		if tid := tenant.GetTenantID(ctx); tid != "" {
			return tid + ":" + key
		}
	}
	return key
}

// GetNextNumber implements core.Generator.
func (s *Service) GetNextNumber(ctx context.Context, cfg core.Config, opts *core.Options, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if opts == nil {
		opts = core.DefaultOptions()
	}

	key := core.SequenceKey(cfg, period)

	var (
		num int64
		err error
	)
	if opts.Strategy == core.StrategyCached {
		num, err = s.nextCached(ctx, key, opts.RangeSize)
	} else {
		num, err = s.reserve(ctx, key, 1)
	}
	if err != nil {
		return "", err
	}
	return core.Format(cfg, period, num), nil
}

// reserve bumps the sequence by n and returns the new high-water mark.
func (s *Service) reserve(ctx context.Context, key string, n int64) (int64, error) {
	var hi int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
		RETURNING current_val
	`, key, n).Scan(&hi)
	if err != nil {
		return 0, fmt.Errorf("reserve %s: %w", key, err)
	}
	return hi, nil
}

func (s *Service) nextCached(ctx context.Context, key string, size int64) (int64, error) {
	if size <= 0 {
		size = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ck := s.cacheKey(ctx, key)
	b, ok := s.blocks[ck]
	if !ok {
		b = &block{}
		s.blocks[ck] = b
	}

	if b.current >= b.max {
		hi, err := s.reserve(ctx, key, size)
		if err != nil {
			return 0, err
		}
		b.current = hi - size
		b.max = hi
	}

	b.current++
	return b.current, nil
}

// SetNextNumber overwrites the sequence (imports, migrations) and drops any cached block.
func (s *Service) SetNextNumber(ctx context.Context, cfg core.Config, period time.Time, value int64) error {
	key := core.SequenceKey(cfg, period)

	var stored int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, key, value).Scan(&stored)

	s.mu.Lock()
	delete(s.blocks, s.cacheKey(ctx, key))
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("set sequence %s: %w", key, err)
	}
	return nil
}

var _ core.Generator = (*Service)(nil)
