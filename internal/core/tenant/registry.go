package tenant

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Registry reads and writes the tenants table of the meta database.
type Registry interface {
	GetByID(ctx context.Context, tenantID string) (*Tenant, error)
	// Lookup accepts either the UUID or the slug.
	Lookup(ctx context.Context, ref string) (*Tenant, error)
	ListActive(ctx context.Context) ([]*Tenant, error)
	ListAll(ctx context.Context) ([]*Tenant, error)
	Create(ctx context.Context, t *Tenant) error
	UpdateStatusByID(ctx context.Context, tenantID string, status Status) error
}

type PostgresRegistry struct {
	pool *pgxpool.Pool
}

func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

const tenantColumns = `id, slug, display_name, db_name, db_host, db_port,
	status, plan, created_at, updated_at, settings`

func (r *PostgresRegistry) one(ctx context.Context, where string, arg any) (*Tenant, error) {
	var t Tenant
	err := pgxscan.Get(ctx, r.pool, &t, "SELECT "+tenantColumns+" FROM tenants WHERE "+where, arg)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

func (r *PostgresRegistry) GetByID(ctx context.Context, tenantID string) (*Tenant, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return nil, ErrTenantNotFound
	}
	return r.one(ctx, "id = $1", tenantID)
}

func (r *PostgresRegistry) Lookup(ctx context.Context, ref string) (*Tenant, error) {
	if _, err := uuid.Parse(ref); err == nil {
		return r.one(ctx, "id = $1", ref)
	}
	return r.one(ctx, "slug = $1", ref)
}

func (r *PostgresRegistry) list(ctx context.Context, where string, args ...any) ([]*Tenant, error) {
	var out []*Tenant
	if err := pgxscan.Select(ctx, r.pool, &out,
		"SELECT "+tenantColumns+" FROM tenants "+where+" ORDER BY slug", args...); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return out, nil
}

func (r *PostgresRegistry) ListActive(ctx context.Context) ([]*Tenant, error) {
	return r.list(ctx, "WHERE status = $1", StatusActive)
}

func (r *PostgresRegistry) ListAll(ctx context.Context) ([]*Tenant, error) {
	return r.list(ctx, "")
}

// Create inserts t and fills in its generated ID.
func (r *PostgresRegistry) Create(ctx context.Context, t *Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant is nil")
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	if t.Plan == "" {
		t.Plan = PlanStandard
	}
	if t.Settings == nil {
		t.Settings = map[string]any{}
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tenants (slug, display_name, db_name, db_host, db_port, status, plan, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, t.Slug, t.DisplayName, t.DBName, t.DBHost, t.DBPort, t.Status, t.Plan, t.Settings).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) UpdateStatusByID(ctx context.Context, tenantID string, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET status = $2, updated_at = NOW() WHERE id = $1`, tenantID, status)
	if err != nil {
		return fmt.Errorf("update tenant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

var _ Registry = (*PostgresRegistry)(nil)
