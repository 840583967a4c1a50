// Package main seeds a tenant database: roles and permissions, the admin
// user, a few departments and the default asset categories.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"setflow/internal/core/apperror"
	appctx "setflow/internal/core/context"
	"setflow/internal/core/security"
	"setflow/internal/core/tenant"
	"setflow/internal/domain"
	"setflow/internal/domain/auth"
	"setflow/internal/domain/catalogs/category"
	"setflow/internal/domain/catalogs/department"
	"setflow/internal/domain/depreciation"
	"setflow/internal/infrastructure/storage/postgres"
	"setflow/internal/infrastructure/storage/postgres/auth_repo"
	"setflow/internal/infrastructure/storage/postgres/catalog_repo"
	"setflow/pkg/logger"
	"setflow/pkg/numerator"
)

const defaultDepartments = "IT,Finance,Operations,Human Resources"

type seeder struct {
	log         *logger.Logger
	auth        *auth.Service
	departments *department.Service
	categories  *category.Service
}

func main() {
	_ = godotenv.Load()

	dbURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "tenant database DSN")
	tenantRef := flag.String("tenant", "", "tenant slug or id, resolved through META_DATABASE_URL")
	depts := flag.String("departments", getEnv("SEED_DEPARTMENTS", defaultDepartments), "comma-separated department names")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: getEnv("LOG_LEVEL", "info"), Development: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	ctx := logger.WithLogger(context.Background(), log)

	ctx, closeFn, err := connect(ctx, *dbURL, *tenantRef, log)
	if err != nil {
		log.Fatalw("failed to connect", "error", err)
	}
	defer closeFn()

	audit, err := postgres.NewAuditStore()
	if err != nil {
		log.Fatalw("failed to initialize audit store", "error", err)
	}
	gen := numerator.NewFromContext()
	s := &seeder{
		log: log,
		auth: auth.NewService(
			auth_repo.NewUserRepo(),
			auth_repo.NewRoleRepo(),
			auth_repo.NewPermissionRepo(),
			auth_repo.NewTokenRepo(),
			nil,
			auth.DefaultServiceConfig(),
			audit,
		),
		departments: department.NewService(catalog_repo.NewDepartmentRepo(), gen, audit, nil),
		categories:  category.NewService(catalog_repo.NewCategoryRepo(), nil, audit, nil),
	}

	if err := s.auth.EnsureDefaultRoles(ctx); err != nil {
		log.Fatalw("failed to seed roles", "error", err)
	}
	log.Info("roles and permissions ready")

	if err := s.seedAdmin(ctx); err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}
	if err := s.seedDepartments(ctx, splitNames(*depts)); err != nil {
		log.Fatalw("failed to seed departments", "error", err)
	}
	if err := s.seedCategories(ctx); err != nil {
		log.Fatalw("failed to seed categories", "error", err)
	}

	log.Info("seeding completed successfully")
}

// connect opens the tenant database and returns a context carrying its
// pool, tx manager and an administrative principal.
func connect(ctx context.Context, dbURL, tenantRef string, log *logger.Logger) (context.Context, func(), error) {
	var (
		pool    *postgres.Pool
		current *tenant.Tenant
	)

	switch {
	case tenantRef != "":
		metaURL := os.Getenv("META_DATABASE_URL")
		if metaURL == "" {
			return nil, nil, errors.New("META_DATABASE_URL is required with -tenant")
		}
		meta, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(metaURL))
		if err != nil {
			return nil, nil, fmt.Errorf("meta database: %w", err)
		}
		defer meta.Close()

		t, err := tenant.NewPostgresRegistry(meta.Pool).Lookup(ctx, tenantRef)
		if err != nil {
			return nil, nil, fmt.Errorf("lookup tenant %q: %w", tenantRef, err)
		}
		dsn := t.DSN(os.Getenv("TENANT_DB_USER"), os.Getenv("TENANT_DB_PASSWORD"))
		if pool, err = postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn)); err != nil {
			return nil, nil, fmt.Errorf("tenant database: %w", err)
		}
		current = t
	case dbURL != "":
		var err error
		if pool, err = postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL)); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, errors.New("either -tenant or DATABASE_URL is required")
	}

	log.Info("connected to database")

	ctx = tenant.WithPool(ctx, pool.Pool)
	ctx = tenant.WithTxManager(ctx, postgres.NewTxManager(pool))
	system := &appctx.UserContext{IsAdmin: true}
	if current != nil {
		ctx = tenant.WithTenant(ctx, current)
		system.TenantID = current.ID
	}
	ctx = appctx.WithUser(ctx, system)
	ctx = security.WithScope(ctx, security.NewAccessScope(ctx))
	return ctx, pool.Close, nil
}

func (s *seeder) seedAdmin(ctx context.Context) error {
	email := getEnv("ADMIN_EMAIL", "admin@setflow.local")
	password := getEnv("ADMIN_PASSWORD", "Admin123!")

	user, err := s.auth.CreateUser(ctx, auth.CreateUserRequest{
		Email:     email,
		Password:  password,
		FirstName: "System",
		LastName:  "Admin",
		IsAdmin:   true,
		Roles:     []string{security.RoleAdmin},
	})
	if isDuplicate(err) {
		s.log.Infow("admin user already exists", "email", email)
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Infow("admin user created", "email", email, "user_id", user.ID)
	return nil
}

func (s *seeder) seedDepartments(ctx context.Context, names []string) error {
	for _, name := range names {
		f := domain.DefaultListFilter()
		f.Search = name
		existing, err := s.departments.List(ctx, f)
		if err != nil {
			return err
		}
		if hasName(existing.Items, name) {
			continue
		}
		d := department.NewDepartment("", name)
		if err := s.departments.Create(ctx, d); err != nil {
			return fmt.Errorf("create department %q: %w", name, err)
		}
		s.log.Infow("department created", "name", name, "code", d.Code)
	}
	return nil
}

// seedCategories creates one category per default template. Categories
// are matched by code, so renamed ones are left alone.
func (s *seeder) seedCategories(ctx context.Context) error {
	for _, name := range s.categories.Registry().Names() {
		code := category.CodeFromName(name)
		if _, err := s.categories.GetByCode(ctx, code); err == nil {
			continue
		} else if !apperror.IsNotFound(err) {
			return err
		}

		c := category.NewCategory(name)
		c.Code = code
		c.Depreciation = depreciation.Column{Settings: &depreciation.Settings{
			Method:            depreciation.StraightLine,
			Years:             4,
			ResidualValueType: depreciation.ResidualPercentage,
			ResidualValue:     10,
		}}
		if err := s.categories.Create(ctx, c); err != nil {
			return fmt.Errorf("create category %q: %w", name, err)
		}
		s.log.Infow("category created", "name", name, "fields", len(c.SpecFields))
	}
	return nil
}

func hasName(items []*department.Department, name string) bool {
	for _, d := range items {
		if strings.EqualFold(d.Name, name) {
			return true
		}
	}
	return false
}

func isDuplicate(err error) bool {
	ae, ok := apperror.AsAppError(err)
	return ok && ae.Code == apperror.CodeDuplicate
}

func splitNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
