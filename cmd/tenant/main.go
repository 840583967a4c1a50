// Package main is the tenant management CLI.
//
//	tenant create --slug acme --name "ACME Corp" [--plan starter|standard|enterprise]
//	tenant list
//	tenant migrate --all | --tenant <slug|id>
//	tenant suspend <slug|id>
//	tenant activate <slug|id>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"setflow/internal/core/tenant"
)

const migrationsDir = "db/migrations"

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	args := os.Args[2:]

	var err error
	switch os.Args[1] {
	case "create":
		err = createTenant(ctx, args)
	case "list":
		err = listTenants(ctx)
	case "migrate":
		err = migrateTenants(ctx, args)
	case "suspend":
		err = setStatus(ctx, args, tenant.StatusSuspended)
	case "activate":
		err = setStatus(ctx, args, tenant.StatusActive)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`setflow tenant management

Usage:
  tenant <command> [options]

Commands:
  create    Create the tenant database, migrate it and register the tenant
  list      List all tenants
  migrate   Run migrations for one tenant or all active tenants
  suspend   Suspend a tenant
  activate  Activate a suspended tenant

Environment:
  META_DATABASE_URL    meta database (required)
  TENANT_DB_USER       owner of tenant databases
  TENANT_DB_PASSWORD
  TENANT_DB_HOST       default localhost
  TENANT_DB_PORT       default 5432
  POSTGRES_ADMIN_URL   connection allowed to CREATE DATABASE`)
}

func metaPool(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := os.Getenv("META_DATABASE_URL")
	if dsn == "" {
		return nil, errors.New("META_DATABASE_URL is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to meta database: %w", err)
	}
	return pool, nil
}

func tenantCredentials() (user, password string, err error) {
	user, password = os.Getenv("TENANT_DB_USER"), os.Getenv("TENANT_DB_PASSWORD")
	if user == "" || password == "" {
		return "", "", errors.New("TENANT_DB_USER and TENANT_DB_PASSWORD are required")
	}
	return user, password, nil
}

func createTenant(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	slugArg := fs.String("slug", "", "tenant slug, lowercase")
	name := fs.String("name", "", "display name")
	plan := fs.String("plan", string(tenant.PlanStandard), "starter, standard or enterprise")
	skipMigrate := fs.Bool("skip-migrate", false, "register without running migrations")
	_ = fs.Parse(args)

	slug, err := tenant.NormalizeSlug(*slugArg)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*name) == "" {
		return errors.New("--name is required")
	}
	if !tenant.Plan(*plan).Valid() {
		return fmt.Errorf("unknown plan %q", *plan)
	}

	port, err := strconv.Atoi(getEnv("TENANT_DB_PORT", "5432"))
	if err != nil {
		return fmt.Errorf("TENANT_DB_PORT: %w", err)
	}
	t := &tenant.Tenant{
		Slug:        slug,
		DisplayName: strings.TrimSpace(*name),
		DBName:      tenant.DBNameFor(slug),
		DBHost:      getEnv("TENANT_DB_HOST", "localhost"),
		DBPort:      port,
		Status:      tenant.StatusActive,
		Plan:        tenant.Plan(*plan),
	}

	meta, err := metaPool(ctx)
	if err != nil {
		return err
	}
	defer meta.Close()

	fmt.Printf("Creating tenant %q...\n", slug)

	if err := createDatabase(ctx, t.DBName); err != nil {
		return err
	}

	if !*skipMigrate {
		user, password, err := tenantCredentials()
		if err != nil {
			return err
		}
		fmt.Println("  running migrations")
		if err := goose(t.DSN(user, password), "up"); err != nil {
			return fmt.Errorf("migrate %s: %w", t.DBName, err)
		}
	}

	if err := tenant.NewPostgresRegistry(meta).Create(ctx, t); err != nil {
		return err
	}

	fmt.Printf("\nTenant %q created\n", slug)
	fmt.Printf("  ID:       %s\n", t.ID)
	fmt.Printf("  Database: %s\n", t.DBName)
	fmt.Printf("  Plan:     %s\n", t.Plan)
	return nil
}

// createDatabase issues CREATE DATABASE through POSTGRES_ADMIN_URL. An
// existing database is reused.
func createDatabase(ctx context.Context, dbName string) error {
	adminDSN := os.Getenv("POSTGRES_ADMIN_URL")
	if adminDSN == "" {
		fmt.Println("  POSTGRES_ADMIN_URL not set, assuming the database exists")
		return nil
	}
	conn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		return fmt.Errorf("connect as admin: %w", err)
	}
	defer conn.Close(ctx)

	stmt := "CREATE DATABASE " + pgx.Identifier{dbName}.Sanitize()
	if owner := os.Getenv("TENANT_DB_USER"); owner != "" {
		stmt += " OWNER " + pgx.Identifier{owner}.Sanitize()
	}
	if _, err := conn.Exec(ctx, stmt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P04" {
			fmt.Printf("  database %s already exists\n", dbName)
			return nil
		}
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	fmt.Printf("  database %s created\n", dbName)
	return nil
}

func listTenants(ctx context.Context) error {
	meta, err := metaPool(ctx)
	if err != nil {
		return err
	}
	defer meta.Close()

	tenants, err := tenant.NewPostgresRegistry(meta).ListAll(ctx)
	if err != nil {
		return err
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSLUG\tNAME\tDATABASE\tPLAN\tSTATUS")
	for _, t := range tenants {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Slug, t.DisplayName, t.DBName, t.Plan, t.Status)
	}
	return w.Flush()
}

func migrateTenants(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	all := fs.Bool("all", false, "migrate every active tenant")
	ref := fs.String("tenant", "", "tenant slug or id")
	command := fs.String("command", "up", "goose command: up, down, status")
	_ = fs.Parse(args)

	if !*all && *ref == "" {
		return errors.New("specify --tenant <slug|id> or --all")
	}
	user, password, err := tenantCredentials()
	if err != nil {
		return err
	}

	meta, err := metaPool(ctx)
	if err != nil {
		return err
	}
	defer meta.Close()
	registry := tenant.NewPostgresRegistry(meta)

	var tenants []*tenant.Tenant
	if *all {
		if tenants, err = registry.ListActive(ctx); err != nil {
			return err
		}
	} else {
		t, err := registry.Lookup(ctx, *ref)
		if err != nil {
			return fmt.Errorf("tenant %q: %w", *ref, err)
		}
		tenants = []*tenant.Tenant{t}
	}

	failed := 0
	for _, t := range tenants {
		fmt.Printf("Migrating %s (%s)...\n", t.Slug, t.DBName)
		if err := goose(t.DSN(user, password), *command); err != nil {
			fmt.Printf("  failed: %v\n", err)
			failed++
			continue
		}
		fmt.Println("  done")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tenants failed", failed, len(tenants))
	}
	return nil
}

func setStatus(ctx context.Context, args []string, status tenant.Status) error {
	if len(args) < 1 {
		return errors.New("usage: tenant suspend|activate <slug|id>")
	}

	meta, err := metaPool(ctx)
	if err != nil {
		return err
	}
	defer meta.Close()
	registry := tenant.NewPostgresRegistry(meta)

	t, err := registry.Lookup(ctx, args[0])
	if err != nil {
		return fmt.Errorf("tenant %q: %w", args[0], err)
	}
	if err := registry.UpdateStatusByID(ctx, t.ID, status); err != nil {
		return err
	}
	fmt.Printf("Tenant %q is now %s\n", t.Slug, status)
	return nil
}

// goose runs the goose binary against dsn.
func goose(dsn, command string) error {
	cmd := exec.Command("goose", "-dir", migrationsDir, "postgres", dsn, command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
