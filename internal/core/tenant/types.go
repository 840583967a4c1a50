// Package tenant routes each request to its organisation's own database.
// The meta database lists tenants; every tenant gets a dedicated PostgreSQL
// database holding its assets, categories, records and users.
package tenant

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// Plan caps how many assets a tenant may register.
type Plan string

const (
	PlanStarter    Plan = "starter"
	PlanStandard   Plan = "standard"
	PlanEnterprise Plan = "enterprise"
)

// AssetLimit returns the maximum number of live assets, 0 meaning unlimited.
func (p Plan) AssetLimit() int64 {
	switch p {
	case PlanStarter:
		return 250
	case PlanStandard:
		return 5000
	default:
		return 0
	}
}

func (p Plan) Valid() bool {
	switch p {
	case PlanStarter, PlanStandard, PlanEnterprise:
		return true
	}
	return false
}

// Tenant is one row of the meta database.
type Tenant struct {
	ID          string         `db:"id" json:"id"`
	Slug        string         `db:"slug" json:"slug"`
	DisplayName string         `db:"display_name" json:"displayName"`
	DBName      string         `db:"db_name" json:"dbName"`
	DBHost      string         `db:"db_host" json:"dbHost"`
	DBPort      int            `db:"db_port" json:"dbPort"`
	Status      Status         `db:"status" json:"status"`
	Plan        Plan           `db:"plan" json:"plan"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
	Settings    map[string]any `db:"settings" json:"settings,omitempty"`
}

func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// DSN is the connection string for the tenant database.
func (t *Tenant) DSN(user, password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		user, password, t.DBHost, t.DBPort, t.DBName)
}

var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,40}$`)

// NormalizeSlug lowercases s and checks it is usable inside a database name.
func NormalizeSlug(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !slugPattern.MatchString(s) {
		return "", fmt.Errorf("slug %q must match %s", s, slugPattern)
	}
	return s, nil
}

// DBNameFor returns the database name provisioned for slug.
func DBNameFor(slug string) string {
	return "sf_" + slug
}
