// Package dashboard aggregates asset, maintenance and assignment figures.
package dashboard

import (
	"time"

	"setflow/internal/core/types"
	"setflow/internal/domain/depreciation"
)

// Scope restricts every query to assets of the listed departments.
// Nil Departments means all assets.
type Scope struct {
	Departments []string
}

type StatusCount struct {
	Status string      `db:"status" json:"status"`
	Count  int64       `db:"count" json:"count"`
	Value  types.Money `db:"value" json:"value"`
}

// Summary is the headline block of the dashboard.
type Summary struct {
	AssetCount          int64            `json:"assetCount"`
	ByStatus            map[string]int64 `json:"byStatus"`
	TotalPurchaseValue  types.Money      `json:"totalPurchaseValue"`
	TotalBookValue      types.Money      `json:"totalBookValue"`
	OpenMaintenance     int64            `json:"openMaintenance"`
	MaintenanceCostYear types.Money      `json:"maintenanceCostYear"`
	ActiveAssignments   int64            `json:"activeAssignments"`
	AsOf                time.Time        `json:"asOf"`
}

// GroupCount is one bar of a by-category or by-department chart. ID is nil
// for assets without a group.
type GroupCount struct {
	ID    *string     `db:"id" json:"id"`
	Name  string      `db:"name" json:"name"`
	Count int64       `db:"count" json:"count"`
	Value types.Money `db:"value" json:"value"`
}

type MonthCost struct {
	Month time.Time   `db:"month" json:"month"`
	Jobs  int64       `db:"jobs" json:"jobs"`
	Cost  types.Money `db:"cost" json:"cost"`
}

// Activity is one row of the recent activity feed.
type Activity struct {
	Kind      string    `db:"kind" json:"kind"` // "assignment" or "maintenance"
	ID        string    `db:"id" json:"id"`
	Number    string    `db:"number" json:"number"`
	Date      time.Time `db:"date" json:"date"`
	Status    string    `db:"status" json:"status"`
	AssetID   string    `db:"asset_id" json:"assetId"`
	AssetName string    `db:"asset_name" json:"assetName"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Depreciable is what book value needs from a live asset.
type Depreciable struct {
	PurchasePrice types.Money         `db:"purchase_price"`
	PurchaseDate  *time.Time          `db:"purchase_date"`
	Settings      depreciation.Column `db:"depreciation"`
}
