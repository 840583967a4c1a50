// Package asset provides the asset catalog: the tracked hardware and
// software items, their category specifications and lifecycle status.
package asset

import (
	"context"
	"slices"
	"strings"
	"time"

	"setflow/internal/core/apperror"
	"setflow/internal/core/entity"
	"setflow/internal/core/id"
	"setflow/internal/core/types"
)

type Status string

const (
	StatusAvailable   Status = "available"
	StatusAssigned    Status = "assigned"
	StatusMaintenance Status = "maintenance"
	StatusRetired     Status = "retired"
	StatusDisposed    Status = "disposed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusAssigned, StatusMaintenance, StatusRetired, StatusDisposed:
		return true
	}
	return false
}

// transitions lists where each status may move.
var transitions = map[Status][]Status{
	StatusAvailable:   {StatusAssigned, StatusMaintenance, StatusRetired, StatusDisposed},
	StatusAssigned:    {StatusAvailable, StatusMaintenance},
	StatusMaintenance: {StatusAvailable, StatusAssigned},
	StatusRetired:     {StatusDisposed},
}

// CanMoveTo also accepts staying assigned or in maintenance, which is how
// the holder of such an asset changes.
func (s Status) CanMoveTo(to Status) bool {
	if s == to {
		return s == StatusAssigned || s == StatusMaintenance
	}
	return slices.Contains(transitions[s], to)
}

type Asset struct {
	entity.Catalog
	entity.Authored

	CategoryID   string  `db:"category_id" json:"categoryId"`
	DepartmentID *string `db:"department_id" json:"departmentId,omitempty"`
	AssignedTo   *string `db:"assigned_to" json:"assignedTo,omitempty"`
	Status       Status  `db:"status" json:"status"`

	SerialNumber *string `db:"serial_number" json:"serialNumber,omitempty"`
	Manufacturer string  `db:"manufacturer" json:"manufacturer,omitempty"`
	Model        string  `db:"model" json:"model,omitempty"`

	PurchaseDate  *time.Time  `db:"purchase_date" json:"purchaseDate,omitempty"`
	PurchasePrice types.Money `db:"purchase_price" json:"purchasePrice"`
	Vendor        string      `db:"vendor" json:"vendor,omitempty"`
	WarrantyUntil *time.Time  `db:"warranty_until" json:"warrantyUntil,omitempty"`

	Location    string       `db:"location" json:"location,omitempty"`
	ImageURL    string       `db:"image_url" json:"imageUrl,omitempty"`
	Attachments entity.Files `db:"attachments" json:"attachments"`
	Notes       string       `db:"notes" json:"notes,omitempty"`

	Specifications       entity.Values `db:"specifications" json:"specifications"`
	CustomSpecifications entity.Values `db:"custom_specifications" json:"customSpecifications"`
}

func NewAsset(name, categoryID string) *Asset {
	return &Asset{
		Catalog:              entity.NewCatalog("", name),
		CategoryID:           categoryID,
		Status:               StatusAvailable,
		Attachments:          entity.Files{},
		Specifications:       entity.Values{},
		CustomSpecifications: entity.Values{},
	}
}

// Validate implements entity.Validatable interface.
func (a *Asset) Validate(ctx context.Context) error {
	if err := a.Catalog.Validate(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(a.CategoryID) == "" {
		return apperror.NewValidation("category is required").WithDetail("field", "categoryId")
	}
	if _, err := id.Parse(a.CategoryID); err != nil {
		return apperror.NewValidation("invalid category id").WithDetail("field", "categoryId")
	}
	for field, ref := range map[string]*string{"departmentId": a.DepartmentID, "assignedTo": a.AssignedTo} {
		if ref == nil || *ref == "" {
			continue
		}
		if _, err := id.Parse(*ref); err != nil {
			return apperror.NewValidation("invalid reference").WithDetail("field", field)
		}
	}
	if !a.Status.Valid() {
		return apperror.NewValidation("invalid asset status").
			WithDetail("field", "status").
			WithDetail("value", string(a.Status))
	}
	if a.PurchasePrice.IsNegative() {
		return apperror.NewValidation("purchase price cannot be negative").WithDetail("field", "purchasePrice")
	}
	if a.PurchaseDate != nil && a.WarrantyUntil != nil && a.WarrantyUntil.Before(*a.PurchaseDate) {
		return apperror.NewValidation("warranty ends before purchase").WithDetail("field", "warrantyUntil")
	}
	return nil
}

// Normalize trims text fields and fills empty collections.
func (a *Asset) Normalize() {
	a.Name = strings.TrimSpace(a.Name)
	a.Code = strings.TrimSpace(a.Code)
	if a.SerialNumber != nil {
		if sn := strings.TrimSpace(*a.SerialNumber); sn == "" {
			a.SerialNumber = nil
		} else {
			a.SerialNumber = &sn
		}
	}
	if a.DepartmentID != nil && *a.DepartmentID == "" {
		a.DepartmentID = nil
	}
	if a.AssignedTo != nil && *a.AssignedTo == "" {
		a.AssignedTo = nil
	}
	if a.Specifications == nil {
		a.Specifications = entity.Values{}
	}
	if a.CustomSpecifications == nil {
		a.CustomSpecifications = entity.Values{}
	}
	if a.Attachments == nil {
		a.Attachments = entity.Files{}
	}
	a.PurchasePrice = types.RoundMoney(a.PurchasePrice)
}

// IsActive reports whether the asset is still in service.
func (a *Asset) IsActive() bool {
	return a.Status != StatusRetired && a.Status != StatusDisposed
}

// DepartmentKey returns the department id or "".
func (a *Asset) DepartmentKey() string {
	if a.DepartmentID == nil {
		return ""
	}
	return *a.DepartmentID
}
