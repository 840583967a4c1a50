package assignment

import (
	"context"
	"time"

	"setflow/internal/core/apperror"
	"setflow/internal/core/entity"
	"setflow/internal/core/id"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusReturned Status = "returned"
)

// Assignment hands an asset to a user, a department or both.
type Assignment struct {
	entity.Record

	AssetID        string     `db:"asset_id" json:"assetId"`
	UserID         *string    `db:"user_id" json:"userId,omitempty"`
	DepartmentID   *string    `db:"department_id" json:"departmentId,omitempty"`
	ExpectedReturn *time.Time `db:"expected_return" json:"expectedReturn,omitempty"`
	ReturnedAt     *time.Time `db:"returned_at" json:"returnedAt,omitempty"`
	Status         Status     `db:"status" json:"status"`
}

func New(assetID string, date time.Time) *Assignment {
	return &Assignment{
		Record:  entity.NewRecord(date),
		AssetID: assetID,
		Status:  StatusActive,
	}
}

func (a *Assignment) Validate(ctx context.Context) error {
	if err := a.Record.Validate(ctx); err != nil {
		return err
	}
	if _, err := id.Parse(a.AssetID); err != nil {
		return apperror.NewValidation("asset is required").WithDetail("field", "assetId")
	}
	if a.UserID == nil && a.DepartmentID == nil {
		return apperror.NewValidation("assign to a user or a department").WithDetail("field", "userId")
	}
	for field, ref := range map[string]*string{"userId": a.UserID, "departmentId": a.DepartmentID} {
		if ref == nil {
			continue
		}
		if _, err := id.Parse(*ref); err != nil {
			return apperror.NewValidation("invalid reference").WithDetail("field", field)
		}
	}
	if a.ExpectedReturn != nil && a.ExpectedReturn.Before(a.Date) {
		return apperror.NewValidation("expected return is before the assignment date").
			WithDetail("field", "expectedReturn")
	}
	switch a.Status {
	case StatusActive, StatusReturned:
	default:
		return apperror.NewValidation("unknown assignment status").WithDetail("field", "status")
	}
	return nil
}

// Normalize turns empty references into nil.
func (a *Assignment) Normalize() {
	if a.UserID != nil && *a.UserID == "" {
		a.UserID = nil
	}
	if a.DepartmentID != nil && *a.DepartmentID == "" {
		a.DepartmentID = nil
	}
}

// Late reports an active assignment past its expected return.
func (a *Assignment) Late(asOf time.Time) bool {
	return a.Status == StatusActive && a.ExpectedReturn != nil && a.ExpectedReturn.Before(asOf)
}
