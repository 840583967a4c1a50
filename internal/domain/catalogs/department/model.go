// Package department provides the department catalog. Departments own
// assets and scope what non-admin users can see.
package department

import (
	"context"

	"setflow/internal/core/apperror"
	"setflow/internal/core/entity"
	"setflow/internal/core/id"
)

type Department struct {
	entity.Catalog

	// ManagerID is the user responsible for the department.
	ManagerID *string `db:"manager_id" json:"managerId,omitempty"`
	Location  string  `db:"location" json:"location,omitempty"`
}

func NewDepartment(code, name string) *Department {
	return &Department{Catalog: entity.NewCatalog(code, name)}
}

// Validate implements entity.Validatable interface.
func (d *Department) Validate(ctx context.Context) error {
	if err := d.Catalog.Validate(ctx); err != nil {
		return err
	}
	if d.ManagerID != nil && *d.ManagerID != "" {
		if _, err := id.Parse(*d.ManagerID); err != nil {
			return apperror.NewValidation("invalid manager id").WithDetail("field", "managerId")
		}
	}
	return nil
}
