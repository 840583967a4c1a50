package entity

import (
	"context"
	"strings"

	"setflow/internal/core/apperror"
)

// Catalog is reference data with a code, a name and an optional group parent.
// Categories and departments are catalogs; so are assets.
type Catalog struct {
	BaseEntity

	Code     string  `db:"code" json:"code"`
	Name     string  `db:"name" json:"name"`
	ParentID *string `db:"parent_id" json:"parentId,omitempty"`
	IsFolder bool    `db:"is_folder" json:"isFolder"`
}

func NewCatalog(code, name string) Catalog {
	return Catalog{
		BaseEntity: NewBaseEntity(),
		Code:       strings.TrimSpace(code),
		Name:       strings.TrimSpace(name),
	}
}

func (c *Catalog) Validate(ctx context.Context) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if c.ParentID != nil && *c.ParentID == c.ID.String() {
		return apperror.NewValidation("an item cannot be its own parent").WithDetail("field", "parentId")
	}
	return nil
}

// SetParent accepts "" to detach from any group.
func (c *Catalog) SetParent(parentID string) {
	if parentID == "" {
		c.ParentID = nil
		return
	}
	c.ParentID = &parentID
}

func (c *Catalog) IsRoot() bool {
	return c.ParentID == nil || *c.ParentID == ""
}
