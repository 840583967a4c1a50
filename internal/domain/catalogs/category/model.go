// Package category provides the asset category catalog. A category owns the
// specification template its assets are filled from and, optionally, the
// depreciation settings used for book values. Folder categories group others.
package category

import (
	"context"
	"strings"

	"github.com/gosimple/slug"

	"setflow/internal/core/entity"
	"setflow/internal/domain/depreciation"
	"setflow/internal/domain/spectemplate"
)

type Category struct {
	entity.Catalog

	Description  string              `db:"description" json:"description,omitempty"`
	SpecFields   spectemplate.Fields `db:"spec_fields" json:"specFields"`
	Depreciation depreciation.Column `db:"depreciation" json:"depreciation"`
}

func NewCategory(name string) *Category {
	return &Category{
		Catalog:    entity.NewCatalog("", name),
		SpecFields: spectemplate.Fields{},
	}
}

// Validate implements entity.Validatable interface.
func (c *Category) Validate(ctx context.Context) error {
	if err := c.Catalog.Validate(ctx); err != nil {
		return err
	}
	if c.Depreciation.Settings != nil {
		if err := c.Depreciation.Validate(); err != nil {
			return err
		}
	}
	if len(c.SpecFields) > 0 {
		return spectemplate.Validate(c.SpecFields)
	}
	return nil
}

// Template returns the saved template of the category.
func (c *Category) Template() spectemplate.Template {
	return spectemplate.Template{
		CategoryID:   c.ID.String(),
		CategoryName: c.Name,
		Fields:       append([]spectemplate.Field(nil), c.SpecFields...),
	}
}

// CodeFromName turns "Network Equipment" into "NETWORK-EQUIPMENT".
func CodeFromName(name string) string {
	return strings.ToUpper(slug.Make(name))
}
