// Package assetform drives the asset create/edit form: binding the selected
// category's template to the asset's specification values, custom fields,
// attachments and the submit sequence.
package assetform

import (
	"context"
	"maps"

	"setflow/internal/domain/depreciation"
	"setflow/internal/domain/spectemplate"
)

// Group is a category group offered by the category picker.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CategorySource loads what the form needs about categories.
type CategorySource interface {
	Template(ctx context.Context, categoryID string) ([]spectemplate.Field, error)
	Depreciation(ctx context.Context, categoryID string) (*depreciation.Settings, error)
	Groups(ctx context.Context) ([]Group, error)
}

// Bind applies a category template to an asset's specifications. Each
// returned field carries the stored value, or its type's empty value when
// none exists; a checkbox without a value starts as false, not "". merged is a copy of specs where ids missing a value are
// initialized; existing entries, including ids outside the template, are
// kept as they are.
func Bind(template []spectemplate.Field, specs map[string]any) ([]spectemplate.Field, map[string]any) {
	merged := make(map[string]any, len(specs)+len(template))
	maps.Copy(merged, specs)

	fields := make([]spectemplate.Field, len(template))
	for i, f := range template {
		if f.Options != nil {
			f.Options = append([]string(nil), f.Options...)
		}
		if v, ok := specs[f.ID]; ok {
			f.Value = v
		} else {
			f.Value = spectemplate.EmptyValue(f.Type)
			merged[f.ID] = f.Value
		}
		fields[i] = f
	}
	return fields, merged
}
