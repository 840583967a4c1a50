package dto

import (
	"setflow/internal/domain/assetform"
	"setflow/internal/domain/depreciation"
	"setflow/internal/domain/spectemplate"
)

// TemplateRequest replaces a category template.
type TemplateRequest struct {
	Fields []spectemplate.Field `json:"fields"`
}

// TemplateOpsRequest is a batch of editor operations.
type TemplateOpsRequest struct {
	Ops []spectemplate.Op `json:"ops" binding:"required"`
}

type DefaultsResponse struct {
	Name   string               `json:"name"`
	Fields []spectemplate.Field `json:"fields"`
}

// AssetFormData is the "data" part of a multipart asset form submit.
// AssetID selects the asset to edit; empty creates a new one.
type AssetFormData struct {
	AssetID        string                  `json:"assetId,omitempty"`
	Fields         map[string]any          `json:"fields"`
	Specifications map[string]any          `json:"specifications,omitempty"`
	CustomFields   []assetform.CustomField `json:"customFields,omitempty"`
	// RemoveAttachments drops stored attachments by index before new
	// ones are appended.
	RemoveAttachments []int `json:"removeAttachments,omitempty"`
}

// AssetFormResponse carries the saved asset and non-fatal warnings such as
// custom field names that shadow each other.
type AssetFormResponse struct {
	Asset    any      `json:"asset"`
	Warnings []string `json:"warnings"`
}

// FormFieldsResponse is the template bound to an asset's values.
type FormFieldsResponse struct {
	CategoryID     string                 `json:"categoryId"`
	Fields         []spectemplate.Field   `json:"fields"`
	Specifications map[string]any         `json:"specifications"`
	Depreciation   *depreciation.Settings `json:"depreciation"`
	Groups         []assetform.Group      `json:"groups"`
	Sections       []assetform.Section    `json:"sections"`
	ActiveSection  assetform.Section      `json:"activeSection"`
}
