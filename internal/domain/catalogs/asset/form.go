package asset

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"setflow/internal/core/apperror"
	"setflow/internal/domain/assetform"
)

// typedKeys are form keys whose empty string means "not set".
var typedKeys = []string{
	"purchasePrice", "purchaseDate", "warrantyUntil",
	"departmentId", "assignedTo", "serialNumber",
}

var dateKeys = []string{"purchaseDate", "warrantyUntil"}

// FormData renders a stored asset as the initial data of an edit form.
func FormData(a *Asset) (map[string]any, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("asset form data: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("asset form data: %w", err)
	}
	return out, nil
}

// FromPayload applies a submitted form to base, or to a new asset when base
// is nil. Fields absent from the payload keep base's values.
func FromPayload(p assetform.Payload, base *Asset) (*Asset, error) {
	flat := p.Flat()
	for _, k := range typedKeys {
		if s, ok := flat[k].(string); ok && s == "" {
			delete(flat, k)
		}
	}
	for _, k := range dateKeys {
		if s, ok := flat[k].(string); ok && len(s) == len(time.DateOnly) {
			d, err := time.Parse(time.DateOnly, s)
			if err != nil {
				return nil, apperror.NewValidation("invalid date").WithDetail("field", k)
			}
			flat[k] = d
		}
	}

	raw, err := json.Marshal(flat)
	if err != nil {
		return nil, fmt.Errorf("asset payload: %w", err)
	}

	a := base
	if a == nil {
		a = NewAsset("", "")
	}
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, apperror.NewValidation("invalid asset data").WithCause(err)
	}
	a.Specifications = p.Specifications
	a.CustomSpecifications = p.CustomSpecifications
	a.Attachments = p.Attachments
	if p.ImageURL != "" {
		a.ImageURL = p.ImageURL
	}
	return a, nil
}

// SubmitFunc persists a form payload as a new asset (existing == nil) or as
// an update of existing. saved receives the stored asset.
func (s *Service) SubmitFunc(existing *Asset, saved func(*Asset)) assetform.SubmitFunc {
	return func(ctx context.Context, p assetform.Payload) error {
		a, err := FromPayload(p, existing)
		if err != nil {
			return err
		}
		if existing == nil {
			err = s.Create(ctx, a)
		} else {
			err = s.Update(ctx, a)
		}
		if err != nil {
			return err
		}
		if saved != nil {
			saved(a)
		}
		return nil
	}
}
