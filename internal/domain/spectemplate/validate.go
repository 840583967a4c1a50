package spectemplate

import (
	"fmt"
	"strings"

	"setflow/internal/core/apperror"
)

// Validate checks a template before it is saved: unique non-empty ids,
// non-empty labels, known types, options for selects and compilable rules.
func Validate(fields []Field) error {
	seen := make(map[string]int, len(fields))
	var dups []string
	for _, f := range fields {
		id := strings.TrimSpace(f.ID)
		if id == "" {
			continue
		}
		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id)
		}
	}
	if len(dups) > 0 {
		return apperror.NewTemplateInvalid("field ids must be unique").
			WithDetail("duplicates", dups)
	}

	for i, f := range fields {
		if strings.TrimSpace(f.Label) == "" {
			return apperror.NewTemplateInvalid(fmt.Sprintf("field %d has no label", i+1)).
				WithDetail("index", i)
		}
	}

	for i, f := range fields {
		if f.Type != "" && !f.Type.Valid() {
			return apperror.NewTemplateInvalid(fmt.Sprintf("field %q has unknown type %q", f.Label, f.Type)).
				WithDetail("index", i)
		}
		if f.Type == TypeSelect && len(nonBlank(f.Options)) == 0 {
			return apperror.NewTemplateInvalid(fmt.Sprintf("select field %q needs options", f.Label)).
				WithDetail("index", i)
		}
		if strings.TrimSpace(f.Rule) != "" {
			if err := CheckRule(f.Rule); err != nil {
				return apperror.NewTemplateInvalid(fmt.Sprintf("field %q has an invalid rule", f.Label)).
					WithDetail("index", i).
					WithDetail("rule", f.Rule).
					WithCause(err)
			}
		}
	}
	return nil
}

// Normalize returns a copy of fields ready to store. Missing ids are derived
// from labels; a derived id that collides with another id gets a numeric
// suffix. Types default to text and values to the type's empty value.
func Normalize(fields []Field) []Field {
	out := cloneFields(fields)
	taken := make(map[string]bool, len(out))
	for i := range out {
		out[i].ID = strings.TrimSpace(out[i].ID)
		if out[i].ID != "" {
			taken[out[i].ID] = true
		}
	}
	for i := range out {
		f := &out[i]
		f.Label = strings.TrimSpace(f.Label)
		f.Rule = strings.TrimSpace(f.Rule)
		if f.Type == "" {
			f.Type = TypeText
		}
		if f.Options != nil {
			f.Options = nonBlank(f.Options)
		}
		if f.Value == nil {
			f.Value = EmptyValue(f.Type)
		}
		if f.ID != "" {
			continue
		}
		base := DeriveID(f.Label)
		candidate := base
		for n := 2; taken[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", base, n)
		}
		f.ID = candidate
		taken[candidate] = true
	}
	return out
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
