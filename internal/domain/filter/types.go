// Package filter describes field conditions clients attach to list queries.
package filter

import (
	"fmt"
	"strings"
)

type ComparisonType string

const (
	Equal          ComparisonType = "eq"
	NotEqual       ComparisonType = "neq"
	LessOrEqual    ComparisonType = "lte"
	GreaterOrEqual ComparisonType = "gte"
	InList         ComparisonType = "in"
	NotInList      ComparisonType = "nin"
	Contains       ComparisonType = "contains"  // ILIKE %v%
	NotContains    ComparisonType = "ncontains" // NOT ILIKE %v%

	// InHierarchy matches a group and everything below it.
	InHierarchy    ComparisonType = "in_hierarchy"
	NotInHierarchy ComparisonType = "nin_hierarchy"

	IsNull    ComparisonType = "null"
	IsNotNull ComparisonType = "not_null"
)

var known = map[ComparisonType]bool{
	Equal: true, NotEqual: true, LessOrEqual: true, GreaterOrEqual: true,
	InList: true, NotInList: true, Contains: true, NotContains: true,
	InHierarchy: true, NotInHierarchy: true, IsNull: true, IsNotNull: true,
}

// Item is one condition: Field Operator Value. Field is a snake_case column.
type Item struct {
	Field    string         `json:"field"`
	Operator ComparisonType `json:"operator"`
	Value    any            `json:"value"`
}

func (it Item) Validate() error {
	if strings.TrimSpace(it.Field) == "" {
		return fmt.Errorf("filter field is empty")
	}
	if !known[it.Operator] {
		return fmt.Errorf("filter %s: unknown operator %q", it.Field, it.Operator)
	}
	switch it.Operator {
	case IsNull, IsNotNull:
		return nil
	case InList, NotInList:
		if len(Values(it.Value)) == 0 {
			return fmt.Errorf("filter %s: %s needs a non-empty list", it.Field, it.Operator)
		}
	default:
		if it.Value == nil {
			return fmt.Errorf("filter %s: value is required", it.Field)
		}
	}
	return nil
}

// Values flattens a scalar, a []any or a comma separated string into a list.
func Values(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []any{t}
	}
}
