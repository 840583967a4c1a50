// Package spectemplate models the per-category specification templates:
// the ordered list of typed fields an asset of that category carries, the
// built-in defaults, and the editing session that changes a template.
package spectemplate

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type FieldType string

const (
	TypeText     FieldType = "text"
	TypeNumber   FieldType = "number"
	TypeDate     FieldType = "date"
	TypeSelect   FieldType = "select"
	TypeCheckbox FieldType = "checkbox"
	TypeTextarea FieldType = "textarea"
)

func (t FieldType) Valid() bool {
	switch t {
	case TypeText, TypeNumber, TypeDate, TypeSelect, TypeCheckbox, TypeTextarea:
		return true
	}
	return false
}

// Field is one specification field definition.
type Field struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Value    any       `json:"value"`
	Options  []string  `json:"options,omitempty"`
	Required bool      `json:"required,omitempty"`
	// Rule is a CEL expression over value and specs that must yield true.
	Rule string `json:"rule,omitempty"`
}

// Template is the saved field list of one category.
type Template struct {
	CategoryID   string  `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	Fields       []Field `json:"fields"`
}

// EmptyValue is the value a field starts with.
func EmptyValue(t FieldType) any {
	if t == TypeCheckbox {
		return false
	}
	return ""
}

// FallbackID is used when a label yields no usable characters.
const FallbackID = "field_id"

var (
	whitespaceRun = regexp.MustCompile(`[\s\p{Zs}]+`)
	notIDChar     = regexp.MustCompile(`[^a-z0-9_]`)
)

// DeriveID turns a label into a field id: lowercase, whitespace runs become
// "_", everything outside [a-z0-9_] is dropped.
func DeriveID(label string) string {
	if s := slugID(label); s != "" {
		return s
	}
	return FallbackID
}

// slugID is DeriveID without the fallback; it may return "".
func slugID(label string) string {
	s := strings.ToLower(label)
	s = whitespaceRun.ReplaceAllString(s, "_")
	return notIDChar.ReplaceAllString(s, "")
}

func cloneField(f Field) Field {
	if f.Options != nil {
		f.Options = append([]string(nil), f.Options...)
	}
	return f
}

func cloneFields(fields []Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = cloneField(f)
	}
	return out
}

// Fields is a template stored as a JSONB array.
type Fields []Field

func (f *Fields) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*f = Fields{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("spec fields: cannot scan %T", src)
	}
	var out []Field
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("spec fields: %w", err)
	}
	if out == nil {
		out = []Field{}
	}
	*f = out
	return nil
}

func (f Fields) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Field(f))
}
