package entity

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Values is a free-form key/value map stored as JSONB, used for asset
// specifications and custom specifications. Numbers decode as json.Number
// so that "16" and 16 survive a round trip unchanged.
type Values map[string]any

func (v *Values) Scan(src any) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		raw = s
	case string:
		raw = []byte(s)
	default:
		return fmt.Errorf("values: cannot scan %T", src)
	}
	if len(raw) == 0 {
		*v = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return fmt.Errorf("values: %w", err)
	}
	*v = m
	return nil
}

// Value writes an empty object for nil so the column stays NOT NULL.
func (v Values) Value() (driver.Value, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(v))
}

// String returns the value at key rendered as text ("" when absent).
func (v Values) String(key string) string {
	switch x := v[key].(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(x)
	}
}

func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// Clone is a shallow copy; nil stays nil.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	return maps.Clone(v)
}

// Keys returns the keys in sorted order.
func (v Values) Keys() []string {
	return slices.Sorted(maps.Keys(v))
}
