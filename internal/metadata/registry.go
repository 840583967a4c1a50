// Package metadata describes entity shapes for generic clients: which
// fields an asset or record has, their types and the allowed enum values.
package metadata

import (
	"slices"
	"strings"
	"sync"
)

type EntityType string

const (
	TypeCatalog EntityType = "catalog"
	TypeRecord  EntityType = "record"
)

type FieldType string

const (
	TypeString    FieldType = "string"
	TypeInteger   FieldType = "integer"
	TypeNumber    FieldType = "number"
	TypeBoolean   FieldType = "boolean"
	TypeDate      FieldType = "date"
	TypeReference FieldType = "reference"
	TypeEnum      FieldType = "enum"
	TypeMoney     FieldType = "money"
	TypeObject    FieldType = "object" // free-form JSON such as specifications
	TypeFiles     FieldType = "files"
)

type EntityDef struct {
	Name   string     `json:"name"`
	Label  string     `json:"label,omitempty"`
	Type   EntityType `json:"type"`
	Path   string     `json:"path,omitempty"` // API collection, "/catalog/assets"
	Fields []FieldDef `json:"fields"`
}

type FieldDef struct {
	Name          string    `json:"name"`
	Label         string    `json:"label,omitempty"`
	Type          FieldType `json:"type"`
	ReferenceType string    `json:"referenceType,omitempty"`
	Required      bool      `json:"required,omitempty"`
	ReadOnly      bool      `json:"readOnly,omitempty"`
	Options       []string  `json:"options,omitempty"`
}

// Field returns the definition of the named field.
func (d EntityDef) Field(name string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// WithOptions turns field into an enum of options.
func (d EntityDef) WithOptions(field string, options ...string) EntityDef {
	for i := range d.Fields {
		if d.Fields[i].Name == field {
			d.Fields[i].Type = TypeEnum
			d.Fields[i].Options = options
		}
	}
	return d
}

// Registry is safe for concurrent use. Names are matched case-insensitively.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]EntityDef
}

func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]EntityDef)}
}

func (r *Registry) Register(def EntityDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[strings.ToLower(def.Name)] = def
}

func (r *Registry) Get(name string) (EntityDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entities[strings.ToLower(name)]
	return d, ok
}

// List returns the definitions sorted by name.
func (r *Registry) List() []EntityDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]EntityDef, 0, len(r.entities))
	for _, def := range r.entities {
		list = append(list, def)
	}
	slices.SortFunc(list, func(a, b EntityDef) int { return strings.Compare(a.Name, b.Name) })
	return list
}
