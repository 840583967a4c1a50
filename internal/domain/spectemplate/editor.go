package spectemplate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"setflow/internal/core/apperror"
)

var (
	ErrIndexOutOfRange   = errors.New("field index out of range")
	ErrResetNotConfirmed = errors.New("reset to default must be confirmed")
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Attr names a field property EditField can change.
type Attr string

const (
	AttrID       Attr = "id"
	AttrLabel    Attr = "label"
	AttrType     Attr = "type"
	AttrValue    Attr = "value"
	AttrOptions  Attr = "options"
	AttrRequired Attr = "required"
	AttrRule     Attr = "rule"
)

// Persister stores a saved template.
type Persister interface {
	SaveTemplate(ctx context.Context, t Template) error
}

type PersisterFunc func(ctx context.Context, t Template) error

func (f PersisterFunc) SaveTemplate(ctx context.Context, t Template) error { return f(ctx, t) }

// Editor is one editing session over the template of one category.
// It is not safe for concurrent use.
type Editor struct {
	categoryID   string
	categoryName string
	registry     *Registry

	fields     []Field
	hasChanges bool
}

// NewEditor starts a session from the category's current fields. A nil
// registry means DefaultRegistry.
func NewEditor(categoryID, categoryName string, fields []Field, reg *Registry) *Editor {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Editor{
		categoryID:   categoryID,
		categoryName: categoryName,
		registry:     reg,
		fields:       cloneFields(fields),
	}
}

func (e *Editor) Fields() []Field  { return cloneFields(e.fields) }
func (e *Editor) HasChanges() bool { return e.hasChanges }
func (e *Editor) Len() int         { return len(e.fields) }

func (e *Editor) checkIndex(i int) error {
	if i < 0 || i >= len(e.fields) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(e.fields))
	}
	return nil
}

// AddField appends a blank text field.
func (e *Editor) AddField() {
	e.fields = append(e.fields, Field{Type: TypeText, Value: ""})
	e.hasChanges = true
}

func (e *Editor) RemoveField(i int) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	e.fields = append(e.fields[:i], e.fields[i+1:]...)
	e.hasChanges = true
	return nil
}

// EditField sets one attribute of field i. Editing the label of a field
// without an id also sets the id, once. Labels with no id characters leave
// the id empty for Normalize to fill in at save.
func (e *Editor) EditField(i int, attr Attr, value any) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	f := &e.fields[i]

	switch attr {
	case AttrID:
		s, err := asString(attr, value)
		if err != nil {
			return err
		}
		f.ID = strings.TrimSpace(s)
	case AttrLabel:
		s, err := asString(attr, value)
		if err != nil {
			return err
		}
		f.Label = s
		if f.ID == "" {
			f.ID = slugID(s)
		}
	case AttrType:
		s, err := asString(attr, value)
		if err != nil {
			return err
		}
		t := FieldType(s)
		if !t.Valid() {
			return apperror.NewValidation(fmt.Sprintf("unknown field type %q", s)).WithDetail("index", i)
		}
		if t != f.Type {
			f.Value = EmptyValue(t)
		}
		f.Type = t
	case AttrValue:
		f.Value = value
	case AttrOptions:
		opts, err := asOptions(value)
		if err != nil {
			return err
		}
		f.Options = opts
	case AttrRequired:
		b, ok := value.(bool)
		if !ok {
			return apperror.NewValidation("required must be a boolean").WithDetail("index", i)
		}
		f.Required = b
	case AttrRule:
		s, err := asString(attr, value)
		if err != nil {
			return err
		}
		f.Rule = s
	default:
		return apperror.NewValidation(fmt.Sprintf("unknown field attribute %q", attr))
	}
	e.hasChanges = true
	return nil
}

// MoveField swaps field i with its neighbour. Moving past either end is a no-op.
func (e *Editor) MoveField(i int, dir Direction) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	j := i - 1
	switch dir {
	case Up:
	case Down:
		j = i + 1
	default:
		return apperror.NewValidation(fmt.Sprintf("unknown direction %q", dir))
	}
	if j < 0 || j >= len(e.fields) {
		return nil
	}
	e.fields[i], e.fields[j] = e.fields[j], e.fields[i]
	e.hasChanges = true
	return nil
}

// Reorder moves the field at src to dst, keeping the relative order of the rest.
func (e *Editor) Reorder(src, dst int) error {
	if err := e.checkIndex(src); err != nil {
		return err
	}
	if err := e.checkIndex(dst); err != nil {
		return err
	}
	if src == dst {
		return nil
	}
	e.fields = SpliceMove(e.fields, src, dst)
	e.hasChanges = true
	return nil
}

// SpliceMove removes the item at src and reinserts it at dst in place.
// Indexes must be in range.
func SpliceMove[T any](items []T, src, dst int) []T {
	item := items[src]
	items = append(items[:src], items[src+1:]...)
	items = append(items, item)
	copy(items[dst+1:], items[dst:len(items)-1])
	items[dst] = item
	return items
}

// ResetToDefault replaces every field with the registry defaults of the
// category. It refuses to run unless confirmed.
func (e *Editor) ResetToDefault(confirmed bool) error {
	if !confirmed {
		return ErrResetNotConfirmed
	}
	e.fields = e.registry.Defaults(e.categoryName)
	e.hasChanges = true
	return nil
}

// Save validates and normalizes the fields and hands the template to p.
// Nothing changes in the editor unless p succeeds.
func (e *Editor) Save(ctx context.Context, p Persister) (Template, error) {
	if err := Validate(e.fields); err != nil {
		return Template{}, err
	}
	t := Template{
		CategoryID:   e.categoryID,
		CategoryName: e.categoryName,
		Fields:       Normalize(e.fields),
	}
	if err := p.SaveTemplate(ctx, t); err != nil {
		return Template{}, err
	}
	e.fields = cloneFields(t.Fields)
	e.hasChanges = false
	return t, nil
}

func asString(attr Attr, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", apperror.NewValidation(fmt.Sprintf("%s must be a string", attr))
	}
	return s, nil
}

func asOptions(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), t...), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, o := range t {
			s, ok := o.(string)
			if !ok {
				return nil, apperror.NewValidation("options must be strings")
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return nonBlank(strings.Split(t, ",")), nil
	}
	return nil, apperror.NewValidation("options must be a list of strings")
}
