package assetform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"setflow/internal/core/entity"
	"setflow/internal/domain/depreciation"
	"setflow/internal/domain/spectemplate"
	"setflow/pkg/logger"
)

// Keys of the nested maps inside Data.
const (
	KeySpecifications       = "specifications"
	KeyCustomSpecifications = "customSpecifications"
	KeyCategoryID           = "categoryId"
	KeyImageURL             = "imageUrl"
	KeyAttachments          = "attachments"
)

// CustomField is a free-form name/value pair added to one asset.
type CustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Upload is a file waiting to be stored.
type Upload struct {
	Name string
	Size int64
	Type string
	Open func() (io.ReadCloser, error)
}

// Form is the state of one asset being created or edited. It has a single
// owner and is not safe for concurrent use.
type Form struct {
	cfg Config

	data   map[string]any
	specs  map[string]any
	custom []CustomField
	flat   map[string]any
	dupes  []string

	fields       []spectemplate.Field
	groups       []Group
	depreciation *depreciation.Settings

	image       *Upload
	attachments []*Upload

	state   State
	lastErr error
}

// Config wires a Form to its collaborators. Source may be nil when the
// caller binds templates itself.
type Config struct {
	Source CategorySource
	Images ImageUploader
	Files  FileUploader
	Submit SubmitFunc
	Alert  Alerter
	// OnState is called on every state change.
	OnState func(State)
}

// New starts a form from existing asset data, or an empty map for a new
// asset. Nested specifications and customSpecifications are split out.
func New(cfg Config, initial map[string]any) *Form {
	f := &Form{
		cfg:   cfg,
		data:  make(map[string]any, len(initial)),
		specs: map[string]any{},
		flat:  map[string]any{},
		state: Idle,
	}
	for k, v := range initial {
		switch k {
		case KeySpecifications:
			if m, ok := v.(map[string]any); ok {
				f.specs = deepCopyMap(m)
			}
		case KeyCustomSpecifications:
			if m, ok := v.(map[string]any); ok {
				names := make([]string, 0, len(m))
				for n := range m {
					names = append(names, n)
				}
				sort.Strings(names)
				for _, n := range names {
					f.custom = append(f.custom, CustomField{Name: n, Value: stringify(m[n])})
				}
			}
		default:
			f.data[k] = deepCopy(v)
		}
	}
	f.flatten()
	return f
}

// Load fetches the category groups and binds the current category, if any.
// Fetch failures degrade to empty lists.
func (f *Form) Load(ctx context.Context) {
	if f.cfg.Source != nil {
		groups, err := f.cfg.Source.Groups(ctx)
		if err != nil {
			logger.Warn(ctx, "category groups unavailable", "error", err)
			groups = nil
		}
		f.groups = groups
	}
	if id, _ := f.data[KeyCategoryID].(string); id != "" {
		f.SelectCategory(ctx, id)
	}
}

// SetField sets a core attribute. Checkbox inputs are coerced to bool.
func (f *Form) SetField(name string, value any, checkbox bool) error {
	switch name {
	case KeySpecifications, KeyCustomSpecifications:
		return fmt.Errorf("%s cannot be set as a field", name)
	case "":
		return fmt.Errorf("field name is empty")
	}
	if checkbox {
		value = toBool(value)
	}
	f.data[name] = value
	return nil
}

// SelectCategory switches the form to categoryID and rebinds the template.
// Values entered for fields of the previous category stay in the
// specifications even though they are no longer shown.
func (f *Form) SelectCategory(ctx context.Context, categoryID string) {
	f.data[KeyCategoryID] = categoryID
	if f.cfg.Source == nil {
		return
	}

	template, err := f.cfg.Source.Template(ctx, categoryID)
	if err != nil {
		logger.Warn(ctx, "category template unavailable", "category_id", categoryID, "error", err)
		template = nil
	}
	f.BindTemplate(template)

	settings, err := f.cfg.Source.Depreciation(ctx, categoryID)
	if err != nil {
		logger.Warn(ctx, "depreciation settings unavailable", "category_id", categoryID, "error", err)
		settings = nil
	}
	f.depreciation = settings
}

// BindTemplate binds a template that was loaded elsewhere.
func (f *Form) BindTemplate(template []spectemplate.Field) {
	f.fields, f.specs = Bind(template, f.specs)
}

// SetSpecField updates a specification value and the rendered field.
func (f *Form) SetSpecField(id string, value any) {
	for i := range f.fields {
		if f.fields[i].ID == id {
			f.fields[i].Value = value
		}
	}
	f.specs[id] = value
}

func (f *Form) AddCustomField() {
	f.custom = append(f.custom, CustomField{})
	f.flatten()
}

func (f *Form) EditCustomField(i int, name, value string) error {
	if i < 0 || i >= len(f.custom) {
		return fmt.Errorf("custom field %d out of range", i)
	}
	f.custom[i] = CustomField{Name: name, Value: value}
	f.flatten()
	return nil
}

func (f *Form) RemoveCustomField(i int) error {
	if i < 0 || i >= len(f.custom) {
		return fmt.Errorf("custom field %d out of range", i)
	}
	f.custom = append(f.custom[:i], f.custom[i+1:]...)
	f.flatten()
	return nil
}

// ClearCustomFields drops every custom field.
func (f *Form) ClearCustomFields() {
	f.custom = nil
	f.flatten()
}

// flatten rebuilds the name -> value map. A later field with the same name
// overwrites an earlier one; the shadowed names are kept in dupes.
func (f *Form) flatten() {
	flat := make(map[string]any, len(f.custom))
	seen := make(map[string]int, len(f.custom))
	var dupes []string
	for _, c := range f.custom {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		seen[name]++
		if seen[name] == 2 {
			dupes = append(dupes, name)
		}
		flat[name] = c.Value
	}
	f.flat = flat
	f.dupes = dupes
}

func (f *Form) CustomFields() []CustomField {
	return append([]CustomField(nil), f.custom...)
}

// DuplicateCustomNames lists custom field names used more than once.
func (f *Form) DuplicateCustomNames() []string {
	return append([]string(nil), f.dupes...)
}

// SetImage replaces the pending image. nil clears it.
func (f *Form) SetImage(u *Upload) { f.image = u }

func (f *Form) AddAttachment(u *Upload) {
	if u != nil {
		f.attachments = append(f.attachments, u)
	}
}

func (f *Form) RemoveAttachment(i int) error {
	if i < 0 || i >= len(f.attachments) {
		return fmt.Errorf("attachment %d out of range", i)
	}
	f.attachments = append(f.attachments[:i], f.attachments[i+1:]...)
	return nil
}

func (f *Form) PendingAttachments() int { return len(f.attachments) }

// Fields returns the rendered specification fields.
func (f *Form) Fields() []spectemplate.Field {
	out := make([]spectemplate.Field, len(f.fields))
	copy(out, f.fields)
	return out
}

// Data returns a deep copy of the form data with the nested
// specifications and customSpecifications maps.
func (f *Form) Data() map[string]any {
	out := deepCopyMap(f.data)
	out[KeySpecifications] = deepCopyMap(f.specs)
	out[KeyCustomSpecifications] = deepCopyMap(f.flat)
	return out
}

func (f *Form) Groups() []Group { return append([]Group(nil), f.groups...) }

func (f *Form) DepreciationSettings() *depreciation.Settings {
	if f.depreciation == nil {
		return nil
	}
	s := *f.depreciation
	return &s
}

func (f *Form) State() State     { return f.state }
func (f *Form) LastError() error { return f.lastErr }

// existingAttachments reads descriptors already stored on the asset.
func (f *Form) existingAttachments() ([]entity.FileDescriptor, error) {
	switch v := f.data[KeyAttachments].(type) {
	case nil:
		return nil, nil
	case []entity.FileDescriptor:
		return append([]entity.FileDescriptor(nil), v...), nil
	case entity.Files:
		return append([]entity.FileDescriptor(nil), v...), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("attachments: %w", err)
		}
		var out []entity.FileDescriptor
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("attachments: %w", err)
		}
		return out, nil
	}
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "on", "yes":
			return true
		}
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	case nil:
		return false
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return false
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	}
	return fmt.Sprint(v)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []entity.FileDescriptor:
		return append([]entity.FileDescriptor(nil), t...)
	case entity.Files:
		return append(entity.Files(nil), t...)
	}
	return v
}
