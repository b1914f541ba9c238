package models

import "sync"

// FieldType identifies the editor widget and value shape of a field.
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeTextarea    FieldType = "textarea"
	FieldTypeRichText    FieldType = "richtext"
	FieldTypeNumber      FieldType = "number"
	FieldTypeDate        FieldType = "date"
	FieldTypeImage       FieldType = "image"
	FieldTypeLink        FieldType = "link"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiSelect FieldType = "multiselect"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeColor       FieldType = "color"
	FieldTypeSlider      FieldType = "slider"
	FieldTypeRepeater    FieldType = "repeater"
)

var builtinFieldTypes = map[FieldType]struct{}{
	FieldTypeText:        {},
	FieldTypeTextarea:    {},
	FieldTypeRichText:    {},
	FieldTypeNumber:      {},
	FieldTypeDate:        {},
	FieldTypeImage:       {},
	FieldTypeLink:        {},
	FieldTypeSelect:      {},
	FieldTypeMultiSelect: {},
	FieldTypeBoolean:     {},
	FieldTypeColor:       {},
	FieldTypeSlider:      {},
	FieldTypeRepeater:    {},
}

// TypeRegistry extends the builtin field type set with backend-defined types.
// Types that are neither builtin nor registered are treated as pass-through:
// their values survive merge and persistence untouched.
type TypeRegistry struct {
	mu    sync.RWMutex
	extra map[FieldType]struct{}
}

// NewTypeRegistry creates a registry seeded with backend-supplied extension types.
func NewTypeRegistry(extensions ...FieldType) *TypeRegistry {
	r := &TypeRegistry{extra: make(map[FieldType]struct{})}
	for _, t := range extensions {
		r.extra[t] = struct{}{}
	}
	return r
}

// Register adds an extension type at runtime.
func (r *TypeRegistry) Register(t FieldType) {
	r.mu.Lock()
	r.extra[t] = struct{}{}
	r.mu.Unlock()
}

// Builtin reports whether t is one of the locally modeled field types.
func (r *TypeRegistry) Builtin(t FieldType) bool {
	_, ok := builtinFieldTypes[t]
	return ok
}

// Known reports whether t is builtin or a registered extension.
func (r *TypeRegistry) Known(t FieldType) bool {
	if _, ok := builtinFieldTypes[t]; ok {
		return true
	}
	r.mu.RLock()
	_, ok := r.extra[t]
	r.mu.RUnlock()
	return ok
}

// SelectOption is one entry of a select or multiselect field.
type SelectOption struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
}

// ShowWhen is a conditional-visibility predicate over a sibling field.
// It is advisory display metadata and never gates merge or persistence.
type ShowWhen struct {
	Field    string      `yaml:"field" json:"field"`
	Operator string      `yaml:"operator" json:"operator"` // equals, notEquals, isEmpty, notEmpty
	Value    interface{} `yaml:"value,omitempty" json:"value,omitempty"`
}

// FieldValidation holds length/range/pattern constraints. Advisory at this
// layer; enforcement belongs to the editing UI.
type FieldValidation struct {
	MinLength *int     `yaml:"minLength,omitempty" json:"minLength,omitempty"`
	MaxLength *int     `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
	Min       *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// FieldDefinition describes one editable field of a resource.
type FieldDefinition struct {
	Type         FieldType        `yaml:"type" json:"type"`
	Label        string           `yaml:"label,omitempty" json:"label,omitempty"`
	Placeholder  string           `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	HelpText     string           `yaml:"helpText,omitempty" json:"helpText,omitempty"`
	Required     bool             `yaml:"required,omitempty" json:"required,omitempty"`
	DefaultValue interface{}      `yaml:"default,omitempty" json:"default,omitempty"`
	Group        string           `yaml:"group,omitempty" json:"group,omitempty"`
	ShowWhen     *ShowWhen        `yaml:"showWhen,omitempty" json:"showWhen,omitempty"`
	Validation   *FieldValidation `yaml:"validation,omitempty" json:"validation,omitempty"`

	// Select / multiselect only.
	Options []SelectOption `yaml:"options,omitempty" json:"options,omitempty"`

	// Repeater only.
	ItemSchema FieldSchema `yaml:"schema,omitempty" json:"schema,omitempty"`
	MinItems   int         `yaml:"minItems,omitempty" json:"minItems,omitempty"`
	MaxItems   int         `yaml:"maxItems,omitempty" json:"maxItems,omitempty"` // 0 means unbounded
}

// FieldSchema maps field keys to their definitions. Keys are unique within a
// scope by construction (map semantics).
type FieldSchema map[string]FieldDefinition
