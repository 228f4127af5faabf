// Package templates holds the static registry of marketing templates and the
// validation rules applied to their customizable fields.
package templates

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dogcoloringbooks/coloringbook/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a template id is not registered.
var ErrNotFound = errors.New("template not found")

const (
	Customizable = "customizable"
	Polaroid     = "polaroid"
)

// FieldKind selects the renderer and validation shape of a field.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindTextarea FieldKind = "textarea"
	KindColor    FieldKind = "color"
	KindSelect   FieldKind = "select"
)

// Field describes one customizable input of a template.
type Field struct {
	ID          string    `json:"id" yaml:"id"`
	Label       string    `json:"label" yaml:"label"`
	Kind        FieldKind `json:"kind" yaml:"kind"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Default     string    `json:"default,omitempty" yaml:"default,omitempty"`
	MaxLength   int       `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Required    bool      `json:"required" yaml:"required"`
	Options     []string  `json:"options,omitempty" yaml:"options,omitempty"`
}

// Descriptor is a named bundle of fields.
type Descriptor struct {
	ID             string  `json:"id" yaml:"id"`
	Name           string  `json:"name" yaml:"name"`
	Icon           string  `json:"icon" yaml:"icon"`
	Description    string  `json:"description" yaml:"description"`
	HasAutoCaption bool    `json:"has_auto_caption" yaml:"has_auto_caption"`
	Fields         []Field `json:"fields" yaml:"fields"`
}

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

var order = []string{Customizable, Polaroid}

var registry = map[string]Descriptor{
	Customizable: {
		ID:             Customizable,
		Name:           "✨ Customizable",
		Icon:           "🎨",
		Description:    "Custom text, colors, and layout - full control",
		HasAutoCaption: false,
		Fields: []Field{
			{ID: "headerLine1", Label: "Header Line 1", Kind: KindText, Placeholder: `e.g., "Get Your"`, Default: "Get Your", MaxLength: 30, Required: true},
			{ID: "headerLine2", Label: "Header Line 2", Kind: KindText, Placeholder: `e.g., "Coloring Page"`, Default: "Coloring Page", MaxLength: 30, Required: true},
			{ID: "arrowText", Label: "Arrow Text", Kind: KindText, Placeholder: `e.g., "Just Color & Share!"`, Default: "Just Color & Share!", MaxLength: 25},
			{ID: "websiteText", Label: "Website/Handle", Kind: KindText, Placeholder: "@yourhandle or yoursite.com", Default: "@justgurian", MaxLength: 30, Required: true},
			{ID: "circleColor", Label: "Accent Color", Kind: KindColor, Default: "#8B5CF6"},
			{ID: "backgroundColor", Label: "Background Color", Kind: KindColor, Default: "#FFFFFF"},
		},
	},
	Polaroid: {
		ID:             Polaroid,
		Name:           "📷 Polaroid",
		Icon:           "📸",
		Description:    "Professional before/after layout - auto-generated",
		HasAutoCaption: true,
	},
}

// Get returns a copy of the registered descriptor.
func Get(id string) (Descriptor, error) {
	d, ok := registry[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d.clone(), nil
}

// All returns every registered descriptor in display order.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(order))
	for _, id := range order {
		out = append(out, registry[id].clone())
	}
	return out
}

// Defaults returns a value map seeded from the template's field defaults.
func Defaults(id string) (models.FieldValues, error) {
	d, err := Get(id)
	if err != nil {
		return nil, err
	}
	values := make(models.FieldValues, len(d.Fields))
	for _, f := range d.Fields {
		values[f.ID] = f.Default
	}
	return values, nil
}

// Payload resolves the string values sent to the composite renderer for each
// field of the template. Unset keys fall back to the field default. Templates
// without fields yield nil.
func Payload(id string, values models.FieldValues) (map[string]string, error) {
	d, err := Get(id)
	if err != nil {
		return nil, err
	}
	if len(d.Fields) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(d.Fields))
	for _, f := range d.Fields {
		if raw, ok := values[f.ID]; ok && raw != nil {
			out[f.ID] = Stringify(raw)
			continue
		}
		out[f.ID] = f.Default
	}
	return out, nil
}

// HasField reports whether the template declares a field with the given id.
func (d Descriptor) HasField(fieldID string) bool {
	for _, f := range d.Fields {
		if f.ID == fieldID {
			return true
		}
	}
	return false
}

func (d Descriptor) clone() Descriptor {
	out := d
	if d.Fields != nil {
		out.Fields = make([]Field, len(d.Fields))
		for i, f := range d.Fields {
			if f.Options != nil {
				f.Options = append([]string(nil), f.Options...)
			}
			out.Fields[i] = f
		}
	}
	return out
}

// FieldError is one violation attached to the field that caused it.
type FieldError struct {
	FieldID string `json:"field_id"`
	Message string `json:"message"`
}

// Result is the outcome of ValidateTemplate.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []string     `json:"errors"`
	Fields []FieldError `json:"fields,omitempty"`
}

// FieldErrors maps each field id to its first violation, the shape the form
// renderer displays.
func (r Result) FieldErrors() map[string]string {
	if len(r.Fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Fields))
	for _, fe := range r.Fields {
		if _, seen := out[fe.FieldID]; !seen {
			out[fe.FieldID] = fe.Message
		}
	}
	return out
}

// ValidateTemplate checks values against every field of the template and
// accumulates all violations in field declaration order.
func ValidateTemplate(id string, values models.FieldValues) (Result, error) {
	d, err := Get(id)
	if err != nil {
		return Result{}, err
	}

	res := Result{Errors: []string{}}
	add := func(f Field, msg string) {
		res.Errors = append(res.Errors, msg)
		res.Fields = append(res.Fields, FieldError{FieldID: f.ID, Message: msg})
	}

	for _, f := range d.Fields {
		raw, present := values[f.ID]
		value := Stringify(raw)
		if !present || raw == nil {
			value = ""
		}

		if f.Required && strings.TrimSpace(value) == "" {
			add(f, fmt.Sprintf("%s is required", f.Label))
		}
		if f.MaxLength > 0 && len([]rune(value)) > f.MaxLength {
			add(f, fmt.Sprintf("%s exceeds %d characters", f.Label, f.MaxLength))
		}
		if f.Kind == KindColor && value != "" && !colorPattern.MatchString(value) {
			add(f, fmt.Sprintf("%s is not a valid color", f.Label))
		}
	}

	res.Valid = len(res.Errors) == 0
	return res, nil
}

// Stringify renders a field value the way it is sent and measured.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// MarshalYAML encodes the whole registry, used by the templates command.
func MarshalYAML() ([]byte, error) {
	doc := struct {
		Templates []Descriptor `yaml:"templates"`
	}{Templates: All()}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal templates: %w", err)
	}
	return out, nil
}
