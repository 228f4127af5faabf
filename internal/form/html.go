// Package form renders template fields bound to a value map, either as an HTML
// fragment or as a sequence of terminal prompts. It never validates.
package form

import (
	"fmt"
	"html"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dogcoloringbooks/coloringbook/internal/models"
	"github.com/dogcoloringbooks/coloringbook/internal/templates"
)

// Value resolves the current value of a field: the bound value when present,
// then the field default, then "".
func Value(f templates.Field, values models.FieldValues) string {
	if v, ok := values[f.ID]; ok && v != nil {
		return templates.Stringify(v)
	}
	return f.Default
}

// Counter is the "{len}/{max}" indicator shown under bounded text inputs.
func Counter(f templates.Field, value string) string {
	return fmt.Sprintf("%d/%d", utf8.RuneCountInString(value), f.MaxLength)
}

// RenderHTML writes one control per field. An empty field list writes nothing.
// errs maps field ids to the message shown beneath that field.
func RenderHTML(w io.Writer, fields []templates.Field, values models.FieldValues, errs map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(`<div class="template-fields">`)
	for _, f := range fields {
		renderField(&b, f, Value(f, values), errs[f.ID])
	}
	b.WriteString(`</div>`)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write form: %w", err)
	}
	return nil
}

func renderField(b *strings.Builder, f templates.Field, value, errMsg string) {
	id := html.EscapeString("field-" + f.ID)
	name := html.EscapeString(f.ID)

	b.WriteString(`<div class="field" data-field="`)
	b.WriteString(name)
	b.WriteString(`">`)

	b.WriteString(`<label for="`)
	b.WriteString(id)
	b.WriteString(`">`)
	b.WriteString(html.EscapeString(f.Label))
	if f.Required {
		b.WriteString(` <span class="required">*</span>`)
	}
	b.WriteString(`</label>`)

	switch f.Kind {
	case templates.KindTextarea:
		b.WriteString(`<textarea id="`)
		b.WriteString(id)
		b.WriteString(`" name="`)
		b.WriteString(name)
		b.WriteString(`"`)
		writeTextAttrs(b, f)
		b.WriteString(`>`)
		b.WriteString(html.EscapeString(value))
		b.WriteString(`</textarea>`)
		writeCounter(b, f, value)
	case templates.KindColor:
		b.WriteString(`<div class="color-input">`)
		b.WriteString(`<input type="color" id="`)
		b.WriteString(id)
		b.WriteString(`" name="`)
		b.WriteString(name)
		b.WriteString(`" value="`)
		b.WriteString(html.EscapeString(value))
		b.WriteString(`">`)
		b.WriteString(`<span class="color-value">`)
		b.WriteString(html.EscapeString(value))
		b.WriteString(`</span></div>`)
	case templates.KindSelect:
		b.WriteString(`<select id="`)
		b.WriteString(id)
		b.WriteString(`" name="`)
		b.WriteString(name)
		b.WriteString(`">`)
		b.WriteString(`<option value="">`)
		placeholder := f.Placeholder
		if placeholder == "" {
			placeholder = "Select " + f.Label
		}
		b.WriteString(html.EscapeString(placeholder))
		b.WriteString(`</option>`)
		for _, opt := range f.Options {
			b.WriteString(`<option value="`)
			b.WriteString(html.EscapeString(opt))
			b.WriteString(`"`)
			if opt == value {
				b.WriteString(` selected`)
			}
			b.WriteString(`>`)
			b.WriteString(html.EscapeString(opt))
			b.WriteString(`</option>`)
		}
		b.WriteString(`</select>`)
	default:
		b.WriteString(`<input type="text" id="`)
		b.WriteString(id)
		b.WriteString(`" name="`)
		b.WriteString(name)
		b.WriteString(`" value="`)
		b.WriteString(html.EscapeString(value))
		b.WriteString(`"`)
		writeTextAttrs(b, f)
		b.WriteString(`>`)
		writeCounter(b, f, value)
	}

	if errMsg != "" {
		b.WriteString(`<p class="field-error" role="alert">`)
		b.WriteString(html.EscapeString(errMsg))
		b.WriteString(`</p>`)
	}
	b.WriteString(`</div>`)
}

func writeTextAttrs(b *strings.Builder, f templates.Field) {
	if f.Placeholder != "" {
		b.WriteString(` placeholder="`)
		b.WriteString(html.EscapeString(f.Placeholder))
		b.WriteString(`"`)
	}
	if f.MaxLength > 0 {
		fmt.Fprintf(b, ` maxlength="%d"`, f.MaxLength)
	}
}

func writeCounter(b *strings.Builder, f templates.Field, value string) {
	if f.MaxLength <= 0 {
		return
	}
	b.WriteString(`<span class="char-count">`)
	b.WriteString(Counter(f, value))
	b.WriteString(`</span>`)
}
