package handlers

import (
	"log/slog"
	"net/http"

	"github.com/dogcoloringbooks/coloringbook/internal/form"
	"github.com/dogcoloringbooks/coloringbook/internal/models"
	"github.com/dogcoloringbooks/coloringbook/internal/templates"
)

func (h *Handler) HandleTemplates(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, templates.All())
}

func (h *Handler) HandleTemplate(w http.ResponseWriter, r *http.Request) {
	d, err := templates.Get(r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, d)
}

func (h *Handler) HandleValidateTemplate(w http.ResponseWriter, r *http.Request) {
	var values models.FieldValues
	if !h.decodeJSON(w, r, &values) {
		return
	}
	res, err := templates.ValidateTemplate(r.PathValue("id"), values)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, res)
}

// HandleTemplateForm renders the field form as an HTML fragment. Values come
// from ?session=<id> or ?scope=bulk, and from defaults otherwise. ?validate=1
// adds the messages beneath each invalid field.
func (h *Handler) HandleTemplateForm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := templates.Get(id)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	var values models.FieldValues
	switch {
	case r.URL.Query().Get("session") != "":
		c, ok := h.getSessionOrError(w, r.URL.Query().Get("session"))
		if !ok {
			return
		}
		values = c.Snapshot().TemplateFields
	case r.URL.Query().Get("scope") == "bulk":
		_, values = h.shell.Bulk().Template()
	default:
		values, _ = templates.Defaults(id)
	}

	var errs map[string]string
	if r.URL.Query().Get("validate") == "1" {
		res, err := templates.ValidateTemplate(id, values)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		errs = res.FieldErrors()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := form.RenderHTML(w, d.Fields, values, errs); err != nil {
		slog.Error("Unable to render form", "template", id, "err", err)
	}
}
