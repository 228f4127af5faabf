package handlers

import (
	"net/http"

	"github.com/dogcoloringbooks/coloringbook/internal/shell"
)

func (h *Handler) HandleShell(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.shell.State())
}

func (h *Handler) HandleShellTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tab shell.Tab `json:"tab"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.shell.SetTab(req.Tab); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, h.shell.State())
}

func (h *Handler) HandleShellDarkMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.shell.SetDarkMode(req.Enabled); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, h.shell.State())
}
