package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/dogcoloringbooks/coloringbook/internal/imagedata"
)

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// HandleCompositeDownload serves the composite as an attachment. Inline
// base64 is decoded; a URL-only composite is redirected to.
func (h *Handler) HandleCompositeDownload(w http.ResponseWriter, r *http.Request) {
	c, ok := h.getSessionOrError(w, r.PathValue("id"))
	if !ok {
		return
	}
	res := c.Snapshot()
	if !res.HasComposite() {
		h.writeError(w, "No composite to download", http.StatusNotFound)
		return
	}

	if res.CompositeImageBase64 == "" {
		http.Redirect(w, r, res.CompositeImageURL, http.StatusFound)
		return
	}

	data, err := imagedata.Decode(res.CompositeImageBase64)
	if err != nil {
		h.writeError(w, "Failed to decode composite: "+err.Error(), http.StatusInternalServerError)
		return
	}

	mimeType := res.CompositeMimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	ext := "png"
	if _, sub, ok := strings.Cut(mimeType, "/"); ok && sub != "" {
		ext = sub
	}
	name := unsafeFilename.ReplaceAllString(res.DogName, "_")
	if name == "" {
		name = "dog"
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-coloring-page.%s"`, name, ext))
	if _, err := w.Write(data); err != nil {
		slog.Error("Unable to write composite", "err", err)
	}
}
