package handlers

import (
	"net/http"

	"github.com/dogcoloringbooks/coloringbook/internal/models"
	"github.com/dogcoloringbooks/coloringbook/internal/single"
)

type sessionResponse struct {
	SessionID string              `json:"session_id"`
	Result    models.SingleResult `json:"result"`
	Loading   []models.ErrorTag   `json:"loading,omitempty"`
}

func (h *Handler) writeSession(w http.ResponseWriter, id string, c *single.Controller) {
	h.writeJSON(w, sessionResponse{SessionID: id, Result: c.Snapshot(), Loading: c.Loading()})
}

// withSession resolves the {id} path value before calling fn.
func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, fn func(id string, c *single.Controller) error) {
	id := r.PathValue("id")
	c, ok := h.getSessionOrError(w, id)
	if !ok {
		return
	}
	if err := fn(id, c); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeSession(w, id, c)
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, c := h.shell.NewSingle()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	h.writeSession(w, id, c)
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(string, *single.Controller) error { return nil })
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.getSessionOrError(w, id); !ok {
		return
	}
	h.shell.EndSingle(id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSingleColoring accepts a multipart form with the photo in "file" plus
// "dogName" and an optional "handle".
func (h *Handler) HandleSingleColoring(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ string, c *single.Controller) error {
		img, err := h.readPhoto(r, "file")
		if err != nil {
			return err
		}
		return c.GenerateColoringPage(r.Context(), r.FormValue("dogName"), img, r.FormValue("handle"))
	})
}

func (h *Handler) HandleSingleContinue(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ string, c *single.Controller) error {
		return c.Continue()
	})
}

type templateRequest struct {
	Template string             `json:"template"`
	Fields   models.FieldValues `json:"fields"`
}

// HandleSingleTemplate selects the template and applies any field edits.
func (h *Handler) HandleSingleTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	h.withSession(w, r, func(_ string, c *single.Controller) error {
		if req.Template != "" {
			if err := c.SelectTemplate(req.Template); err != nil {
				return err
			}
		}
		for id, v := range req.Fields {
			if err := c.SetField(id, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// HandleSingleComposite generates the composite. An empty body uses the
// session's current template and fields.
func (h *Handler) HandleSingleComposite(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if r.ContentLength != 0 && !h.decodeJSON(w, r, &req) {
		return
	}
	h.withSession(w, r, func(_ string, c *single.Controller) error {
		return c.GenerateComposite(r.Context(), req.Template, req.Fields)
	})
}

func (h *Handler) HandleSinglePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caption string `json:"caption"`
	}
	if r.ContentLength != 0 && !h.decodeJSON(w, r, &req) {
		return
	}
	h.withSession(w, r, func(_ string, c *single.Controller) error {
		return c.PostComposite(r.Context(), req.Caption)
	})
}

func (h *Handler) HandleSingleRetry(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ string, c *single.Controller) error {
		return c.RetryLastAction(r.Context())
	})
}

func (h *Handler) HandleSingleDismiss(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ string, c *single.Controller) error {
		c.DismissError()
		return nil
	})
}

func (h *Handler) HandleSingleReset(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ string, c *single.Controller) error {
		c.Reset()
		return nil
	})
}
