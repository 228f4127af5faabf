package handlers

import (
	"net/http"

	"github.com/dogcoloringbooks/coloringbook/internal/bulk"
	"github.com/dogcoloringbooks/coloringbook/internal/models"
)

type bulkResponse struct {
	Items    []models.WorkItem  `json:"items"`
	Counts   models.Counts      `json:"counts"`
	Template string             `json:"template"`
	Fields   models.FieldValues `json:"fields"`
	Input    string             `json:"input"`
	Running  []string           `json:"running,omitempty"`
}

type passResponse struct {
	bulk.PassResult
	Counts models.Counts `json:"counts"`
}

func (h *Handler) HandleBulk(w http.ResponseWriter, r *http.Request) {
	c := h.shell.Bulk()
	templateID, fields := c.Template()
	h.writeJSON(w, bulkResponse{
		Items:    c.Items(),
		Counts:   c.Counts(),
		Template: templateID,
		Fields:   fields,
		Input:    c.Input(),
		Running:  c.Running(),
	})
}

// HandleBulkDogs adds dogs from a comma separated list. An empty list is not
// an error; nothing is created.
func (h *Handler) HandleBulkDogs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Names string `json:"names"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	c := h.shell.Bulk()
	c.SetInput(req.Names)
	created := c.SubmitInput()
	if created == nil {
		created = []models.WorkItem{}
	}
	h.writeJSON(w, map[string]any{"items": created, "input": c.Input()})
}

// HandleBulkPhotos creates one item per file uploaded under "files".
func (h *Handler) HandleBulkPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := h.readPhotos(r, "files")
	if err != nil {
		h.writeErr(w, err)
		return
	}
	created, err := h.shell.Bulk().AddPhotos(photos)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, map[string]any{"items": created})
}

// HandleBulkAuto asks the automation backend to invent count dogs.
func (h *Handler) HandleBulkAuto(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	res, err := h.shell.Bulk().AutoGenerate(r.Context(), req.Count)
	h.writePass(w, res, err)
}

func (h *Handler) writePass(w http.ResponseWriter, res bulk.PassResult, err error) {
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, passResponse{PassResult: res, Counts: h.shell.Bulk().Counts()})
}

// The pass handlers run under the request context, so a client that goes
// away stops the pass after the item in flight.

func (h *Handler) HandleBulkColoring(w http.ResponseWriter, r *http.Request) {
	res, err := h.shell.Bulk().GenerateAllColoringPages(r.Context())
	h.writePass(w, res, err)
}

func (h *Handler) HandleBulkComposites(w http.ResponseWriter, r *http.Request) {
	res, err := h.shell.Bulk().GenerateAllComposites(r.Context())
	h.writePass(w, res, err)
}

func (h *Handler) HandleBulkApprove(w http.ResponseWriter, r *http.Request) {
	h.writePass(w, h.shell.Bulk().ApproveAll(), nil)
}

func (h *Handler) HandleBulkSchedule(w http.ResponseWriter, r *http.Request) {
	res, err := h.shell.Bulk().ScheduleAll(r.Context())
	h.writePass(w, res, err)
}

func (h *Handler) HandleBulkTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	c := h.shell.Bulk()
	if req.Template != "" {
		if err := c.SelectTemplate(req.Template); err != nil {
			h.writeErr(w, err)
			return
		}
	}
	for id, v := range req.Fields {
		if err := c.SetField(id, v); err != nil {
			h.writeErr(w, err)
			return
		}
	}
	templateID, fields := c.Template()
	h.writeJSON(w, map[string]any{"template": templateID, "fields": fields})
}

func (h *Handler) HandleBulkCaption(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caption string `json:"caption"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	item, err := h.shell.Bulk().UpdateCaption(r.PathValue("id"), req.Caption)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, item)
}

func (h *Handler) HandleBulkRetry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stage string `json:"stage"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	stage, err := models.ParseStage(req.Stage)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	item, err := h.shell.Bulk().RetryItem(r.PathValue("id"), stage)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, item)
}

func (h *Handler) HandleBulkApproveItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.shell.Bulk().ApproveItem(r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, item)
}

func (h *Handler) HandleBulkRejectItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.shell.Bulk().RejectItem(r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, item)
}

func (h *Handler) HandleBulkRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.shell.Bulk().RemoveItem(r.PathValue("id")); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
