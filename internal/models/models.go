package models

import (
	"errors"
	"time"
)

// ErrValidation marks local input failures that never reach the network.
var ErrValidation = errors.New("validation failed")

// FieldValues holds user-edited template values keyed by field id.
// Values are strings, numbers or booleans.
type FieldValues map[string]any

// Clone returns a shallow copy safe to hand to another goroutine.
func (v FieldValues) Clone() FieldValues {
	out := make(FieldValues, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// ItemStatus is the coloring pipeline state of a bulk WorkItem.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusGenerating ItemStatus = "generating"
	StatusReady      ItemStatus = "ready"
	StatusApproved   ItemStatus = "approved"
	StatusScheduled  ItemStatus = "scheduled"
	StatusFailed     ItemStatus = "failed"
	StatusRejected   ItemStatus = "rejected"
)

// CompositeStatus is the composite pipeline state of a bulk WorkItem. The zero
// value means no composite has been attempted yet.
type CompositeStatus string

const (
	CompositeNone       CompositeStatus = ""
	CompositePending    CompositeStatus = "pending"
	CompositeGenerating CompositeStatus = "generating"
	CompositeReady      CompositeStatus = "ready"
	CompositeFailed     CompositeStatus = "failed"
)

// Stage names one of the three network phases of the pipeline.
type Stage string

const (
	StageColoring  Stage = "coloring"
	StageComposite Stage = "composite"
	StageSchedule  Stage = "schedule"
)

// ParseStage maps user input to a Stage.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageColoring, StageComposite, StageSchedule:
		return Stage(s), nil
	default:
		return "", errors.New("unknown stage: " + s)
	}
}

// WorkItem is one dog tracked through the bulk pipeline.
type WorkItem struct {
	ID                   string          `json:"id"`
	DogName              string          `json:"dog_name"`
	Caption              string          `json:"caption"`
	ImageData            string          `json:"-"`
	HasPhoto             bool            `json:"has_photo"`
	OriginalImageURL     string          `json:"original_image_url,omitempty"`
	GeneratedImageURL    string          `json:"generated_image_url,omitempty"`
	CompositeImageURL    string          `json:"composite_image_url,omitempty"`
	CompositeImageBase64 string          `json:"composite_image_base64,omitempty"`
	CompositeMimeType    string          `json:"composite_mime_type,omitempty"`
	Status               ItemStatus      `json:"status"`
	CompositeStatus      CompositeStatus `json:"composite_status,omitempty"`
	Error                string          `json:"error,omitempty"`
	FailedStage          Stage           `json:"failed_stage,omitempty"`
	ScheduledTime        *time.Time      `json:"scheduled_time,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// HasSourceImages reports whether the coloring stage produced both URLs.
func (w WorkItem) HasSourceImages() bool {
	return w.OriginalImageURL != "" && w.GeneratedImageURL != ""
}

// HasComposite reports whether a composite image exists in any form.
func (w WorkItem) HasComposite() bool {
	return w.CompositeImageURL != "" || w.CompositeImageBase64 != ""
}

// Step is the single-item workflow position.
type Step string

const (
	StepUpload    Step = "upload"
	StepColoring  Step = "coloring"
	StepTemplate  Step = "template"
	StepComposite Step = "composite"
)

// Rank orders steps so callers can compare progress.
func (s Step) Rank() int {
	switch s {
	case StepColoring:
		return 1
	case StepTemplate:
		return 2
	case StepComposite:
		return 3
	default:
		return 0
	}
}

// ErrorTag routes a single-mode error to the operation that produced it.
type ErrorTag string

const (
	TagColoring  ErrorTag = "coloring"
	TagComposite ErrorTag = "composite"
	TagInstagram ErrorTag = "instagram"
)

// StageError is a user-facing error banner.
type StageError struct {
	Tag     ErrorTag  `json:"tag"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// SingleResult is the state of one single-mode session.
type SingleResult struct {
	DogName              string      `json:"dog_name"`
	InstagramHandle      string      `json:"instagram_handle,omitempty"`
	OriginalImageURL     string      `json:"original_image_url,omitempty"`
	GeneratedImageURL    string      `json:"generated_image_url,omitempty"`
	CompositeImageURL    string      `json:"composite_image_url,omitempty"`
	CompositeImageBase64 string      `json:"composite_image_base64,omitempty"`
	CompositeMimeType    string      `json:"composite_mime_type,omitempty"`
	Caption              string      `json:"caption,omitempty"`
	SelectedTemplate     string      `json:"selected_template"`
	TemplateFields       FieldValues `json:"template_fields"`
	Step                 Step        `json:"step"`
	Error                *StageError `json:"error,omitempty"`
	Success              string      `json:"success,omitempty"`
}

// HasSourceImages reports whether the coloring stage produced both URLs.
func (r SingleResult) HasSourceImages() bool {
	return r.OriginalImageURL != "" && r.GeneratedImageURL != ""
}

// HasComposite reports whether a composite image exists in any form.
func (r SingleResult) HasComposite() bool {
	return r.CompositeImageURL != "" || r.CompositeImageBase64 != ""
}

// Counts are the derived bulk aggregates.
type Counts struct {
	Total     int `json:"total"`
	Ready     int `json:"ready"`
	Approved  int `json:"approved"`
	Scheduled int `json:"scheduled"`
	Failed    int `json:"failed"`
	Rejected  int `json:"rejected"`
}
