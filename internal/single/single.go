// Package single drives one dog photo through coloring page, template and
// composite generation, then posting.
package single

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dogcoloringbooks/coloringbook/internal/imagedata"
	"github.com/dogcoloringbooks/coloringbook/internal/models"
	"github.com/dogcoloringbooks/coloringbook/internal/templates"
	"github.com/dogcoloringbooks/coloringbook/internal/webhook"
)

var (
	// ErrBusy is returned when the same stage is already in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrWrongStep is returned when an operation is not available at the current step.
	ErrWrongStep = errors.New("operation not available at this step")
	// ErrNothingToRetry is returned by RetryLastAction when nothing has failed.
	ErrNothingToRetry = errors.New("no failed action to retry")
	// ErrReset is returned when the session was reset while the call was in
	// flight; its result was discarded.
	ErrReset = errors.New("session was reset; result discarded")
)

// DefaultErrorTTL is how long an error banner stays up.
const DefaultErrorTTL = 10 * time.Second

// Backend is the subset of the webhook client the controller needs.
type Backend interface {
	GenerateColoringPage(ctx context.Context, req webhook.ColoringRequest) (webhook.ColoringResult, error)
	GenerateComposite(ctx context.Context, req webhook.CompositeRequest) (webhook.CompositeResult, error)
	PostComposite(ctx context.Context, req webhook.PostRequest) error
}

type coloringArgs struct {
	dogName string
	image   imagedata.Image
	handle  string
}

type compositeArgs struct {
	templateID string
	values     models.FieldValues
}

// Controller holds the state of one single-mode session.
type Controller struct {
	backend  Backend
	errorTTL time.Duration
	now      func() time.Time

	mu         sync.Mutex
	result     models.SingleResult
	loading    map[models.ErrorTag]bool
	generation int
	clearTimer *time.Timer

	lastColoring  coloringArgs
	lastComposite compositeArgs
	lastCaption   string
	lastFailed    models.ErrorTag
}

// Option configures a Controller.
type Option func(*Controller)

// WithErrorTTL overrides how long errors stay visible. Zero keeps them until
// dismissed.
func WithErrorTTL(d time.Duration) Option {
	return func(c *Controller) { c.errorTTL = d }
}

// WithClock replaces time.Now for error timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller at the upload step.
func New(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		errorTTL: DefaultErrorTTL,
		now:      time.Now,
		loading:  make(map[models.ErrorTag]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.result = initialResult()
	return c
}

func initialResult() models.SingleResult {
	values, _ := templates.Defaults(templates.Customizable)
	return models.SingleResult{
		SelectedTemplate: templates.Customizable,
		TemplateFields:   values,
		Step:             models.StepUpload,
	}
}

// DeriveStep is the step implied by which result fields are populated. It
// cannot tell coloring from template since continuing is free.
func DeriveStep(r models.SingleResult) models.Step {
	switch {
	case r.HasSourceImages() && r.HasComposite():
		return models.StepComposite
	case r.HasSourceImages():
		return models.StepColoring
	default:
		return models.StepUpload
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() models.SingleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() models.SingleResult {
	out := c.result
	out.TemplateFields = c.result.TemplateFields.Clone()
	if c.result.Error != nil {
		e := *c.result.Error
		out.Error = &e
	}
	return out
}

// Loading reports which stages are in flight.
func (c *Controller) Loading() []models.ErrorTag {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.ErrorTag
	for _, tag := range []models.ErrorTag{models.TagColoring, models.TagComposite, models.TagInstagram} {
		if c.loading[tag] {
			out = append(out, tag)
		}
	}
	return out
}

// begin marks a stage in flight and returns the generation it started in.
func (c *Controller) begin(tag models.ErrorTag) (int, error) {
	if c.loading[tag] {
		return 0, ErrBusy
	}
	c.loading[tag] = true
	return c.generation, nil
}

// finish clears the loading flag and reports whether the session is still the
// one the stage started in.
func (c *Controller) finish(tag models.ErrorTag, gen int) bool {
	if gen != c.generation {
		return false
	}
	c.loading[tag] = false
	return true
}

// GenerateColoringPage sends the photo for coloring page generation. On
// failure the previous result is left untouched and an error tagged coloring
// is recorded.
func (c *Controller) GenerateColoringPage(ctx context.Context, dogName string, image imagedata.Image, handle string) error {
	dogName = strings.TrimSpace(dogName)
	handle = strings.TrimSpace(handle)
	if dogName == "" {
		return fmt.Errorf("%w: dog name is required", models.ErrValidation)
	}
	if image.Base64 == "" {
		return fmt.Errorf("%w: a photo is required", models.ErrValidation)
	}

	c.mu.Lock()
	if c.result.Step != models.StepUpload {
		c.mu.Unlock()
		return ErrWrongStep
	}
	gen, err := c.begin(models.TagColoring)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.lastColoring = coloringArgs{dogName: dogName, image: image, handle: handle}
	c.mu.Unlock()

	slog.Info("Generating coloring page", "dog", dogName)
	res, callErr := c.backend.GenerateColoringPage(ctx, webhook.ColoringRequest{
		DogName:   dogName,
		ImageURL:  image.DataURL(),
		MimeType:  image.MimeType,
		PetHandle: handle,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finish(models.TagColoring, gen) {
		return ErrReset
	}
	if callErr != nil {
		slog.Error("Coloring page generation failed", "dog", dogName, "err", callErr)
		c.setErrorLocked(models.TagColoring, callErr)
		return callErr
	}

	c.result.DogName = dogName
	c.result.InstagramHandle = handle
	c.result.OriginalImageURL = res.OriginalImageURL
	c.result.GeneratedImageURL = res.GeneratedImageURL
	c.result.Caption = res.Caption
	c.result.Step = models.StepColoring
	c.succeededLocked()
	return nil
}

// Continue moves from the coloring preview to template selection.
func (c *Controller) Continue() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result.Step != models.StepColoring {
		return ErrWrongStep
	}
	c.result.Step = models.StepTemplate
	return nil
}

// SelectTemplate picks the composite template.
func (c *Controller) SelectTemplate(id string) error {
	if _, err := templates.Get(id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result.Step != models.StepTemplate {
		return ErrWrongStep
	}
	c.result.SelectedTemplate = id
	return nil
}

// SetField stores the raw value of a customizable field. No validation runs
// here.
func (c *Controller) SetField(fieldID string, value any) error {
	d, err := templates.Get(templates.Customizable)
	if err != nil {
		return err
	}
	if !d.HasField(fieldID) {
		return fmt.Errorf("%w: unknown field %q", models.ErrValidation, fieldID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result.Step != models.StepTemplate {
		return ErrWrongStep
	}
	c.result.TemplateFields[fieldID] = value
	return nil
}

// GenerateComposite renders the marketing composite. An empty templateID or
// nil values fall back to the current selection.
func (c *Controller) GenerateComposite(ctx context.Context, templateID string, values models.FieldValues) error {
	c.mu.Lock()
	if !c.result.HasSourceImages() {
		c.mu.Unlock()
		return fmt.Errorf("%w: generate a coloring page first", models.ErrValidation)
	}
	if c.result.Step != models.StepTemplate {
		c.mu.Unlock()
		return ErrWrongStep
	}
	if templateID == "" {
		templateID = c.result.SelectedTemplate
	}
	if values == nil {
		values = c.result.TemplateFields
	}
	values = values.Clone()

	fields, err := compositeFields(templateID, values)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	gen, err := c.begin(models.TagComposite)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.result.SelectedTemplate = templateID
	if templateID == templates.Customizable {
		c.result.TemplateFields = values.Clone()
	}
	c.lastComposite = compositeArgs{templateID: templateID, values: values}
	req := webhook.CompositeRequest{
		DogName:           c.result.DogName,
		OriginalImageURL:  c.result.OriginalImageURL,
		GeneratedImageURL: c.result.GeneratedImageURL,
		Template:          templateID,
		Fields:            fields,
	}
	c.mu.Unlock()

	slog.Info("Generating composite", "dog", req.DogName, "template", templateID)
	res, callErr := c.backend.GenerateComposite(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finish(models.TagComposite, gen) {
		return ErrReset
	}
	if callErr != nil {
		slog.Error("Composite generation failed", "dog", req.DogName, "err", callErr)
		c.setErrorLocked(models.TagComposite, callErr)
		return callErr
	}

	c.result.CompositeImageURL = res.ImageURL
	c.result.CompositeImageBase64 = res.ImageBase64
	c.result.CompositeMimeType = res.MimeType
	c.result.Step = models.StepComposite
	c.succeededLocked()
	return nil
}

// compositeFields validates customizable values and builds the flattened
// payload fields for templateID.
func compositeFields(templateID string, values models.FieldValues) (map[string]string, error) {
	if templateID == templates.Customizable {
		res, err := templates.ValidateTemplate(templateID, values)
		if err != nil {
			return nil, err
		}
		if !res.Valid {
			return nil, fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(res.Errors, "; "))
		}
	}
	return templates.Payload(templateID, values)
}

// PostComposite publishes the composite. The customizable template needs a
// caption and falls back to the arrow text; polaroid may post with the
// caption generated alongside the coloring page.
func (c *Controller) PostComposite(ctx context.Context, caption string) error {
	caption = strings.TrimSpace(caption)

	c.mu.Lock()
	if !c.result.HasComposite() {
		c.mu.Unlock()
		return fmt.Errorf("%w: generate a composite first", models.ErrValidation)
	}
	if caption == "" && c.result.SelectedTemplate == templates.Customizable {
		caption = strings.TrimSpace(templates.Stringify(c.result.TemplateFields["arrowText"]))
		if caption == "" {
			c.mu.Unlock()
			return fmt.Errorf("%w: caption is required", models.ErrValidation)
		}
	}
	if caption == "" {
		caption = c.result.Caption
	}
	gen, err := c.begin(models.TagInstagram)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.lastCaption = caption
	c.result.Success = ""
	req := webhook.PostRequest{
		ImageURL:          c.result.CompositeImageURL,
		ImageBase64:       c.result.CompositeImageBase64,
		MimeType:          c.result.CompositeMimeType,
		Caption:           caption,
		DogName:           c.result.DogName,
		OriginalImageURL:  c.result.OriginalImageURL,
		GeneratedImageURL: c.result.GeneratedImageURL,
		Template:          c.result.SelectedTemplate,
	}
	c.mu.Unlock()

	slog.Info("Posting composite", "dog", req.DogName, "template", req.Template)
	callErr := c.backend.PostComposite(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finish(models.TagInstagram, gen) {
		return ErrReset
	}
	if callErr != nil {
		slog.Error("Posting failed", "dog", req.DogName, "err", callErr)
		c.setErrorLocked(models.TagInstagram, callErr)
		return callErr
	}
	c.result.Success = fmt.Sprintf("%s's coloring page was posted to Instagram!", req.DogName)
	c.succeededLocked()
	return nil
}

// RetryLastAction repeats the operation that most recently failed with the
// arguments it was last called with. It keeps working after the banner has
// been dismissed or expired.
func (c *Controller) RetryLastAction(ctx context.Context) error {
	c.mu.Lock()
	tag := c.lastFailed
	coloring := c.lastColoring
	composite := c.lastComposite
	caption := c.lastCaption
	c.mu.Unlock()

	switch tag {
	case models.TagColoring:
		return c.GenerateColoringPage(ctx, coloring.dogName, coloring.image, coloring.handle)
	case models.TagComposite:
		return c.GenerateComposite(ctx, composite.templateID, composite.values)
	case models.TagInstagram:
		return c.PostComposite(ctx, caption)
	default:
		return ErrNothingToRetry
	}
}

// DismissError clears the error banner.
func (c *Controller) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearErrorLocked()
}

// Reset returns to the upload step with default template values. Results of
// calls still in flight are discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearErrorLocked()
	c.generation++
	c.loading = make(map[models.ErrorTag]bool)
	c.result = initialResult()
	c.lastColoring = coloringArgs{}
	c.lastComposite = compositeArgs{}
	c.lastCaption = ""
	c.lastFailed = ""
}

func (c *Controller) setErrorLocked(tag models.ErrorTag, err error) {
	if c.clearTimer != nil {
		c.clearTimer.Stop()
		c.clearTimer = nil
	}
	stageErr := &models.StageError{Tag: tag, Message: err.Error(), At: c.now()}
	c.lastFailed = tag
	c.result.Error = stageErr
	c.result.Success = ""
	if c.errorTTL > 0 {
		c.clearTimer = time.AfterFunc(c.errorTTL, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.result.Error == stageErr {
				c.result.Error = nil
			}
		})
	}
}

func (c *Controller) succeededLocked() {
	c.lastFailed = ""
	c.clearErrorLocked()
}

func (c *Controller) clearErrorLocked() {
	if c.clearTimer != nil {
		c.clearTimer.Stop()
		c.clearTimer = nil
	}
	c.result.Error = nil
}
