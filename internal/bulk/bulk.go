// Package bulk drives a batch of dogs through the coloring, composite and
// scheduling passes. Every pass walks a snapshot of the eligible items one at
// a time.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dogcoloringbooks/coloringbook/internal/imagedata"
	"github.com/dogcoloringbooks/coloringbook/internal/metrics"
	"github.com/dogcoloringbooks/coloringbook/internal/models"
	"github.com/dogcoloringbooks/coloringbook/internal/schedule"
	"github.com/dogcoloringbooks/coloringbook/internal/storage"
	"github.com/dogcoloringbooks/coloringbook/internal/templates"
	"github.com/dogcoloringbooks/coloringbook/internal/webhook"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	ErrItemNotFound = errors.New("item not found")
	ErrNotRetryable = errors.New("item has no failure at that stage")
	ErrPassRunning  = errors.New("a pass of this kind is already running")
	ErrTransition   = errors.New("item cannot make that transition")
)

// Advisory notices returned when a pass finds nothing to do.
const (
	NoticeNoPending      = "No pending dogs to generate coloring pages for"
	NoticeNoComposites   = "No dogs are ready for composite generation"
	NoticeNothingApprove = "No composites waiting for approval"
	NoticeNoApproved     = "No approved dogs to schedule"
)

// AutoGenerate bounds.
const (
	MinAutoGenerate = 1
	MaxAutoGenerate = 20
)

const (
	passAuto      = "auto"
	passColoring  = "coloring"
	passComposite = "composite"
	passSchedule  = "schedule"
)

// Backend is the subset of the webhook client the controller needs.
type Backend interface {
	GenerateColoringPage(ctx context.Context, req webhook.ColoringRequest) (webhook.ColoringResult, error)
	GenerateComposite(ctx context.Context, req webhook.CompositeRequest) (webhook.CompositeResult, error)
	SchedulePosts(ctx context.Context, req webhook.ScheduleRequest) error
	GenerateAIDog(ctx context.Context) (webhook.AIDog, error)
}

// PassResult summarizes one pass. Notice is set instead of counts when no
// item qualified.
type PassResult struct {
	Notice    string `json:"notice,omitempty"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// Controller owns the ordered item list plus the template customization
// shared by every item.
type Controller struct {
	backend Backend
	items   *storage.ItemStore
	planner schedule.Planner
	limiter *rate.Limiter
	now     func() time.Time

	mu       sync.Mutex
	input    string
	template string
	fields   models.FieldValues
	running  map[string]bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithPlanner sets how scheduled posts are spread out.
func WithPlanner(p schedule.Planner) Option {
	return func(c *Controller) { c.planner = p }
}

// WithRateLimit paces webhook calls within a pass. Zero or less disables pacing.
func WithRateLimit(perSecond float64) Option {
	return func(c *Controller) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates an empty controller using the customizable template.
func New(backend Backend, opts ...Option) *Controller {
	fields, _ := templates.Defaults(templates.Customizable)
	c := &Controller{
		backend:  backend,
		items:    storage.NewItemStore(),
		planner:  schedule.Interval(24 * time.Hour),
		now:      time.Now,
		template: templates.Customizable,
		fields:   fields,
		running:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultCaption is the greeting every new item starts with.
func DefaultCaption(dogName string) string {
	return fmt.Sprintf("Meet %s! Turn your dog's photo into a custom coloring page 🎨🐶", dogName)
}

// SetInput stores the raw name list being typed.
func (c *Controller) SetInput(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = raw
}

// Input returns the raw name list.
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// SubmitInput adds the dogs named in the input buffer.
func (c *Controller) SubmitInput() []models.WorkItem {
	return c.AddDogs(c.Input())
}

// AddDogs creates one pending item per non-empty comma separated name. The
// input buffer is cleared only when at least one item was created.
func (c *Controller) AddDogs(raw string) []models.WorkItem {
	var created []models.WorkItem
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		created = append(created, c.newItem(name, ""))
	}
	if len(created) == 0 {
		return nil
	}
	c.items.Add(created...)

	c.mu.Lock()
	c.input = ""
	c.mu.Unlock()

	slog.Info("Added dogs", "count", len(created))
	return created
}

// Photo is one uploaded file.
type Photo struct {
	Filename string
	Image    imagedata.Image
}

// AddPhotos creates one pending item per photo, named after the file.
func (c *Controller) AddPhotos(photos []Photo) ([]models.WorkItem, error) {
	created := make([]models.WorkItem, 0, len(photos))
	for _, p := range photos {
		name := imagedata.NameFromFilename(p.Filename)
		if name == "" {
			return nil, fmt.Errorf("%w: cannot derive a dog name from %q", models.ErrValidation, p.Filename)
		}
		if p.Image.Base64 == "" {
			return nil, fmt.Errorf("%w: %s has no image data", models.ErrValidation, p.Filename)
		}
		created = append(created, c.newItem(name, p.Image.DataURL()))
	}
	c.items.Add(created...)
	slog.Info("Added photos", "count", len(created))
	return created, nil
}

func (c *Controller) newItem(name, dataURL string) models.WorkItem {
	return models.WorkItem{
		ID:        uuid.NewString(),
		DogName:   name,
		Caption:   DefaultCaption(name),
		ImageData: dataURL,
		HasPhoto:  dataURL != "",
		Status:    models.StatusPending,
		CreatedAt: c.now(),
	}
}

// Items returns every item in insertion order.
func (c *Controller) Items() []models.WorkItem {
	return c.items.List()
}

// Item looks up one item.
func (c *Controller) Item(id string) (models.WorkItem, error) {
	item, ok := c.items.Get(id)
	if !ok {
		return models.WorkItem{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return item, nil
}

// Counts derives the aggregate counters from the current items.
func (c *Controller) Counts() models.Counts {
	var out models.Counts
	for _, item := range c.items.List() {
		out.Total++
		switch item.Status {
		case models.StatusReady:
			out.Ready++
		case models.StatusApproved:
			out.Approved++
		case models.StatusScheduled:
			out.Scheduled++
		case models.StatusFailed:
			out.Failed++
		case models.StatusRejected:
			out.Rejected++
		}
	}
	return out
}

// Template returns the shared template id and a copy of its values.
func (c *Controller) Template() (string, models.FieldValues) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.template, c.fields.Clone()
}

// SelectTemplate sets the template used for every composite.
func (c *Controller) SelectTemplate(id string) error {
	if _, err := templates.Get(id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.template = id
	return nil
}

// SetField edits one shared customizable field value.
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
	c.fields[fieldID] = value
	return nil
}

func (c *Controller) startPass(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running[name] {
		return ErrPassRunning
	}
	c.running[name] = true
	return nil
}

func (c *Controller) endPass(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running, name)
}

// Running reports which passes are in progress.
func (c *Controller) Running() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, name := range []string{passAuto, passColoring, passComposite, passSchedule} {
		if c.running[name] {
			out = append(out, name)
		}
	}
	return out
}

// pace blocks until the next call may start.
func (c *Controller) pace(ctx context.Context) error {
	if c.limiter != nil {
		return c.limiter.Wait(ctx)
	}
	return ctx.Err()
}

// AutoGenerate asks the backend to invent n dogs and adds each one as a
// pending item as soon as it arrives. Failed requests are counted and skipped.
func (c *Controller) AutoGenerate(ctx context.Context, n int) (PassResult, error) {
	if n < MinAutoGenerate || n > MaxAutoGenerate {
		return PassResult{}, fmt.Errorf("%w: count must be between %d and %d", models.ErrValidation, MinAutoGenerate, MaxAutoGenerate)
	}
	if err := c.startPass(passAuto); err != nil {
		return PassResult{}, err
	}
	defer c.endPass(passAuto)

	var res PassResult
	for i := 0; i < n; i++ {
		if err := c.pace(ctx); err != nil {
			return res, err
		}
		dog, err := c.backend.GenerateAIDog(ctx)
		if err != nil {
			slog.Error("Dog generation failed", "attempt", i+1, "err", err)
			metrics.RecordPassItem(passAuto, false)
			res.Failed++
			continue
		}
		photo := imagedata.Image{MimeType: dog.MimeType, Base64: dog.ImageBase64}
		c.items.Add(c.newItem(dog.Name, photo.DataURL()))
		metrics.RecordPassItem(passAuto, true)
		res.Succeeded++
	}

	slog.Info("Auto generation finished", "requested", n, "succeeded", res.Succeeded, "failed", res.Failed)
	return res, nil
}

// GenerateAllColoringPages sends every pending item for coloring page
// generation. A failing item is marked failed and the pass moves on. When ctx
// is cancelled the pass stops and items not reached keep their status.
func (c *Controller) GenerateAllColoringPages(ctx context.Context) (PassResult, error) {
	if err := c.startPass(passColoring); err != nil {
		return PassResult{}, err
	}
	defer c.endPass(passColoring)

	pending := c.items.Select(isPending)
	if len(pending) == 0 {
		return PassResult{Notice: NoticeNoPending}, nil
	}

	var res PassResult
	for _, snap := range pending {
		if err := c.pace(ctx); err != nil {
			return res, err
		}
		item, ok := c.items.UpdateIf(snap.ID, isPending, markGenerating)
		if !ok {
			continue
		}

		out, err := c.backend.GenerateColoringPage(ctx, coloringRequest(item))
		if err != nil {
			slog.Error("Coloring page generation failed", "dog", item.DogName, "id", item.ID, "err", err)
			c.items.Update(item.ID, failStatus(models.StageColoring, err))
			metrics.RecordPassItem(passColoring, false)
			res.Failed++
			continue
		}
		c.items.Update(item.ID, coloringReady(out))
		metrics.RecordPassItem(passColoring, true)
		res.Succeeded++
	}

	slog.Info("Coloring pass finished", "succeeded", res.Succeeded, "failed", res.Failed)
	return res, nil
}

// GenerateAllComposites renders a composite for every ready item that has
// both source images and no composite yet, using the shared template.
func (c *Controller) GenerateAllComposites(ctx context.Context) (PassResult, error) {
	if err := c.startPass(passComposite); err != nil {
		return PassResult{}, err
	}
	defer c.endPass(passComposite)

	eligible := c.items.Select(compositeEligible)
	if len(eligible) == 0 {
		return PassResult{Notice: NoticeNoComposites}, nil
	}

	templateID, values := c.Template()
	var fields map[string]string
	if templateID == templates.Customizable {
		v, err := templates.ValidateTemplate(templateID, values)
		if err != nil {
			return PassResult{}, err
		}
		if !v.Valid {
			return PassResult{}, fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(v.Errors, "; "))
		}
		if fields, err = templates.Payload(templateID, values); err != nil {
			return PassResult{}, err
		}
	}

	var res PassResult
	for _, snap := range eligible {
		if err := c.pace(ctx); err != nil {
			return res, err
		}
		item, ok := c.items.UpdateIf(snap.ID, compositeEligible, setCompositeStatus(models.CompositeGenerating))
		if !ok {
			continue
		}

		out, err := c.backend.GenerateComposite(ctx, webhook.CompositeRequest{
			DogName:           item.DogName,
			OriginalImageURL:  item.OriginalImageURL,
			GeneratedImageURL: item.GeneratedImageURL,
			Template:          templateID,
			Fields:            fields,
		})
		if err != nil {
			slog.Error("Composite generation failed", "dog", item.DogName, "id", item.ID, "err", err)
			c.items.Update(item.ID, compositeFailed(err))
			metrics.RecordPassItem(passComposite, false)
			res.Failed++
			continue
		}
		c.items.Update(item.ID, compositeReady(out))
		metrics.RecordPassItem(passComposite, true)
		res.Succeeded++
	}

	slog.Info("Composite pass finished", "template", templateID, "succeeded", res.Succeeded, "failed", res.Failed)
	return res, nil
}

// ApproveAll approves every item that has a composite and is not already
// approved or scheduled. No network call is made.
func (c *Controller) ApproveAll() PassResult {
	var res PassResult
	for _, snap := range c.items.Select(approvable) {
		if _, ok := c.items.UpdateIf(snap.ID, approvable, approve); ok {
			res.Succeeded++
		}
	}
	if res.Succeeded == 0 {
		return PassResult{Notice: NoticeNothingApprove}
	}
	return res
}

// ApproveItem approves one item with a composite URL. A rejected item may be
// approved again.
func (c *Controller) ApproveItem(id string) (models.WorkItem, error) {
	return c.transition(id, "approve", approvableItem, approve)
}

// RejectItem keeps a ready or approved item out of scheduling.
func (c *Controller) RejectItem(id string) (models.WorkItem, error) {
	return c.transition(id, "reject", rejectable, reject)
}

func (c *Controller) transition(id, action string, cond func(models.WorkItem) bool, patch storage.Patch) (models.WorkItem, error) {
	item, ok := c.items.Get(id)
	if !ok {
		return models.WorkItem{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	updated, ok := c.items.UpdateIf(id, cond, patch)
	if !ok {
		return item, fmt.Errorf("%w: cannot %s %s while %s", ErrTransition, action, item.DogName, item.Status)
	}
	slog.Info("Item updated", "action", action, "dog", updated.DogName, "id", id)
	return updated, nil
}

// ScheduleAll queues every approved item, one request per item, each with its
// own publication slot.
func (c *Controller) ScheduleAll(ctx context.Context) (PassResult, error) {
	if err := c.startPass(passSchedule); err != nil {
		return PassResult{}, err
	}
	defer c.endPass(passSchedule)

	approved := c.items.Select(isApproved)
	if len(approved) == 0 {
		return PassResult{Notice: NoticeNoApproved}, nil
	}

	templateID, _ := c.Template()
	slots := c.planner.Slots(c.now(), len(approved))

	var res PassResult
	for i, snap := range approved {
		if err := c.pace(ctx); err != nil {
			return res, err
		}
		item, ok := c.items.Get(snap.ID)
		if !ok || !isApproved(item) {
			continue
		}

		when := slots[i]
		err := c.backend.SchedulePosts(ctx, webhook.ScheduleRequest{Posts: []webhook.ScheduledPost{{
			DogName:           item.DogName,
			ImageURL:          item.CompositeImageURL,
			OriginalImageURL:  item.OriginalImageURL,
			GeneratedImageURL: item.GeneratedImageURL,
			Caption:           item.Caption,
			Template:          templateID,
			ScheduledTime:     when,
		}}})
		if err != nil {
			slog.Error("Scheduling failed", "dog", item.DogName, "id", item.ID, "err", err)
			c.items.Update(item.ID, failStatus(models.StageSchedule, err))
			metrics.RecordPassItem(passSchedule, false)
			res.Failed++
			continue
		}
		c.items.Update(item.ID, scheduled(when))
		metrics.RecordPassItem(passSchedule, true)
		res.Succeeded++
	}

	slog.Info("Schedule pass finished", "succeeded", res.Succeeded, "failed", res.Failed)
	return res, nil
}

// RetryItem makes a failed item eligible again for the pass of the given
// stage and clears its error.
func (c *Controller) RetryItem(id string, stage models.Stage) (models.WorkItem, error) {
	item, ok := c.items.Get(id)
	if !ok {
		return models.WorkItem{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}

	var (
		cond  func(models.WorkItem) bool
		patch storage.Patch
	)
	switch stage {
	case models.StageColoring:
		cond = failedAt(models.StageColoring)
		patch = resetStatus(models.StatusPending)
	case models.StageComposite:
		cond = func(w models.WorkItem) bool { return w.CompositeStatus == models.CompositeFailed }
		patch = resetComposite
	case models.StageSchedule:
		cond = func(w models.WorkItem) bool { return failedAt(models.StageSchedule)(w) && w.HasComposite() }
		patch = resetStatus(models.StatusApproved)
	default:
		return item, fmt.Errorf("%w: unknown stage %q", models.ErrValidation, stage)
	}

	updated, ok := c.items.UpdateIf(id, cond, patch)
	if !ok {
		return item, fmt.Errorf("%w: %s at %s", ErrNotRetryable, item.DogName, stage)
	}
	slog.Info("Item reset for retry", "dog", updated.DogName, "id", id, "stage", stage)
	return updated, nil
}

// RemoveItem deletes an item whatever its state.
func (c *Controller) RemoveItem(id string) error {
	if !c.items.Delete(id) {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return nil
}

// UpdateCaption replaces an item's caption after stripping markup and bounding
// its length.
func (c *Controller) UpdateCaption(id, caption string) (models.WorkItem, error) {
	clean := SanitizeCaption(caption)
	item, ok := c.items.Update(id, func(w models.WorkItem) models.WorkItem {
		w.Caption = clean
		return w
	})
	if !ok {
		return models.WorkItem{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return item, nil
}

func coloringRequest(item models.WorkItem) webhook.ColoringRequest {
	req := webhook.ColoringRequest{DogName: item.DogName, PetHandle: ""}
	if img, ok := imagedata.FromDataURL(item.ImageData); ok {
		req.ImageURL = item.ImageData
		req.MimeType = img.MimeType
		return req
	}
	req.Themes = []string{webhook.DefaultTheme}
	return req
}
