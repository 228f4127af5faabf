package bulk

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dogcoloringbooks/coloringbook/internal/imagedata"
	"github.com/dogcoloringbooks/coloringbook/internal/models"
	"github.com/dogcoloringbooks/coloringbook/internal/schedule"
	"github.com/dogcoloringbooks/coloringbook/internal/templates"
	"github.com/dogcoloringbooks/coloringbook/internal/webhook"
	"github.com/google/go-cmp/cmp"
)

// fakeBackend fails the dogs listed in failFor and records every request.
type fakeBackend struct {
	mu sync.Mutex

	failAll bool
	failFor map[string]bool

	// inlineComposites returns composites as base64 only, with no URL.
	inlineComposites bool

	// dogs is served in order by GenerateAIDog; an empty name fails the call.
	dogs    []webhook.AIDog
	aiCalls int

	coloring   []webhook.ColoringRequest
	composites []webhook.CompositeRequest
	schedules  []webhook.ScheduleRequest

	// onColoring runs before each coloring call returns.
	onColoring func(ctx context.Context, req webhook.ColoringRequest)
}

func (f *fakeBackend) fails(dog string) bool {
	return f.failAll || f.failFor[dog]
}

func (f *fakeBackend) GenerateColoringPage(ctx context.Context, req webhook.ColoringRequest) (webhook.ColoringResult, error) {
	if f.onColoring != nil {
		f.onColoring(ctx, req)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coloring = append(f.coloring, req)
	if err := ctx.Err(); err != nil {
		return webhook.ColoringResult{}, &webhook.Error{Op: webhook.OpColoring, Message: "request cancelled", Err: err}
	}
	if f.fails(req.DogName) {
		return webhook.ColoringResult{}, &webhook.Error{Op: webhook.OpColoring, StatusCode: 500, Message: "generation failed"}
	}
	return webhook.ColoringResult{
		OriginalImageURL:  "https://example.com/" + req.DogName + "/original.jpg",
		GeneratedImageURL: "https://example.com/" + req.DogName + "/generated.jpg",
	}, nil
}

func (f *fakeBackend) GenerateComposite(ctx context.Context, req webhook.CompositeRequest) (webhook.CompositeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.composites = append(f.composites, req)
	if f.fails(req.DogName) {
		return webhook.CompositeResult{}, &webhook.Error{Op: webhook.OpComposite, Message: "composite failed"}
	}
	if f.inlineComposites {
		return webhook.CompositeResult{ImageBase64: "iVBORw0KGgo=", MimeType: "image/png"}, nil
	}
	return webhook.CompositeResult{ImageURL: "https://example.com/" + req.DogName + "/composite.png"}, nil
}

func (f *fakeBackend) GenerateAIDog(ctx context.Context) (webhook.AIDog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.aiCalls
	f.aiCalls++
	if i >= len(f.dogs) || f.dogs[i].Name == "" {
		return webhook.AIDog{}, &webhook.Error{Op: webhook.OpAIDog, StatusCode: 500, Message: "dog generation failed"}
	}
	return f.dogs[i], nil
}

func (f *fakeBackend) SchedulePosts(ctx context.Context, req webhook.ScheduleRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules = append(f.schedules, req)
	if f.fails(req.Posts[0].DogName) {
		return &webhook.Error{Op: webhook.OpSchedule, StatusCode: 502, Message: "bad gateway"}
	}
	return nil
}

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newController(b *fakeBackend, opts ...Option) *Controller {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(b, opts...)
}

func dogNames(items []models.WorkItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.DogName)
	}
	return out
}

func statuses(items []models.WorkItem) []models.ItemStatus {
	out := make([]models.ItemStatus, 0, len(items))
	for _, item := range items {
		out = append(out, item.Status)
	}
	return out
}

func findByName(t *testing.T, c *Controller, name string) models.WorkItem {
	t.Helper()
	for _, item := range c.Items() {
		if item.DogName == name {
			return item
		}
	}
	t.Fatalf("no item named %s", name)
	return models.WorkItem{}
}

func TestAddDogs(t *testing.T) {
	c := newController(&fakeBackend{})
	c.SetInput("  Max , Buddy ,, Luna ")

	created := c.SubmitInput()
	if diff := cmp.Diff([]string{"Max", "Buddy", "Luna"}, dogNames(created)); diff != "" {
		t.Errorf("created mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Max", "Buddy", "Luna"}, dogNames(c.Items())); diff != "" {
		t.Errorf("stored mismatch (-want +got):\n%s", diff)
	}
	if c.Input() != "" {
		t.Errorf("Expected input to be cleared, got %q", c.Input())
	}

	ids := map[string]bool{}
	for _, item := range created {
		if item.Status != models.StatusPending {
			t.Errorf("Expected pending, got %s", item.Status)
		}
		if !strings.Contains(item.Caption, item.DogName) {
			t.Errorf("Expected caption to mention %s, got %q", item.DogName, item.Caption)
		}
		if ids[item.ID] {
			t.Errorf("duplicate id %s", item.ID)
		}
		ids[item.ID] = true
	}
}

func TestAddDogsEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", " , ,, "} {
		c := newController(&fakeBackend{})
		c.SetInput(raw)
		if created := c.SubmitInput(); len(created) != 0 {
			t.Errorf("Expected no items for %q, got %d", raw, len(created))
		}
		if c.Input() != raw {
			t.Errorf("Expected input %q to be kept, got %q", raw, c.Input())
		}
		if c.Counts().Total != 0 {
			t.Errorf("Expected no stored items for %q", raw)
		}
	}
}

func TestAddPhotos(t *testing.T) {
	b := &fakeBackend{}
	c := newController(b)
	created, err := c.AddPhotos([]Photo{
		{Filename: "Rex.jpg", Image: imagedata.Image{MimeType: "image/jpeg", Base64: "AAAA"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 || created[0].DogName != "Rex" || !created[0].HasPhoto {
		t.Fatalf("unexpected items: %+v", created)
	}

	if _, err := c.GenerateAllColoringPages(context.Background()); err != nil {
		t.Fatal(err)
	}
	req := b.coloring[0]
	if req.ImageURL != "data:image/jpeg;base64,AAAA" || req.MimeType != "image/jpeg" || len(req.Themes) != 0 {
		t.Errorf("unexpected coloring request for a photo: %+v", req)
	}

	if _, err := c.AddPhotos([]Photo{{Filename: "Empty.png"}}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error for a photo without data, got %v", err)
	}
}

func TestGenerateAllColoringPages(t *testing.T) {
	tests := []struct {
		name       string
		failAll    bool
		wantStatus models.ItemStatus
	}{
		{name: "always succeeds", wantStatus: models.StatusReady},
		{name: "always fails", failAll: true, wantStatus: models.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{failAll: tt.failAll}
			c := newController(b)
			c.AddDogs("Max, Buddy, Luna")

			res, err := c.GenerateAllColoringPages(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if res.Succeeded+res.Failed != 3 {
				t.Errorf("Expected 3 processed items, got %+v", res)
			}
			for _, item := range c.Items() {
				if item.Status != tt.wantStatus {
					t.Errorf("%s: expected %s, got %s", item.DogName, tt.wantStatus, item.Status)
				}
				if tt.failAll && item.Error == "" {
					t.Errorf("%s: expected an error message", item.DogName)
				}
				if !tt.failAll && (!item.HasSourceImages() || item.Error != "") {
					t.Errorf("%s: expected URLs and no error, got %+v", item.DogName, item)
				}
			}
			if diff := cmp.Diff([]string{"Max", "Buddy", "Luna"}, requestNames(b.coloring)); diff != "" {
				t.Errorf("processing order mismatch (-want +got):\n%s", diff)
			}
			if b.coloring[0].Themes[0] != webhook.DefaultTheme {
				t.Errorf("Expected default theme for a name-only item, got %v", b.coloring[0].Themes)
			}
		})
	}
}

func requestNames(reqs []webhook.ColoringRequest) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.DogName)
	}
	return out
}

func TestGenerateAllColoringPagesNotice(t *testing.T) {
	b := &fakeBackend{}
	c := newController(b)
	res, err := c.GenerateAllColoringPages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Notice != NoticeNoPending {
		t.Errorf("Expected notice %q, got %+v", NoticeNoPending, res)
	}
	if len(b.coloring) != 0 {
		t.Error("Expected no calls without pending items")
	}
}

func TestGenerateAllColoringPagesIsolatesFailures(t *testing.T) {
	b := &fakeBackend{failFor: map[string]bool{"Buddy": true}}
	c := newController(b)
	c.AddDogs("Max, Buddy, Luna")

	if _, err := c.GenerateAllColoringPages(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []models.ItemStatus{models.StatusReady, models.StatusFailed, models.StatusReady}
	if diff := cmp.Diff(want, statuses(c.Items())); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	buddy := findByName(t, c, "Buddy")
	if buddy.FailedStage != models.StageColoring {
		t.Errorf("Expected failed stage coloring, got %q", buddy.FailedStage)
	}
	if c.Counts() != (models.Counts{Total: 3, Ready: 2, Failed: 1}) {
		t.Errorf("unexpected counts: %+v", c.Counts())
	}
}

func TestColoringPassSnapshotExcludesLateItems(t *testing.T) {
	b := &fakeBackend{}
	c := newController(b)
	c.AddDogs("Max")
	b.onColoring = func(context.Context, webhook.ColoringRequest) {
		if len(c.Items()) == 1 {
			c.AddDogs("Late")
		}
	}

	if _, err := c.GenerateAllColoringPages(context.Background()); err != nil {
		t.Fatal(err)
	}
	if late := findByName(t, c, "Late"); late.Status != models.StatusPending {
		t.Errorf("Expected item added mid-pass to stay pending, got %s", late.Status)
	}
}

func TestColoringPassCancellation(t *testing.T) {
	b := &fakeBackend{}
	c := newController(b)
	c.AddDogs("Max, Buddy, Luna")

	ctx, cancel := context.WithCancel(context.Background())
	b.onColoring = func(_ context.Context, req webhook.ColoringRequest) {
		if req.DogName == "Buddy" {
			cancel()
		}
	}

	_, err := c.GenerateAllColoringPages(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	want := []models.ItemStatus{models.StatusReady, models.StatusFailed, models.StatusPending}
	if diff := cmp.Diff(want, statuses(c.Items())); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	for _, item := range c.Items() {
		if item.Status == models.StatusGenerating {
			t.Errorf("%s left generating", item.DogName)
		}
	}
	if len(c.Running()) != 0 {
		t.Errorf("Expected no running pass after cancellation, got %v", c.Running())
	}
}

func TestPassRunning(t *testing.T) {
	b := &fakeBackend{}
	c := newController(b)
	c.AddDogs("Max")

	var inner error
	b.onColoring = func(ctx context.Context, _ webhook.ColoringRequest) {
		_, inner = c.GenerateAllColoringPages(ctx)
	}
	if _, err := c.GenerateAllColoringPages(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(inner, ErrPassRunning) {
		t.Errorf("Expected ErrPassRunning for a concurrent pass, got %v", inner)
	}
}

func TestGenerateAllComposites(t *testing.T) {
	b := &fakeBackend{}
	c := newController(b)
	c.AddDogs("Max, Buddy")

	res, err := c.GenerateAllComposites(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Notice != NoticeNoComposites || len(b.composites) != 0 {
		t.Errorf("Expected notice and no calls before coloring, got %+v (%d calls)", res, len(b.composites))
	}

	if _, err := c.GenerateAllColoringPages(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.SetField("headerLine1", "Grab Your"); err != nil {
		t.Fatal(err)
	}
	res, err = c.GenerateAllComposites(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded != 2 {
		t.Errorf("Expected 2 composites, got %+v", res)
	}
	for _, item := range c.Items() {
		if item.CompositeStatus != models.CompositeReady || !item.HasComposite() {
			t.Errorf("%s: expected ready composite, got %+v", item.DogName, item)
		}
	}
	req := b.composites[0]
	if req.Template != templates.Customizable || req.Fields["headerLine1"] != "Grab Your" || req.Fields["backgroundColor"] != "#FFFFFF" {
		t.Errorf("unexpected composite request: %+v", req)
	}

	res, err = c.GenerateAllComposites(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Notice != NoticeNoComposites {
		t.Errorf("Expected items with composites to be skipped, got %+v", res)
	}
}

func TestGenerateAllCompositesOnlyReadyItems(t *testing.T) {
	b := &fakeBackend{failFor: map[string]bool{"Buddy": true}}
	c := newController(b)
	c.AddDogs("Max, Buddy")
	if _, err := c.GenerateAllColoringPages(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.AddDogs("Luna")

	b.failFor = nil
	if err := c.SelectTemplate(templates.Polaroid); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GenerateAllComposites(context.Background()); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Max"}, compositeNames(b.composites)); diff != "" {
		t.Errorf("only ready items with source images may get composites (-want +got):\n%s", diff)
	}
	if b.composites[0].Fields != nil {
		t.Errorf("Expected no fields for polaroid, got %v", b.composites[0].Fields)
	}
	for _, name := range []string{"Buddy", "Luna"} {
		if st := findByName(t, c, name).CompositeStatus; st != models.CompositeNone {
			t.Errorf("%s: expected no composite attempt, got %q", name, st)
		}
	}
}

func compositeNames(reqs []webhook.CompositeRequest) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.DogName)
	}
	return out
}

func TestGenerateAllCompositesValidatesSharedFields(t *testing.T) {
	b := &fakeBackend{}
	c := newController(b)
	c.AddDogs("Max")
	if _, err := c.GenerateAllColoringPages(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.SetField("circleColor", "purple"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GenerateAllComposites(context.Background()); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if len(b.composites) != 0 {
		t.Error("Expected no composite calls with invalid fields")
	}
	if st := c.Items()[0].CompositeStatus; st != models.CompositeNone {
		t.Errorf("Expected untouched composite status, got %q", st)
	}
}

func TestRetryComposite(t *testing.T) {
	b := &fakeBackend{}
	c := newController(b)
	c.AddDogs("Max")
	if _, err := c.GenerateAllColoringPages(context.Background()); err != nil {
		t.Fatal(err)
	}

	b.failAll = true
	if _, err := c.GenerateAllComposites(context.Background()); err != nil {
		t.Fatal(err)
	}
	item := c.Items()[0]
	if item.CompositeStatus != models.CompositeFailed || item.Error == "" {
		t.Fatalf("Expected failed composite with error, got %+v", item)
	}
	if item.Status != models.StatusReady {
		t.Errorf("Expected coloring status to stay ready, got %s", item.Status)
	}

	if _, err := c.RetryItem(item.ID, models.StageColoring); !errors.Is(err, ErrNotRetryable) {
		t.Errorf("Expected coloring retry to be refused, got %v", err)
	}
	retried, err := c.RetryItem(item.ID, models.StageComposite)
	if err != nil {
		t.Fatal(err)
	}
	if retried.CompositeStatus != models.CompositePending || retried.Error != "" {
		t.Errorf("Expected pending composite with cleared error, got %+v", retried)
	}

	b.failAll = false
	res, err := c.GenerateAllComposites(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded != 1 {
		t.Errorf("Expected retried item to be picked up, got %+v", res)
	}
}

func TestRetryColoring(t *testing.T) {
	b := &fakeBackend{failAll: true}
	c := newController(b)
	c.AddDogs("Max")
	if _, err := c.GenerateAllColoringPages(context.Background()); err != nil {
		t.Fatal(err)
	}
	id := c.Items()[0].ID

	item, err := c.RetryItem(id, models.StageColoring)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != models.StatusPending || item.Error != "" || item.FailedStage != "" {
		t.Errorf("Expected clean pending item, got %+v", item)
	}
	if _, err := c.RetryItem(id, models.StageColoring); !errors.Is(err, ErrNotRetryable) {
		t.Errorf("Expected second retry to be refused, got %v", err)
	}
	if _, err := c.RetryItem("missing", models.StageColoring); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
}

func readyWithComposites(t *testing.T, c *Controller) {
	t.Helper()
	if _, err := c.GenerateAllColoringPages(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GenerateAllComposites(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestApproveAll(t *testing.T) {
	b := &fakeBackend{}
	c := newController(b)
	if res := c.ApproveAll(); res.Notice != NoticeNothingApprove {
		t.Errorf("Expected notice on empty list, got %+v", res)
	}

	c.AddDogs("Max, Buddy")
	readyWithComposites(t, c)
	c.AddDogs("Luna")

	res := c.ApproveAll()
	if res.Succeeded != 2 {
		t.Errorf("Expected 2 approvals, got %+v", res)
	}
	want := []models.ItemStatus{models.StatusApproved, models.StatusApproved, models.StatusPending}
	if diff := cmp.Diff(want, statuses(c.Items())); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	if res := c.ApproveAll(); res.Notice != NoticeNothingApprove {
		t.Errorf("Expected notice when everything is approved, got %+v", res)
	}
	if len(b.schedules) != 0 {
		t.Error("ApproveAll must not call the network")
	}
}

func TestInlineCompositeIsNotApproved(t *testing.T) {
	b := &fakeBackend{inlineComposites: true}
	c := newController(b)
	c.AddDogs("Max")
	if _, err := c.GenerateAllColoringPages(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GenerateAllComposites(context.Background()); err != nil {
		t.Fatal(err)
	}
	item := findByName(t, c, "Max")
	if !item.HasComposite() || item.CompositeImageURL != "" {
		t.Fatalf("Expected an inline composite without a URL, got %+v", item)
	}

	if res := c.ApproveAll(); res.Notice != NoticeNothingApprove {
		t.Errorf("Expected nothing to approve, got %+v", res)
	}
	if _, err := c.ApproveItem(item.ID); !errors.Is(err, ErrTransition) {
		t.Errorf("Expected ErrTransition, got %v", err)
	}
	res, err := c.ScheduleAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Notice != NoticeNoApproved {
		t.Errorf("Expected notice with nothing approved, got %+v", res)
	}
	if len(b.schedules) != 0 {
		t.Errorf("Expected no schedule requests, got %d", len(b.schedules))
	}
	if got := findByName(t, c, "Max").Status; got != models.StatusReady {
		t.Errorf("Expected ready, got %s", got)
	}
}

func TestApproveAndRejectItem(t *testing.T) {
	b := &fakeBackend{}
	c := newController(b)
	c.AddDogs("Max, Buddy")
	readyWithComposites(t, c)
	c.AddDogs("Luna")
	maxID := findByName(t, c, "Max").ID
	buddyID := findByName(t, c, "Buddy").ID
	lunaID := findByName(t, c, "Luna").ID

	if _, err := c.ApproveItem("missing"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
	if _, err := c.ApproveItem(lunaID); !errors.Is(err, ErrTransition) {
		t.Errorf("Expected ErrTransition approving a pending item, got %v", err)
	}
	if _, err := c.RejectItem(lunaID); !errors.Is(err, ErrTransition) {
		t.Errorf("Expected ErrTransition rejecting a pending item, got %v", err)
	}

	item, err := c.ApproveItem(maxID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != models.StatusApproved {
		t.Errorf("Expected approved, got %s", item.Status)
	}
	if _, err := c.ApproveItem(maxID); !errors.Is(err, ErrTransition) {
		t.Errorf("Expected ErrTransition approving twice, got %v", err)
	}

	item, err = c.RejectItem(buddyID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != models.StatusRejected {
		t.Errorf("Expected rejected, got %s", item.Status)
	}
	if res := c.ApproveAll(); res.Notice != NoticeNothingApprove {
		t.Errorf("Expected ApproveAll to skip rejected items, got %+v", res)
	}
	if c.Counts() != (models.Counts{Total: 3, Approved: 1, Rejected: 1}) {
		t.Errorf("unexpected counts: %+v", c.Counts())
	}

	res, err := c.ScheduleAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded != 1 || len(b.schedules) != 1 || b.schedules[0].Posts[0].DogName != "Max" {
		t.Errorf("Expected only Max to be scheduled, got %+v", res)
	}
	if _, err := c.RejectItem(maxID); !errors.Is(err, ErrTransition) {
		t.Errorf("Expected ErrTransition rejecting a scheduled item, got %v", err)
	}

	item, err = c.ApproveItem(buddyID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != models.StatusApproved {
		t.Errorf("Expected a rejected item to be approvable again, got %s", item.Status)
	}
}

func TestAutoGenerate(t *testing.T) {
	b := &fakeBackend{dogs: []webhook.AIDog{
		{Name: "Biscuit", ImageBase64: "iVBORw0KGgo=", MimeType: "image/png"},
		{},
		{Name: "Pepper"},
	}}
	c := newController(b)

	for _, n := range []int{0, MaxAutoGenerate + 1} {
		if _, err := c.AutoGenerate(context.Background(), n); !errors.Is(err, models.ErrValidation) {
			t.Errorf("count %d: expected ErrValidation, got %v", n, err)
		}
	}
	if b.aiCalls != 0 {
		t.Fatalf("Expected no calls for an invalid count, got %d", b.aiCalls)
	}

	res, err := c.AutoGenerate(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
	if diff := cmp.Diff([]string{"Biscuit", "Pepper"}, dogNames(c.Items())); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	biscuit := findByName(t, c, "Biscuit")
	if biscuit.Status != models.StatusPending || !biscuit.HasPhoto || biscuit.ImageData != "data:image/png;base64,iVBORw0KGgo=" {
		t.Errorf("unexpected generated item: %+v", biscuit)
	}
	if biscuit.Caption != DefaultCaption("Biscuit") {
		t.Errorf("Expected default caption, got %q", biscuit.Caption)
	}
	if findByName(t, c, "Pepper").HasPhoto {
		t.Error("Expected no photo when the backend returns no image")
	}
}

func TestAutoGenerateCancellation(t *testing.T) {
	b := &fakeBackend{dogs: []webhook.AIDog{{Name: "Biscuit"}}}
	c := newController(b)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.AutoGenerate(ctx, 5); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if b.aiCalls != 0 || len(c.Items()) != 0 {
		t.Errorf("Expected nothing generated, got %d calls", b.aiCalls)
	}
}

func TestScheduleAll(t *testing.T) {
	b := &fakeBackend{failFor: map[string]bool{}}
	c := newController(b, WithPlanner(schedule.Interval(24*time.Hour)))
	if res, _ := c.ScheduleAll(context.Background()); res.Notice != NoticeNoApproved {
		t.Errorf("Expected notice with nothing approved, got %+v", res)
	}

	c.AddDogs("Max, Buddy, Luna")
	readyWithComposites(t, c)
	c.ApproveAll()
	if _, err := c.UpdateCaption(findByName(t, c, "Max").ID, "Max loves <b>crayons</b> & naps"); err != nil {
		t.Fatal(err)
	}

	b.failFor["Buddy"] = true
	res, err := c.ScheduleAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
	want := []models.ItemStatus{models.StatusScheduled, models.StatusFailed, models.StatusScheduled}
	if diff := cmp.Diff(want, statuses(c.Items())); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}

	if len(b.schedules) != 3 {
		t.Fatalf("Expected one request per item, got %d", len(b.schedules))
	}
	for i, req := range b.schedules {
		if len(req.Posts) != 1 {
			t.Fatalf("Expected one post per request, got %d", len(req.Posts))
		}
		wantTime := fixedNow.Add(time.Duration(i) * 24 * time.Hour)
		if !req.Posts[0].ScheduledTime.Equal(wantTime) {
			t.Errorf("post %d: expected %s, got %s", i, wantTime, req.Posts[0].ScheduledTime)
		}
	}
	first := b.schedules[0].Posts[0]
	if first.Caption != "Max loves crayons & naps" || first.ImageURL != "https://example.com/Max/composite.png" {
		t.Errorf("unexpected first post: %+v", first)
	}
	if first.OriginalImageURL != "https://example.com/Max/original.jpg" || first.GeneratedImageURL != "https://example.com/Max/generated.jpg" {
		t.Errorf("Expected source image URLs on the post, got %+v", first)
	}
	if maxItem := findByName(t, c, "Max"); maxItem.ScheduledTime == nil || !maxItem.ScheduledTime.Equal(fixedNow) {
		t.Errorf("Expected scheduled time on the item, got %v", maxItem.ScheduledTime)
	}

	buddy := findByName(t, c, "Buddy")
	if buddy.Error == "" || buddy.FailedStage != models.StageSchedule {
		t.Errorf("Expected schedule failure details, got %+v", buddy)
	}
	retried, err := c.RetryItem(buddy.ID, models.StageSchedule)
	if err != nil {
		t.Fatal(err)
	}
	if retried.Status != models.StatusApproved || retried.Error != "" {
		t.Errorf("Expected approved item with cleared error, got %+v", retried)
	}

	delete(b.failFor, "Buddy")
	res, err = c.ScheduleAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded != 1 {
		t.Errorf("Expected only the retried item to be scheduled, got %+v", res)
	}
	if c.Counts() != (models.Counts{Total: 3, Scheduled: 3}) {
		t.Errorf("unexpected counts: %+v", c.Counts())
	}
}

func TestRemoveItem(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *Controller, b *fakeBackend)
	}{
		{name: "pending", setup: func(*Controller, *fakeBackend) {}},
		{name: "failed", setup: func(c *Controller, b *fakeBackend) {
			b.failAll = true
			_, _ = c.GenerateAllColoringPages(context.Background())
		}},
		{name: "approved", setup: func(c *Controller, b *fakeBackend) {
			_, _ = c.GenerateAllColoringPages(context.Background())
			_, _ = c.GenerateAllComposites(context.Background())
			c.ApproveAll()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			c := newController(b)
			id := c.AddDogs("Max")[0].ID
			tt.setup(c, b)

			if err := c.RemoveItem(id); err != nil {
				t.Fatal(err)
			}
			if _, err := c.Item(id); !errors.Is(err, ErrItemNotFound) {
				t.Errorf("Expected ErrItemNotFound, got %v", err)
			}
			if len(c.Items()) != 0 {
				t.Errorf("Expected no items, got %d", len(c.Items()))
			}
			if err := c.RemoveItem(id); !errors.Is(err, ErrItemNotFound) {
				t.Errorf("Expected second removal to fail, got %v", err)
			}
		})
	}
}

func TestSanitizeCaption(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Meet Max!", want: "Meet Max!"},
		{name: "markup", in: "<script>alert(1)</script>Hi <i>there</i>", want: "Hi there"},
		{name: "entities", in: "Fish & chips", want: "Fish & chips"},
		{name: "trimmed", in: "  spaced  ", want: "spaced"},
		{name: "bounded", in: strings.Repeat("🐶", 310), want: strings.Repeat("🐶", MaxCaptionLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeCaption(tt.in); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestUpdateCaptionUnknownItem(t *testing.T) {
	c := newController(&fakeBackend{})
	if _, err := c.UpdateCaption("nope", "hi"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
}

func TestRateLimitedPassStillCompletes(t *testing.T) {
	b := &fakeBackend{}
	c := newController(b, WithRateLimit(1000))
	c.AddDogs("Max, Buddy")
	res, err := c.GenerateAllColoringPages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded != 2 {
		t.Errorf("Expected 2 successes, got %+v", res)
	}
}
