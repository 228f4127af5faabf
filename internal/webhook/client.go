// Package webhook is the transport boundary to the external workflow
// automation service that renders coloring pages, composites and posts.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dogcoloringbooks/coloringbook/internal/metrics"
	"github.com/tidwall/gjson"
)

const (
	PathColoring  = "generate-coloring-page"
	PathComposite = "generate-composite"
	PathPost      = "post-marketing-image"
	PathSchedule  = "schedule-posts"
	PathAIDog     = "generate-ai-dog"

	// DefaultTheme is sent when an item has no photo and the service invents one.
	DefaultTheme = "A fun coloring book adventure"

	maxResponseBytes = 64 << 20
	maxErrorRunes    = 200
)

// Client calls the webhook endpoints under BaseURL.
type Client struct {
	BaseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a client whose calls are each bounded by timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// ColoringRequest asks for a coloring page. ImageURL carries a data URL when a
// photo was uploaded; otherwise Themes lets the service generate a dog.
type ColoringRequest struct {
	DogName   string   `json:"dogName"`
	ImageURL  string   `json:"imageUrl,omitempty"`
	MimeType  string   `json:"mimeType,omitempty"`
	Themes    []string `json:"themes,omitempty"`
	PetHandle string   `json:"petHandle"`
}

// ColoringResult holds the URLs of the stored original and generated images.
type ColoringResult struct {
	OriginalImageURL  string `json:"originalImageUrl"`
	GeneratedImageURL string `json:"generatedImageUrl"`
	Caption           string `json:"caption,omitempty"`
}

// CompositeRequest asks for a marketing composite. Fields is only sent for the
// customizable template.
type CompositeRequest struct {
	DogName           string
	OriginalImageURL  string
	GeneratedImageURL string
	Template          string
	Fields            map[string]string
}

// MarshalJSON flattens Fields into the top-level object.
func (r CompositeRequest) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(r.Fields)+4)
	for k, v := range r.Fields {
		body[k] = v
	}
	body["dogName"] = r.DogName
	body["originalImageUrl"] = r.OriginalImageURL
	body["generatedImageUrl"] = r.GeneratedImageURL
	body["template"] = r.Template
	return json.Marshal(body)
}

// CompositeResult carries the composite as a URL, inline base64, or both.
type CompositeResult struct {
	ImageURL    string `json:"compositeImageUrl,omitempty"`
	ImageBase64 string `json:"compositeImageBase64,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PostRequest publishes one composite immediately.
type PostRequest struct {
	ImageURL          string `json:"imageUrl,omitempty"`
	ImageBase64       string `json:"imageBase64,omitempty"`
	MimeType          string `json:"mimeType,omitempty"`
	Caption           string `json:"caption"`
	DogName           string `json:"dogName,omitempty"`
	OriginalImageURL  string `json:"originalImageUrl,omitempty"`
	GeneratedImageURL string `json:"generatedImageUrl,omitempty"`
	Template          string `json:"template,omitempty"`
}

// ScheduledPost is one entry of a schedule request.
type ScheduledPost struct {
	DogName           string    `json:"dogName"`
	ImageURL          string    `json:"imageUrl"`
	OriginalImageURL  string    `json:"originalImageUrl,omitempty"`
	GeneratedImageURL string    `json:"generatedImageUrl,omitempty"`
	Caption           string    `json:"caption"`
	Template          string    `json:"template"`
	ScheduledTime     time.Time `json:"scheduledTime"`
}

// AIDog is a mock dog invented by the service, with its portrait inline.
type AIDog struct {
	Name        string
	ImageBase64 string
	MimeType    string
}

// ScheduleRequest queues posts for later publication.
type ScheduleRequest struct {
	Posts []ScheduledPost `json:"posts"`
}

// GenerateColoringPage calls the coloring endpoint. Both image URLs must come
// back for the call to count as a success.
func (c *Client) GenerateColoringPage(ctx context.Context, req ColoringRequest) (ColoringResult, error) {
	res, err := c.do(ctx, OpColoring, PathColoring, req)
	if err != nil {
		return ColoringResult{}, err
	}
	if !succeeded(res, false) {
		return ColoringResult{}, semanticError(OpColoring, res, "generation failed")
	}

	out := ColoringResult{
		OriginalImageURL:  firstString(res, "originalImageUrl"),
		GeneratedImageURL: firstString(res, "generatedImageUrl"),
		Caption:           firstString(res, "caption", "results.0.caption"),
	}
	if out.OriginalImageURL == "" || out.GeneratedImageURL == "" {
		return ColoringResult{}, &Error{Op: OpColoring, Message: "response is missing image URLs"}
	}
	return out, nil
}

// GenerateComposite calls the composite endpoint.
func (c *Client) GenerateComposite(ctx context.Context, req CompositeRequest) (CompositeResult, error) {
	res, err := c.do(ctx, OpComposite, PathComposite, req)
	if err != nil {
		return CompositeResult{}, err
	}
	if !succeeded(res, false) {
		return CompositeResult{}, semanticError(OpComposite, res, "failed to create marketing image")
	}

	out := CompositeResult{
		ImageURL:    firstString(res, "compositeImageUrl", "driveUrl", "previewUrl"),
		ImageBase64: firstString(res, "compositeImageBase64", "imageBase64"),
		MimeType:    firstString(res, "mimeType", "mimetype"),
	}
	if out.ImageURL == "" && out.ImageBase64 == "" {
		return CompositeResult{}, &Error{Op: OpComposite, Message: "response is missing the composite image"}
	}
	if out.ImageBase64 != "" && out.MimeType == "" {
		out.MimeType = "image/png"
	}
	return out, nil
}

// PostComposite publishes a composite. HTTP 2xx counts as success unless the
// body explicitly says otherwise.
func (c *Client) PostComposite(ctx context.Context, req PostRequest) error {
	res, err := c.do(ctx, OpPost, PathPost, req)
	if err != nil {
		return err
	}
	if !succeeded(res, true) {
		return semanticError(OpPost, res, "posting failed")
	}
	return nil
}

// SchedulePosts queues posts. HTTP 2xx counts as success unless the body
// explicitly says otherwise.
func (c *Client) SchedulePosts(ctx context.Context, req ScheduleRequest) error {
	res, err := c.do(ctx, OpSchedule, PathSchedule, req)
	if err != nil {
		return err
	}
	if !succeeded(res, true) {
		return semanticError(OpSchedule, res, "scheduling failed")
	}
	return nil
}

// GenerateAIDog asks the service to invent a dog. The body is empty; HTTP 2xx
// counts as success unless the body says otherwise, but a name is required.
func (c *Client) GenerateAIDog(ctx context.Context) (AIDog, error) {
	res, err := c.do(ctx, OpAIDog, PathAIDog, struct{}{})
	if err != nil {
		return AIDog{}, err
	}
	if !succeeded(res, true) {
		return AIDog{}, semanticError(OpAIDog, res, "dog generation failed")
	}

	out := AIDog{
		Name:        firstString(res, "name", "dogName"),
		ImageBase64: firstString(res, "imageBase64", "image"),
		MimeType:    firstString(res, "mimeType", "mimetype"),
	}
	if out.Name == "" {
		return AIDog{}, &Error{Op: OpAIDog, Message: "response is missing the dog name"}
	}
	if out.ImageBase64 != "" && out.MimeType == "" {
		out.MimeType = "image/png"
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op Op, path string, payload any) (res gjson.Result, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordWebhookCall(string(op), time.Since(start), err)
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, &Error{Op: op, Message: "failed to marshal request", Err: err}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	url := c.BaseURL + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, &Error{Op: op, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("Calling webhook", "op", op, "url", url, "bytes", len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		msg := "failed to send request"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return gjson.Result{}, &Error{Op: op, Message: msg, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, &Error{Op: op, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, &Error{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	res, err = Normalize(raw)
	if err != nil {
		return gjson.Result{}, &Error{Op: op, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return res, nil
}

func semanticError(op Op, res gjson.Result, fallback string) error {
	msg := firstString(res, "error", "message")
	if msg == "" {
		msg = fallback
	}
	return &Error{Op: op, Message: msg}
}

// errorMessage extracts a readable message from a failed response body.
func errorMessage(raw []byte) string {
	if res, err := Normalize(raw); err == nil {
		if msg := firstString(res, "error", "message"); msg != "" {
			return msg
		}
	}
	text := strings.TrimSpace(strings.ToValidUTF8(string(raw), "\uFFFD"))
	if r := []rune(text); len(r) > maxErrorRunes {
		text = string(r[:maxErrorRunes]) + "..."
	}
	if text == "" {
		return "empty response body"
	}
	return text
}
