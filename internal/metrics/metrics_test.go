package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCanonicalPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "/"},
		{"/", "/"},
		{"/healthcheck", "/healthcheck"},
		{"/api/bulk/items/abc/caption", "/api/bulk"},
		{"/api/single/1234/coloring", "/api/single"},
		{"/api/templates/customizable", "/api/templates"},
		{"/metrics", "/metrics"},
	}
	for _, tt := range tests {
		if got := canonicalPath(tt.in); got != tt.want {
			t.Errorf("canonicalPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	RecordWebhookCall("coloring", 120*time.Millisecond, nil)
	RecordWebhookCall("coloring", 10*time.Millisecond, errors.New("boom"))
	RecordPassItem("composites", true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`coloringbook_webhook_calls_total{op="coloring",outcome="success"}`,
		`coloringbook_webhook_calls_total{op="coloring",outcome="failure"}`,
		`coloringbook_bulk_pass_items_total{outcome="success",pass="composites"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics output to contain %s", want)
		}
	}
}
