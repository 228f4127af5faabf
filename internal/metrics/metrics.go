package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	webhookCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coloringbook",
			Subsystem: "webhook",
			Name:      "calls_total",
			Help:      "Total webhook calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coloringbook",
			Subsystem: "webhook",
			Name:      "call_duration_seconds",
			Help:      "Duration of webhook calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"op"},
	)

	passItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coloringbook",
			Subsystem: "bulk",
			Name:      "pass_items_total",
			Help:      "Items processed by bulk passes, by pass and outcome.",
		},
		[]string{"pass", "outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coloringbook",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	Registry.MustRegister(
		webhookCalls,
		webhookDuration,
		passItems,
		httpRequests,
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordWebhookCall records one webhook round trip.
func RecordWebhookCall(op string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	webhookCalls.WithLabelValues(op, outcome).Inc()
	webhookDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordPassItem records the outcome of one item inside a bulk pass.
func RecordPassItem(pass string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	passItems.WithLabelValues(pass, outcome).Inc()
}

// InstrumentHandler counts requests by method, top-level path and status.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequests.WithLabelValues(r.Method, canonicalPath(r.URL.Path), strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath keeps label cardinality bounded by dropping ids.
func canonicalPath(raw string) string {
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "/"
	}
	if parts[0] != "api" || len(parts) < 2 {
		return "/" + parts[0]
	}
	return "/api/" + parts[1]
}
