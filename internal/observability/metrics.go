package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the dispatcher, resolver, and
// HTTP surfaces.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	jobsClaimedTotal    *prometheus.CounterVec
	jobsSentTotal       *prometheus.CounterVec
	jobsFailedTotal     *prometheus.CounterVec
	sendDuration        *prometheus.HistogramVec
	workerInflight      *prometheus.GaugeVec
	callbacksTotal      *prometheus.CounterVec
	reclaimedTotal      prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "equibid",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "equibid",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		jobsClaimedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "equibid",
				Name:      "jobs_claimed_total",
				Help:      "Total number of notification jobs claimed by workers.",
			},
			[]string{"channel"},
		),
		jobsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "equibid",
				Name:      "jobs_sent_total",
				Help:      "Total number of notification jobs sent successfully.",
			},
			[]string{"channel"},
		),
		jobsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "equibid",
				Name:      "jobs_failed_total",
				Help:      "Total number of notification jobs that ended in failed state.",
			},
			[]string{"channel", "reason"},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "equibid",
				Name:      "send_duration_seconds",
				Help:      "Provider send duration in seconds grouped by channel.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "equibid",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight dispatch cycles grouped by channel.",
			},
			[]string{"channel"},
		),
		callbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "equibid",
				Name:      "callbacks_total",
				Help:      "Total number of webhook callbacks by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		reclaimedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "equibid",
				Name:      "stale_claims_reclaimed_total",
				Help:      "Total number of stale job claims returned to pending.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.jobsClaimedTotal,
		m.jobsSentTotal,
		m.jobsFailedTotal,
		m.sendDuration,
		m.workerInflight,
		m.callbacksTotal,
		m.reclaimedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncClaim(channel string) {
	if m == nil {
		return
	}
	m.jobsClaimedTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) IncJobSent(channel string) {
	if m == nil {
		return
	}
	m.jobsSentTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) IncJobFailed(channel string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.jobsFailedTotal.WithLabelValues(normalizeChannel(channel), reasonLabel).Inc()
}

func (m *Metrics) ObserveSendDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sendDuration.WithLabelValues(normalizeChannel(channel)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(channel string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) DecWorkerInFlight(channel string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeChannel(channel)).Dec()
}

func (m *Metrics) IncCallback(action string, outcome string) {
	if m == nil {
		return
	}
	actionLabel := strings.TrimSpace(strings.ToLower(action))
	if actionLabel == "" {
		actionLabel = "unknown"
	}
	outcomeLabel := strings.TrimSpace(strings.ToLower(outcome))
	if outcomeLabel == "" {
		outcomeLabel = "unknown"
	}
	m.callbacksTotal.WithLabelValues(actionLabel, outcomeLabel).Inc()
}

func (m *Metrics) AddReclaimed(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.reclaimedTotal.Add(float64(count))
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeChannel(channel string) string {
	normalized := strings.ToLower(strings.TrimSpace(channel))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
