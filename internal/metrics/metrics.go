package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for fgmail
type Metrics struct {
	// Renderer
	RendersTotal         *prometheus.CounterVec
	RenderFallbacksTotal prometheus.Counter

	// Delivery
	MessagesSentTotal      *prometheus.CounterVec
	MessagesFailedTotal    *prometheus.CounterVec
	RateLimitExceededTotal *prometheus.CounterVec

	// Campaign dispatch
	DispatchesTotal         *prometheus.CounterVec
	DispatchDurationSeconds prometheus.Histogram

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	// System and content gauges
	UptimeSeconds    prometheus.Gauge
	Goroutines       prometheus.Gauge
	StorageUsedBytes prometheus.Gauge
	TemplatesStored  prometheus.Gauge
	ReportsStored    prometheus.Gauge
	SandboxMessages  prometheus.Gauge

	registry *prometheus.Registry

	// counters by metric name, for persistence
	counters map[string]*prometheus.CounterVec
	shadow   map[string]map[string]float64
	mu       sync.Mutex
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RendersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fgmail_renders_total",
				Help: "Total number of rendered campaign emails by resolved template",
			},
			[]string{"slug"},
		),
		RenderFallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fgmail_render_fallbacks_total",
				Help: "Total number of renders of an unknown slug that fell back to modern",
			},
		),

		MessagesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fgmail_messages_sent_total",
				Help: "Total number of messages accepted by the mail provider",
			},
			[]string{"provider"},
		),
		MessagesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fgmail_messages_failed_total",
				Help: "Total number of messages that could not be sent",
			},
			[]string{"provider", "error_type"},
		),
		RateLimitExceededTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fgmail_ratelimit_exceeded_total",
				Help: "Total number of sends refused by a send quota",
			},
			[]string{"level"},
		),

		DispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fgmail_dispatches_total",
				Help: "Total number of campaign dispatches by final status",
			},
			[]string{"status"},
		),
		DispatchDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fgmail_dispatch_duration_seconds",
				Help:    "Campaign dispatch duration in seconds",
				Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 300, 900},
			},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fgmail_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fgmail_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fgmail_api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"error_type"},
		),

		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fgmail_uptime_seconds",
			Help: "Server uptime in seconds",
		}),
		Goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fgmail_goroutines",
			Help: "Number of active goroutines",
		}),
		StorageUsedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fgmail_storage_used_bytes",
			Help: "BoltDB file size in bytes",
		}),
		TemplatesStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fgmail_templates_stored",
			Help: "Number of saved campaign templates",
		}),
		ReportsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fgmail_reports_stored",
			Help: "Number of stored dispatch reports",
		}),
		SandboxMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fgmail_sandbox_messages",
			Help: "Number of messages held in the sandbox",
		}),

		registry: reg,
		shadow:   make(map[string]map[string]float64),
	}

	m.counters = map[string]*prometheus.CounterVec{
		"renders":            m.RendersTotal,
		"messages_sent":      m.MessagesSentTotal,
		"messages_failed":    m.MessagesFailedTotal,
		"ratelimit_exceeded": m.RateLimitExceededTotal,
		"dispatches":         m.DispatchesTotal,
		"api_requests":       m.APIRequestsTotal,
		"api_errors":         m.APIErrorsTotal,
	}

	reg.MustRegister(
		m.RendersTotal,
		m.RenderFallbacksTotal,
		m.MessagesSentTotal,
		m.MessagesFailedTotal,
		m.RateLimitExceededTotal,
		m.DispatchesTotal,
		m.DispatchDurationSeconds,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		m.UptimeSeconds,
		m.Goroutines,
		m.StorageUsedBytes,
		m.TemplatesStored,
		m.ReportsStored,
		m.SandboxMessages,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// inc increments a labelled counter and its persisted shadow value
func (m *Metrics) inc(name string, labels ...string) {
	m.add(name, 1, labels...)
}

func (m *Metrics) add(name string, v float64, labels ...string) {
	vec, ok := m.counters[name]
	if !ok {
		return
	}
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return
	}
	c.Add(v)

	m.mu.Lock()
	if m.shadow[name] == nil {
		m.shadow[name] = make(map[string]float64)
	}
	m.shadow[name][strings.Join(labels, "|")] += v
	m.mu.Unlock()
}

// snapshot copies the shadow counters
func (m *Metrics) snapshot() map[string]map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]map[string]float64, len(m.shadow))
	for name, values := range m.shadow {
		cp := make(map[string]float64, len(values))
		for k, v := range values {
			cp[k] = v
		}
		out[name] = cp
	}
	return out
}

// restore adds persisted counter values back into the live counters
func (m *Metrics) restore(saved map[string]map[string]float64) {
	for name, values := range saved {
		if _, ok := m.counters[name]; !ok {
			continue
		}
		for key, v := range values {
			m.add(name, v, strings.Split(key, "|")...)
		}
	}
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncRenders counts one render of the resolved slug
func IncRenders(slug string, fallback bool) {
	m := Global()
	if m == nil {
		return
	}
	m.inc("renders", slug)
	if fallback {
		m.RenderFallbacksTotal.Inc()
	}
}

// IncMessagesSent increments the sent message counter
func IncMessagesSent(provider string) {
	if m := Global(); m != nil {
		m.inc("messages_sent", provider)
	}
}

// IncMessagesFailed increments the failed message counter
func IncMessagesFailed(provider, errorType string) {
	if m := Global(); m != nil {
		m.inc("messages_failed", provider, errorType)
	}
}

// IncRateLimitExceeded increments rate limit exceeded counter
func IncRateLimitExceeded(level string) {
	if m := Global(); m != nil {
		m.inc("ratelimit_exceeded", level)
	}
}

// ObserveDispatch records a finished campaign dispatch
func ObserveDispatch(status string, d time.Duration) {
	m := Global()
	if m == nil {
		return
	}
	m.inc("dispatches", status)
	m.DispatchDurationSeconds.Observe(d.Seconds())
}

// IncAPIErrors increments API error counter
func IncAPIErrors(errorType string) {
	if m := Global(); m != nil {
		m.inc("api_errors", errorType)
	}
}
