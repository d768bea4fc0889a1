package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for Postcard
type Metrics struct {
	// Rendering and delivery
	RendersTotal        *prometheus.CounterVec
	MessagesSentTotal   *prometheus.CounterVec
	MessagesFailedTotal *prometheus.CounterVec

	// Campaigns and automation
	CampaignsTotal     *prometheus.CounterVec
	WebhookEventsTotal *prometheus.CounterVec

	// Account state
	CreditsRemaining  prometheus.Gauge
	SubscribersActive prometheus.Gauge

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	// System metrics
	UptimeSeconds    prometheus.Gauge
	Goroutines       prometheus.Gauge
	StorageUsedBytes prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RendersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postcard_renders_total",
				Help: "Total number of rendered emails",
			},
			[]string{"variant"},
		),
		MessagesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postcard_messages_sent_total",
				Help: "Total number of messages accepted by the gateway",
			},
			[]string{"gateway", "source"},
		),
		MessagesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postcard_messages_failed_total",
				Help: "Total number of messages the gateway rejected",
			},
			[]string{"gateway", "source", "error_type"},
		),

		CampaignsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postcard_campaigns_total",
				Help: "Total number of campaigns by final status",
			},
			[]string{"status"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postcard_webhook_events_total",
				Help: "Total number of webhook events received",
			},
			[]string{"type", "outcome"},
		),

		CreditsRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "postcard_credits_remaining",
				Help: "Email credits left on the account",
			},
		),
		SubscribersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "postcard_subscribers_active",
				Help: "Number of active subscribers",
			},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postcard_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "postcard_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postcard_api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"error_type"},
		),

		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "postcard_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "postcard_goroutines",
				Help: "Number of active goroutines",
			},
		),
		StorageUsedBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "postcard_storage_used_bytes",
				Help: "BoltDB file size in bytes",
			},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.RendersTotal,
		m.MessagesSentTotal,
		m.MessagesFailedTotal,
		m.CampaignsTotal,
		m.WebhookEventsTotal,
		m.CreditsRemaining,
		m.SubscribersActive,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		m.UptimeSeconds,
		m.Goroutines,
		m.StorageUsedBytes,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
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

// IncRenders counts a rendered email
func IncRenders(variant string) {
	if m := Global(); m != nil {
		m.RendersTotal.WithLabelValues(variant).Inc()
	}
}

// IncMessagesSent counts a message accepted by a gateway
func IncMessagesSent(gateway, source string) {
	if m := Global(); m != nil {
		m.MessagesSentTotal.WithLabelValues(gateway, source).Inc()
	}
}

// IncMessagesFailed counts a message a gateway rejected
func IncMessagesFailed(gateway, source, errorType string) {
	if m := Global(); m != nil {
		m.MessagesFailedTotal.WithLabelValues(gateway, source, errorType).Inc()
	}
}

// IncCampaigns counts a campaign reaching status
func IncCampaigns(status string) {
	if m := Global(); m != nil {
		m.CampaignsTotal.WithLabelValues(status).Inc()
	}
}

// IncWebhookEvents counts a received webhook event
func IncWebhookEvents(eventType, outcome string) {
	if m := Global(); m != nil {
		m.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
	}
}

// SetCreditsRemaining updates the credits gauge
func SetCreditsRemaining(n int64) {
	if m := Global(); m != nil {
		m.CreditsRemaining.Set(float64(n))
	}
}
