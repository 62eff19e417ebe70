package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bridge's Prometheus collectors.
//
// All recording methods are safe to call on a nil *Metrics, so components can
// take an optional metrics dependency without guarding every call site.
type Metrics struct {
	registry *prometheus.Registry

	// MessageCounter tracks WhatsApp messages.
	// Labels: direction (inbound|outbound), source (live|history|api|auto_reply)
	MessageCounter *prometheus.CounterVec

	// LLMRequestDuration measures model latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts model calls.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// AutoReplyCounter counts auto-reply outcomes.
	// Labels: status (sent|skipped|error)
	AutoReplyCounter *prometheus.CounterVec

	// HTTPRequestDuration measures API latency.
	// Labels: method, route, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// Connected is 1 while the WhatsApp socket is up.
	Connected prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		MessageCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wabridge_messages_total",
				Help: "Total number of WhatsApp messages by direction and source",
			},
			[]string{"direction", "source"},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wabridge_llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wabridge_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		AutoReplyCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wabridge_auto_replies_total",
				Help: "Auto-reply attempts by outcome",
			},
			[]string{"status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wabridge_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"method", "route", "status_code"},
		),

		Connected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wabridge_whatsapp_connected",
			Help: "Whether the WhatsApp client is connected (1) or not (0)",
		}),
	}
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// MessageReceived counts an inbound message
func (m *Metrics) MessageReceived(source string) {
	if m == nil {
		return
	}
	m.MessageCounter.WithLabelValues("inbound", source).Inc()
}

// MessageSent counts an outbound message
func (m *Metrics) MessageSent(source string) {
	if m == nil {
		return
	}
	m.MessageCounter.WithLabelValues("outbound", source).Inc()
}

// RecordLLMRequest records one model call.
//
//	start := time.Now()
//	reply, err := llm.GenerateResponse(ctx, turns)
//	metrics.RecordLLMRequest("ollama", "llama3", status, time.Since(start).Seconds())
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
}

func (m *Metrics) RecordAutoReply(status string) {
	if m == nil {
		return
	}
	m.AutoReplyCounter.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, statusCode).Observe(durationSeconds)
}

// SetConnected flips the connection gauge
func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}
