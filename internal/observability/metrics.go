package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the gateway.
type Metrics struct {
	registry *prometheus.Registry

	EngineCalls        *prometheus.CounterVec
	EngineCallDuration *prometheus.HistogramVec
	WebhookEvents      *prometheus.CounterVec
	QRGenerations      prometheus.Counter
	WSClients          prometheus.Gauge
	SessionReady       prometheus.Gauge
}

// NewMetrics builds the instrument set on its own registry so tests can
// hold independent sets without duplicate-registration panics.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		EngineCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_calls_total",
			Help:      "Remote engine calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		EngineCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_call_duration_ms",
			Help:      "Remote engine call duration in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 15000, 30000, 60000, 90000},
		}, []string{"endpoint"}),
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound webhook events by type.",
		}, []string{"event"}),
		QRGenerations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qr_generations_total",
			Help:      "QR artifacts generated (cache hits excluded).",
		}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected realtime websocket clients.",
		}),
		SessionReady: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_ready",
			Help:      "1 while the session is in WORKING state.",
		}),
	}
}

// ObserveEngineCall records one remote call.
func (m *Metrics) ObserveEngineCall(endpoint, outcome string, d time.Duration) {
	m.EngineCalls.WithLabelValues(endpoint, outcome).Inc()
	m.EngineCallDuration.WithLabelValues(endpoint).Observe(float64(d.Milliseconds()))
}

// Handler serves this instrument set's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
