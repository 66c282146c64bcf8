package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics bundles the Prometheus collectors a running server updates and
// a Registry a gateway can serve on a /metrics endpoint, alongside the
// OTel meter instruments fed by the same events. The OTel instruments
// come from a private MeterProvider built by NewMetrics with no reader or
// exporter, so their values are not exported; only the Prometheus side
// can be observed.
type Metrics struct {
	Registry *prometheus.Registry

	AdmissionRejections *prometheus.CounterVec
	RequestBodySize     prometheus.Histogram
	LiveConnections     prometheus.Gauge

	requestDuration  otelmetric.Float64Histogram
	liveConnsCounter otelmetric.Int64UpDownCounter
}

// NewMetrics builds and registers a fresh Metrics instance, wiring both
// its Prometheus collectors and its OTel meter instruments.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		AdmissionRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpcore",
			Name:      "admission_rejections_total",
			Help:      "Requests rejected by admission control, by response status.",
		}, []string{"status"}),
		RequestBodySize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "httpcore",
			Name:      "request_body_bytes",
			Help:      "Size in bytes of accepted request bodies.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
		}),
		LiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "httpcore",
			Name:      "live_connections",
			Help:      "Connections currently attached to a transport.",
		}),
	}

	registry.MustRegister(m.AdmissionRejections, m.RequestBodySize, m.LiveConnections)

	meter := sdkmetric.NewMeterProvider().Meter(ServiceName)
	m.requestDuration, _ = meter.Float64Histogram(
		"httpcore.request.duration",
		otelmetric.WithDescription("Time spent dispatching a request to its handler."),
		otelmetric.WithUnit("s"),
	)
	m.liveConnsCounter, _ = meter.Int64UpDownCounter(
		"httpcore.live_connections",
		otelmetric.WithDescription("Connections currently attached to a transport."),
	)

	return m
}

// AdmissionRejected implements server.Metrics.
func (m *Metrics) AdmissionRejected(status int) {
	m.AdmissionRejections.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ObserveRequestBody implements server.Metrics.
func (m *Metrics) ObserveRequestBody(size int64) {
	m.RequestBodySize.Observe(float64(size))
}

// ConnectionAttached implements server.Metrics.
func (m *Metrics) ConnectionAttached() {
	m.LiveConnections.Inc()
	m.liveConnsCounter.Add(context.Background(), 1)
}

// ConnectionClosed implements server.Metrics.
func (m *Metrics) ConnectionClosed() {
	m.LiveConnections.Dec()
	m.liveConnsCounter.Add(context.Background(), -1)
}

// ObserveRequestDuration implements app.RequestMetrics.
func (m *Metrics) ObserveRequestDuration(d time.Duration) {
	m.requestDuration.Record(context.Background(), d.Seconds())
}
