package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/watt-toolkit/inlet/pkg/inlet/http11"
)

// Metrics holds the Prometheus collectors of a server. It implements
// http11.Observer.
type Metrics struct {
	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	requestErrors     *prometheus.CounterVec
	bytesRead         prometheus.Counter
	bytesWritten      prometheus.Counter
	bufferGrowths     prometheus.Counter
	bufferGrowSize    prometheus.Histogram
}

var _ http11.Observer = (*Metrics)(nil)

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		connectionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "inlet",
				Subsystem: "server",
				Name:      "connections_total",
				Help:      "Total number of accepted connections",
			},
		),
		connectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "inlet",
				Subsystem: "server",
				Name:      "connections_active",
				Help:      "Number of open connections",
			},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "inlet",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of responses sent, by method and status",
			},
			[]string{"method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "inlet",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Time from a complete request to its sent response",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"method"},
		),
		requestErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "inlet",
				Subsystem: "http",
				Name:      "request_errors_total",
				Help:      "Total number of failed requests, by status",
			},
			[]string{"status"},
		),
		bytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "inlet",
				Subsystem: "server",
				Name:      "read_bytes_total",
				Help:      "Total bytes read from connections",
			},
		),
		bytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "inlet",
				Subsystem: "server",
				Name:      "written_bytes_total",
				Help:      "Total bytes written to connections",
			},
		),
		bufferGrowths: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "inlet",
				Subsystem: "accumulator",
				Name:      "grows_total",
				Help:      "Total number of request buffer reallocations",
			},
		),
		bufferGrowSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "inlet",
				Subsystem: "accumulator",
				Name:      "grown_size_bytes",
				Help:      "Request buffer capacity after a reallocation",
				Buckets:   prometheus.ExponentialBuckets(64<<10, 2, 8),
			},
		),
	}
}

// RequestDone implements http11.Observer.
func (m *Metrics) RequestDone(method string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RequestFailed implements http11.Observer.
func (m *Metrics) RequestFailed(err error) {
	m.requestErrors.WithLabelValues(strconv.Itoa(http11.StatusOf(err))).Inc()
}

// BufferGrown implements http11.Observer.
func (m *Metrics) BufferGrown(from, to int) {
	m.bufferGrowths.Inc()
	m.bufferGrowSize.Observe(float64(to))
}

func (m *Metrics) connOpened() {
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

func (m *Metrics) connClosed() {
	m.connectionsActive.Dec()
}

func (m *Metrics) read(n int) {
	m.bytesRead.Add(float64(n))
}

func (m *Metrics) written(n int) {
	m.bytesWritten.Add(float64(n))
}
