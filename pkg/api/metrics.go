package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ssargent/binderdump/pkg/capture"
	"github.com/ssargent/binderdump/pkg/pcapng"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

var (
	_ capture.Observer = (*Metrics)(nil)
	_ pcapng.Observer  = (*Metrics)(nil)
)

// Metrics holds the Prometheus metrics of a capture session. It observes
// both the event pipeline and the packet generator.
type Metrics struct {
	// Pipeline metrics
	eventsReceived *prometheus.CounterVec
	eventsDropped  *prometheus.CounterVec
	groupSize      prometheus.Histogram
	groupsDropped  *prometheus.CounterVec

	// Output metrics
	packetsWritten prometheus.Counter
	bytesWritten   prometheus.Counter
	offsetFailures prometheus.Counter

	// HTTP request metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	healthChecksTotal   *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		eventsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "binderdump_events_received_total",
				Help: "Total number of kernel events received, by kind",
			},
			[]string{"kind"},
		),
		eventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "binderdump_events_dropped_total",
				Help: "Total number of kernel events dropped before aggregation",
			},
			[]string{"reason"},
		),
		groupSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "binderdump_group_events",
				Help:    "Number of events per emitted group",
				Buckets: prometheus.LinearBuckets(1, 1, 8),
			},
		),
		groupsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "binderdump_groups_dropped_total",
				Help: "Total number of event groups that produced no packet",
			},
			[]string{"reason"},
		),

		packetsWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "binderdump_packets_written_total",
				Help: "Total number of packets written to the capture file",
			},
		),
		bytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "binderdump_bytes_written_total",
				Help: "Total number of packet bytes written to the capture file",
			},
		),
		offsetFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "binderdump_offset_failures_total",
				Help: "Total number of packets whose offset tree could not be rebuilt",
			},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "binderdump_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "binderdump_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		healthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "binderdump_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}
}

func (m *Metrics) EventReceived(kind capture.EventKind) {
	m.eventsReceived.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) EventDropped(reason string) {
	m.eventsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) GroupEmitted(events int) {
	m.groupSize.Observe(float64(events))
}

func (m *Metrics) GroupDropped(reason string) {
	m.groupsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) PacketWritten(size int) {
	m.packetsWritten.Inc()
	m.bytesWritten.Add(float64(size))
}

// OffsetFailure records a packet that decoded but whose offset tree did not.
func (m *Metrics) OffsetFailure() {
	m.offsetFailures.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *Metrics) RecordHealthCheck(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.healthChecksTotal.WithLabelValues(status).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)
		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
