package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the process-wide capture counters. It is constructed once
// in main and passed to handlers; there is no package-level instance.
type Collector struct {
	AppName string

	CapturesTotal    *prometheus.CounterVec
	ResponsesTotal   *prometheus.CounterVec
	BytesInTotal     prometheus.Counter
	FilesStoredTotal prometheus.Counter
	CaptureErrors    prometheus.Counter
	ActiveRequests   prometheus.Gauge
	CaptureDuration  prometheus.Histogram
}

func NewCollector(reg prometheus.Registerer, namespace, appName string) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		AppName: appName,

		CapturesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "captures_total",
				Help:      "Total number of captured requests",
			},
			[]string{"app", "method"},
		),

		ResponsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "responses_total",
				Help:      "Capture responses by status class",
			},
			[]string{"app", "status_class"},
		),

		BytesInTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_in_total",
				Help:      "Total request body bytes received",
				ConstLabels: prometheus.Labels{
					"app": appName,
				},
			},
		),

		FilesStoredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_stored_total",
				Help:      "Total uploaded files written to disk",
				ConstLabels: prometheus.Labels{
					"app": appName,
				},
			},
		),

		CaptureErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capture_errors_total",
				Help:      "Total failed captures",
				ConstLabels: prometheus.Labels{
					"app": appName,
				},
			},
		),

		ActiveRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_requests",
				Help:      "Number of in-flight capture requests",
				ConstLabels: prometheus.Labels{
					"app": appName,
				},
			},
		),

		CaptureDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "capture_duration_seconds",
				Help:      "Capture handling duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
				ConstLabels: prometheus.Labels{
					"app": appName,
				},
			},
		),
	}
}

func (m *Collector) IncCaptured(method string) {
	m.CapturesTotal.With(prometheus.Labels{"app": m.AppName, "method": method}).Inc()
}

func (m *Collector) IncResponse(statusClass string) {
	m.ResponsesTotal.With(prometheus.Labels{"app": m.AppName, "status_class": statusClass}).Inc()
}

func (m *Collector) AddBytesIn(n int) {
	m.BytesInTotal.Add(float64(n))
}

func (m *Collector) AddFilesStored(n int) {
	m.FilesStoredTotal.Add(float64(n))
}

func (m *Collector) IncCaptureError() {
	m.CaptureErrors.Inc()
}

func (m *Collector) IncActiveRequests() {
	m.ActiveRequests.Inc()
}

func (m *Collector) DecActiveRequests() {
	m.ActiveRequests.Dec()
}

func (m *Collector) ObserveCaptureDuration(d time.Duration) {
	m.CaptureDuration.Observe(d.Seconds())
}
