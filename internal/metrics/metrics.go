package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application metrics on a private registry so several
// instances can coexist in one process (tests, multiple binaries).
type Metrics struct {
	registry *prometheus.Registry

	BookingAttempts   *prometheus.CounterVec
	BookingLatency    prometheus.Histogram
	BookingRetries    prometheus.Counter
	AnalyticsLatency  *prometheus.HistogramVec
	AnalyticsFailures *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
	AlertsEmitted     *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		BookingAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Slot booking attempts by outcome",
		}, []string{"outcome"}),
		BookingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "duration_seconds",
			Help:      "Time spent booking a slot, retries included",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		BookingRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "retries_total",
			Help:      "Booking retries after transient store errors",
		}),
		AnalyticsLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "duration_seconds",
			Help:      "Duration of analytics computations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		AnalyticsFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "failures_total",
			Help:      "Analytics computations that returned an error",
		}, []string{"operation"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "cache_lookups_total",
			Help:      "Analytics cache lookups by result",
		}, []string{"result"}),
		AlertsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "alerts_emitted_total",
			Help:      "Predictive alerts emitted by severity",
		}, []string{"severity"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// The helpers below are nil safe so callers can run without metrics.

func (m *Metrics) ObserveBooking(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.BookingAttempts.WithLabelValues(outcome).Inc()
	m.BookingLatency.Observe(d.Seconds())
}

func (m *Metrics) IncBookingRetry() {
	if m == nil {
		return
	}
	m.BookingRetries.Inc()
}

func (m *Metrics) ObserveAnalytics(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.AnalyticsLatency.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		m.AnalyticsFailures.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncAlert(severity string) {
	if m == nil {
		return
	}
	m.AlertsEmitted.WithLabelValues(severity).Inc()
}
