package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "temporada_"

// Metrics groups the service collectors. All methods are nil-safe so
// components can run without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	pricingRuns     *prometheus.CounterVec
	holidayFetches  *prometheus.CounterVec
	holidaysCached  prometheus.Gauge
	leadsSubmitted  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pricingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "pricing_runs_total",
			Help: "Priced calendars computed, by view",
		}, []string{"view"}),
		holidayFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "holiday_fetches_total",
			Help: "Holiday lookups by result (ok, error)",
		}, []string{"source", "result"}),
		holidaysCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "holidays_cached",
			Help: "Holidays held by the last successful refresh",
		}),
		leadsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "leads_submitted_total",
			Help: "Lead submissions by outcome",
		}, []string{"status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		m.pricingRuns,
		m.holidayFetches,
		m.holidaysCached,
		m.leadsSubmitted,
		m.requestDuration,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PricingRun(view string) {
	if m == nil {
		return
	}
	m.pricingRuns.WithLabelValues(view).Inc()
}

func (m *Metrics) HolidayFetch(source string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.holidayFetches.WithLabelValues(source, result).Inc()
}

func (m *Metrics) HolidaysCached(n int) {
	if m == nil {
		return
	}
	m.holidaysCached.Set(float64(n))
}

func (m *Metrics) LeadSubmitted(status string) {
	if m == nil {
		return
	}
	m.leadsSubmitted.WithLabelValues(status).Inc()
}

// ObserveRequest records the latency of one request since start.
func (m *Metrics) ObserveRequest(route string, start time.Time) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
