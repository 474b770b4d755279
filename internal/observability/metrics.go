// Package observability provides Prometheus metrics for the quote pipeline.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Fetch metrics
	FetchDuration  *prometheus.HistogramVec
	FetchErrors    *prometheus.CounterVec
	ReadingsTotal  *prometheus.CounterVec
	FallbacksTotal *prometheus.CounterVec

	// Buffer metrics
	HistoryLength *prometheus.GaugeVec

	// Poller metrics
	PollsTotal      prometheus.Counter
	LastPollSeconds prometheus.Gauge

	// Publishing metrics
	PublishErrors *prometheus.CounterVec

	// Stream metrics
	StreamClients prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "marketfeed"
	}

	m := &Metrics{
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a provider fetch per instrument",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"instrument"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "fetch_errors_total",
			Help:      "Instruments whose fetch chain failed and produced an error entry",
		}, []string{"instrument"}),
		ReadingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "readings_total",
			Help:      "Readings appended to history by source",
		}, []string{"instrument", "source"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "fallbacks_total",
			Help:      "Live fetches replaced by synthetic data, by reason",
		}, []string{"instrument", "reason"}),
		HistoryLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "length",
			Help:      "Points currently held per instrument",
		}, []string{"instrument"}),
		PollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "polls_total",
			Help:      "Completed fetch-all cycles",
		}),
		LastPollSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "last_poll_timestamp_seconds",
			Help:      "Unix time of the last completed fetch-all",
		}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "publish_errors_total",
			Help:      "Snapshot publish failures by publisher",
		}, []string{"publisher"}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Connected WebSocket clients",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.FetchDuration, m.FetchErrors, m.ReadingsTotal, m.FallbacksTotal,
		m.HistoryLength, m.PollsTotal, m.LastPollSeconds, m.PublishErrors, m.StreamClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveFetch(instrument string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(instrument).Observe(d.Seconds())
}

func (m *Metrics) RecordReading(instrument, source string, historyLen int) {
	if m == nil {
		return
	}
	m.ReadingsTotal.WithLabelValues(instrument, source).Inc()
	m.HistoryLength.WithLabelValues(instrument).Set(float64(historyLen))
}

func (m *Metrics) RecordFetchError(instrument string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(instrument).Inc()
}

func (m *Metrics) RecordFallback(instrument, reason string) {
	if m == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(instrument, reason).Inc()
}

func (m *Metrics) RecordPoll(at time.Time) {
	if m == nil {
		return
	}
	m.PollsTotal.Inc()
	m.LastPollSeconds.Set(float64(at.Unix()))
}

func (m *Metrics) RecordPublishError(publisher string) {
	if m == nil {
		return
	}
	m.PublishErrors.WithLabelValues(publisher).Inc()
}

func (m *Metrics) StreamClientDelta(delta int) {
	if m == nil {
		return
	}
	m.StreamClients.Add(float64(delta))
}
