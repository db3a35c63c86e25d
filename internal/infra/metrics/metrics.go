// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bryanwahyu/contract-shield/internal/application/history"
	"github.com/bryanwahyu/contract-shield/internal/domain/contracts"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec

	HistoryEntries  prometheus.Gauge
	CachedAnalyses  prometheus.Gauge
	FavoriteEntries prometheus.Gauge
	Analyzing       prometheus.Gauge

	RequestDurationHistogram *prometheus.HistogramVec
	APIRequestCounter        *prometheus.CounterVec
	RequestsInFlight         prometheus.Gauge
}

// New registers all collectors on reg. A nil reg gets a fresh registry.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		AnalysesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Total number of contract analyses by outcome",
			},
			[]string{"outcome"},
		),
		AnalysisDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Duration of contract analyses in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"outcome"},
		),

		HistoryEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_entries",
			Help:      "Number of entries in the analysis history",
		}),
		CachedAnalyses: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_analyses",
			Help:      "Number of full analyses kept in the cache",
		}),
		FavoriteEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "favorite_entries",
			Help:      "Number of history entries marked as favorite",
		}),
		Analyzing: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analysis_in_progress",
			Help:      "1 while an analysis is running",
		}),

		RequestDurationHistogram: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		APIRequestCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests being served",
		}),
	}
}

func (m *Metrics) ObserveAnalysis(outcome string, elapsed time.Duration) {
	m.AnalysesTotal.WithLabelValues(outcome).Inc()
	m.AnalysisDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) RequestStarted() { m.RequestsInFlight.Inc() }

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.RequestsInFlight.Dec()
	m.APIRequestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDurationHistogram.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveHistory keeps the history gauges in step with the store. Register
// it with history.Store.Subscribe.
func (m *Metrics) ObserveHistory(s history.State) {
	m.HistoryEntries.Set(float64(len(s.History)))
	m.CachedAnalyses.Set(float64(len(s.Analyses)))
	favorites := 0
	for _, h := range s.History {
		if h.IsFavorite {
			favorites++
		}
	}
	m.FavoriteEntries.Set(float64(favorites))
	if s.Analyzing {
		m.Analyzing.Set(1)
	} else {
		m.Analyzing.Set(0)
	}
}

// Seed sets the history gauges from a snapshot taken at startup.
func (m *Metrics) Seed(snap contracts.HistorySnapshot) {
	m.ObserveHistory(history.State{Analyses: snap.Analyses, History: snap.History})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
