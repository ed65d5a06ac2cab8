package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RequestsInFlight    prometheus.Gauge

	SearchesTotal        *prometheus.CounterVec
	SearchResults        prometheus.Histogram
	RepositoryDuration   *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	RateLimitHitsTotal   *prometheus.CounterVec
	ClientRequestsTotal  *prometheus.CounterVec
	ClientRetriesTotal   prometheus.Counter
	StaleResultsTotal    prometheus.Counter
	IngestedRecordsTotal *prometheus.CounterVec

	BotUpdatesTotal   *prometheus.CounterVec
	BotUpdateDuration *prometheus.HistogramVec
}

// New регистрирует метрики в reg; nil - глобальный DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abn_search_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "abn_search_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"route"},
		),
		RequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "abn_search_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		SearchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abn_search_searches_total",
				Help: "Total number of searches by kind (abn, name) and outcome",
			},
			[]string{"kind", "status"},
		),
		SearchResults: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "abn_search_results_per_search",
				Help:    "Number of results returned per search",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),
		RepositoryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "abn_search_repository_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		),

		CacheHitsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "abn_search_cache_hits_total",
				Help: "Total number of cache hits",
			},
		),
		CacheMissesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "abn_search_cache_misses_total",
				Help: "Total number of cache misses",
			},
		),

		RateLimitHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abn_search_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"frontend"},
		),

		ClientRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abn_search_client_requests_total",
				Help: "Search API requests issued by the query client",
			},
			[]string{"status"},
		),
		ClientRetriesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "abn_search_client_retries_total",
				Help: "Automatic retries issued by the query client",
			},
		),
		StaleResultsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "abn_search_stale_results_discarded_total",
				Help: "Responses discarded because a newer query superseded them",
			},
		),

		IngestedRecordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abn_search_ingested_records_total",
				Help: "ABR records processed by the ingestion job",
			},
			[]string{"outcome"},
		),

		BotUpdatesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abn_search_bot_updates_total",
				Help: "Telegram updates handled by the bot",
			},
			[]string{"kind", "status"},
		),
		BotUpdateDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "abn_search_bot_update_duration_seconds",
				Help:    "Time spent handling one Telegram update",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordHTTPRequest(route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) RecordSearch(kind, status string, results int) {
	m.SearchesTotal.WithLabelValues(kind, status).Inc()
	if status == "success" {
		m.SearchResults.Observe(float64(results))
	}
}

func (m *Metrics) RecordRepositoryQuery(operation string, duration time.Duration) {
	m.RepositoryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) RecordRateLimitHit(frontend string) {
	m.RateLimitHitsTotal.WithLabelValues(frontend).Inc()
}

func (m *Metrics) RecordClientRequest(status string) {
	m.ClientRequestsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordClientRetry() {
	m.ClientRetriesTotal.Inc()
}

func (m *Metrics) RecordStaleResult() {
	m.StaleResultsTotal.Inc()
}

func (m *Metrics) RecordIngested(outcome string, n int) {
	m.IngestedRecordsTotal.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) RecordBotUpdate(kind, status string, duration time.Duration) {
	m.BotUpdatesTotal.WithLabelValues(kind, status).Inc()
	m.BotUpdateDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *Metrics) IncRequestsInFlight() {
	m.RequestsInFlight.Inc()
}

func (m *Metrics) DecRequestsInFlight() {
	m.RequestsInFlight.Dec()
}
