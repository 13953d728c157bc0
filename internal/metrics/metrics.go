// Package metrics records resolver and gateway activity as Prometheus
// metrics on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "depositor"

// Request outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the depositor collectors.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	addressRequests  *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	staleCompletions prometheus.Counter
	resolutions      *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Deposit address cache hits.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Deposit address cache misses.",
		}),
		addressRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "address_requests_total",
			Help:      "Deposit address requests sent to gateways.",
		}, []string{"gateway", "outcome"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "address_request_duration_seconds",
			Help:      "Time from request to completion callback.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"gateway"}),
		staleCompletions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_completions_total",
			Help:      "Completions dropped because a newer selection superseded them.",
		}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Selections that reached a terminal phase.",
		}, []string{"phase"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5},
		}, []string{"method", "path"}),
	}
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Inc()
}

// RecordAddressRequest records a completed gateway request.
func (m *Metrics) RecordAddressRequest(gateway string, duration time.Duration, failed bool) {
	outcome := OutcomeSuccess
	if failed {
		outcome = OutcomeFailure
	}
	m.addressRequests.WithLabelValues(gateway, outcome).Inc()
	m.requestDuration.WithLabelValues(gateway).Observe(duration.Seconds())
}

// RecordStaleCompletion records a dropped superseded completion.
func (m *Metrics) RecordStaleCompletion() {
	m.staleCompletions.Inc()
}

// RecordResolution records a selection reaching phase.
func (m *Metrics) RecordResolution(phase string) {
	m.resolutions.WithLabelValues(phase).Inc()
}

// RecordHTTPRequest records a served HTTP request. path is the route
// template, not the raw URL.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	CacheHits        int64            `json:"cache_hits"`
	CacheMisses      int64            `json:"cache_misses"`
	AddressRequests  map[string]int64 `json:"address_requests"`
	RequestFailures  int64            `json:"request_failures"`
	StaleCompletions int64            `json:"stale_completions"`
	Resolutions      map[string]int64 `json:"resolutions"`
	HTTPRequests     int64            `json:"http_requests"`
}

// Snapshot gathers the registry into a Snapshot. AddressRequests is keyed
// by gateway and counts both outcomes.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		AddressRequests: make(map[string]int64),
		Resolutions:     make(map[string]int64),
	}

	families, err := m.registry.Gather()
	if err != nil {
		return s
	}

	for _, mf := range families {
		switch mf.GetName() {
		case namespace + "_cache_hits_total":
			s.CacheHits = sumCounters(mf)
		case namespace + "_cache_misses_total":
			s.CacheMisses = sumCounters(mf)
		case namespace + "_stale_completions_total":
			s.StaleCompletions = sumCounters(mf)
		case namespace + "_http_requests_total":
			s.HTTPRequests = sumCounters(mf)
		case namespace + "_address_requests_total":
			for _, metric := range mf.GetMetric() {
				n := int64(metric.GetCounter().GetValue())
				s.AddressRequests[label(metric, "gateway")] += n
				if label(metric, "outcome") == OutcomeFailure {
					s.RequestFailures += n
				}
			}
		case namespace + "_resolutions_total":
			for _, metric := range mf.GetMetric() {
				s.Resolutions[label(metric, "phase")] += int64(metric.GetCounter().GetValue())
			}
		}
	}
	return s
}

// CacheHitRate returns the cache hit rate as a percentage (0-100).
// Returns 0 if no cache operations have occurred.
func (s Snapshot) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total) * 100
}

func sumCounters(mf *dto.MetricFamily) int64 {
	var n float64
	for _, metric := range mf.GetMetric() {
		n += metric.GetCounter().GetValue()
	}
	return int64(n)
}

func label(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
