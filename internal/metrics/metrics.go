package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters.
type Metrics struct {
	normalizeRequests prometheus.Counter
	normalizeFailures prometheus.Counter
	fallbacks         prometheus.Counter
	cycleMarkers      prometheus.Counter
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	rpcRequests       *prometheus.CounterVec
	rpcRetries        prometheus.Counter
	rpcErrors         *prometheus.CounterVec
	entriesFetched    prometheus.Counter
	errors            prometheus.Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// Init initializes global metrics (idempotent).
func Init() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			normalizeRequests: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "state_lens_normalize_requests_total",
				Help: "Total number of normalize requests handled by the decoder",
			}),
			normalizeFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "state_lens_normalize_failures_total",
				Help: "Total number of normalize requests that produced an error value",
			}),
			fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "state_lens_unsupported_values_total",
				Help: "Total number of unsupported fallback records emitted",
			}),
			cycleMarkers: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "state_lens_cycle_markers_total",
				Help: "Total number of cycle markers emitted",
			}),
			cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "state_lens_decode_cache_hits_total",
				Help: "Total number of decode cache hits",
			}),
			cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "state_lens_decode_cache_misses_total",
				Help: "Total number of decode cache misses",
			}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "state_lens_rpc_requests_total",
				Help: "Total number of Soroban RPC calls by method",
			}, []string{"method"}),
			rpcRetries: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "state_lens_rpc_retries_total",
				Help: "Total number of retried Soroban RPC attempts",
			}),
			rpcErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "state_lens_rpc_errors_total",
				Help: "Total number of failed Soroban RPC calls by error code",
			}, []string{"code"}),
			entriesFetched: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "state_lens_ledger_entries_fetched_total",
				Help: "Total number of ledger entries fetched from RPC",
			}),
			errors: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "state_lens_errors_total",
				Help: "Total number of errors encountered",
			}),
		}
		prometheus.MustRegister(
			metrics.normalizeRequests,
			metrics.normalizeFailures,
			metrics.fallbacks,
			metrics.cycleMarkers,
			metrics.cacheHits,
			metrics.cacheMisses,
			metrics.rpcRequests,
			metrics.rpcRetries,
			metrics.rpcErrors,
			metrics.entriesFetched,
			metrics.errors,
		)
	})
	return metrics
}

// NormalizeRequest counts one decoder request.
func (m *Metrics) NormalizeRequest() {
	if m != nil {
		m.normalizeRequests.Inc()
	}
}

// NormalizeFailure counts one decoder request that ended in an error value.
func (m *Metrics) NormalizeFailure() {
	if m != nil {
		m.normalizeFailures.Inc()
	}
}

// Fallbacks adds n unsupported records.
func (m *Metrics) Fallbacks(n int) {
	if m != nil && n > 0 {
		m.fallbacks.Add(float64(n))
	}
}

// CycleMarkers adds n cycle markers.
func (m *Metrics) CycleMarkers(n int) {
	if m != nil && n > 0 {
		m.cycleMarkers.Add(float64(n))
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

// RPCRequest counts one RPC call for method.
func (m *Metrics) RPCRequest(method string) {
	if m != nil {
		m.rpcRequests.WithLabelValues(method).Inc()
	}
}

func (m *Metrics) RPCRetry() {
	if m != nil {
		m.rpcRetries.Inc()
	}
}

// RPCError counts a failed RPC call by its normalized code.
func (m *Metrics) RPCError(code string) {
	if m != nil {
		m.rpcErrors.WithLabelValues(code).Inc()
	}
}

// EntriesFetched adds n ledger entries.
func (m *Metrics) EntriesFetched(n int) {
	if m != nil && n > 0 {
		m.entriesFetched.Add(float64(n))
	}
}

// Errors increments the errors counter.
func (m *Metrics) Errors() {
	if m != nil {
		m.errors.Inc()
	}
}

// Handler returns an HTTP handler for /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
