// Package metrics holds the Prometheus collectors for the whole process.
//
// Collectors are registered on the default registry through promauto, so
// declaring one here is enough for it to appear on /metrics. Label values are
// always drawn from small fixed sets (route patterns, endpoint names, source
// names); never put a user id or a query string in a label.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "piecemeal_http_requests_total",
		Help: "Total HTTP requests by method, route, and response status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "piecemeal_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "piecemeal_provider_requests_total",
		Help: "Total recipe provider calls by endpoint and result.",
	}, []string{"endpoint", "result"})

	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "piecemeal_provider_request_duration_seconds",
		Help:    "Recipe provider call duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "piecemeal_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open).",
	}, []string{"name"})

	CircuitBreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "piecemeal_circuit_breaker_transitions_total",
		Help: "Circuit breaker state transitions.",
	}, []string{"name", "from", "to"})

	CircuitBreakerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "piecemeal_circuit_breaker_requests_total",
		Help: "Requests seen by a circuit breaker by result (success, failure, rejected).",
	}, []string{"name", "result"})

	catalogLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "piecemeal_catalog_lookups_total",
		Help: "Catalog cache lookups by kind and result (hit, miss).",
	}, []string{"kind", "result"})

	recommendationItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "piecemeal_recommendation_items_total",
		Help: "Items produced by each recommendation source.",
	}, []string{"kind", "source"})

	recommendationDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "piecemeal_recommendation_degraded_total",
		Help: "Recommendation sources that returned nothing because the provider failed.",
	}, []string{"kind", "source"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records one served request. route should be the chi
// route pattern, not the raw path.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordProviderCall records one outbound provider call.
func RecordProviderCall(endpoint string, err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	providerRequestsTotal.WithLabelValues(endpoint, result).Inc()
	providerRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordCatalogLookup records whether a catalog read was served locally.
func RecordCatalogLookup(kind string, hit bool) {
	if hit {
		catalogLookupsTotal.WithLabelValues(kind, "hit").Inc()
	} else {
		catalogLookupsTotal.WithLabelValues(kind, "miss").Inc()
	}
}

// RecordRecommendation records the items one source contributed.
func RecordRecommendation(kind, source string, items int) {
	recommendationItemsTotal.WithLabelValues(kind, source).Add(float64(items))
}

// RecordRecommendationDegraded records a source that was skipped.
func RecordRecommendationDegraded(kind, source string) {
	recommendationDegradedTotal.WithLabelValues(kind, source).Inc()
}
