package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequests) }

var cacheRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Cache lookups by entity and outcome (hit/miss/bypass).",
	},
	[]string{"entity", "outcome"},
)

func IncCacheRequest(entity, outcome string) {
	cacheRequests.WithLabelValues(norm(entity), norm(outcome)).Inc()
}
