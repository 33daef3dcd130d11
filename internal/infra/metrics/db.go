package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConnections) }

// state: total|idle|in_use, sampled by the pool-stat loop in cmd/app.
var dbPoolConnections = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "db_pool_connections",
		Help: "Postgres connection pool occupancy by state.",
	},
	[]string{"state"},
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolConnections.WithLabelValues("total").Set(float64(total))
	dbPoolConnections.WithLabelValues("idle").Set(float64(idle))
	dbPoolConnections.WithLabelValues("in_use").Set(float64(inUse))
}
