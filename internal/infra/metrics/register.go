package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

// register enqueues collectors from package init; nothing reaches Prometheus
// until MustRegister runs, so importing this package has no side effects on
// the default registry.
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister installs every enqueued collector exactly once. Safe to call
// from more than one binary entry point.
func MustRegister() {
	registerOnce.Do(func() {
		for _, c := range pending {
			prometheus.MustRegister(c)
		}
	})
}
