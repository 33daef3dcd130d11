package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentsTotal,
		paymentVerifyRequests,
		paymentVerifyDuration,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by status (pending/completed/failed).",
		},
		[]string{"status"},
	)

	// result: ok|fail
	// reason (fail only): missing_params|signature_mismatch|confirm_error
	paymentVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_requests_total",
			Help: "Count of payment verification calls by result and reason.",
		},
		[]string{"result", "reason"},
	)

	paymentVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of payment verification in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func IncPaymentVerify(result, reason string) {
	if reason == "" {
		reason = "none"
	}
	paymentVerifyRequests.WithLabelValues(norm(result), norm(reason)).Inc()
}

func ObservePaymentVerifyDuration(result string, seconds float64) {
	paymentVerifyDuration.WithLabelValues(norm(result)).Observe(seconds)
}
