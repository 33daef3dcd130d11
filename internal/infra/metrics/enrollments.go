package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		enrollmentMaterializations,
		accessDecisions,
	)
}

var (
	// outcome: created|renewed|noop
	enrollmentMaterializations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollment_materializations_total",
			Help: "Enrollments derived from completed payments by outcome.",
		},
		[]string{"outcome"},
	)

	// gate: course|topic
	// outcome: admit|admit_free|deny|not_found
	accessDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_decisions_total",
			Help: "Access-gate decisions by gate and outcome.",
		},
		[]string{"gate", "outcome"},
	)
)

func IncEnrollmentMaterialization(outcome string) {
	enrollmentMaterializations.WithLabelValues(norm(outcome)).Inc()
}

func IncAccessDecision(gate, outcome string) {
	accessDecisions.WithLabelValues(norm(gate), norm(outcome)).Inc()
}
