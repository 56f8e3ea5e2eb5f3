// Package metrics holds the Prometheus collectors for state transitions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultRejected = "rejected"
)

var (
	// Transitions counts lifecycle transitions by operation and result.
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabby_transitions_total",
			Help: "Total number of workspace lifecycle transitions",
		},
		[]string{"op", "result"},
	)

	// GroupingValidations counts grouping responses by validation outcome.
	GroupingValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabby_grouping_validations_total",
			Help: "Total number of grouping responses validated",
		},
		[]string{"result"},
	)

	// SnapshotsCaptured counts captured workspace snapshots.
	SnapshotsCaptured = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabby_snapshots_captured_total",
			Help: "Total number of workspace snapshots captured",
		},
	)

	// IdentityObservations counts browser observations by kind (tab, group) and outcome.
	IdentityObservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabby_identity_observations_total",
			Help: "Total number of browser tab and group observations",
		},
		[]string{"kind", "outcome"},
	)
)

// ObserveTransition records the result of a lifecycle transition.
func ObserveTransition(op string, err error) {
	Transitions.WithLabelValues(op, resultOf(err)).Inc()
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
