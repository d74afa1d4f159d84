// Package metrics exposes prometheus counters for request workflow outcomes.
package metrics

import (
	"uk-requests/internal/model"
	"uk-requests/internal/workflow"

	"github.com/prometheus/client_golang/prometheus"
)

var transitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "uk_requests",
		Name:      "status_transitions_total",
		Help:      "Status transition attempts by source status, target status and outcome.",
	},
	[]string{"from", "to", "outcome"},
)

// Register adds the collectors to reg. Call once at startup.
func Register(reg prometheus.Registerer) error {
	return reg.Register(transitionsTotal)
}

// Outcome maps a transition error to its metric label.
func Outcome(err error) string {
	if err == nil {
		return "applied"
	}
	return workflow.KindOf(err).String()
}

// unknownStatus is the label for statuses outside the catalogue, keeping
// the series count bounded whatever clients send.
const unknownStatus = "unknown"

func statusLabel(s model.RequestStatus) string {
	if workflow.IsKnown(s) {
		return string(s)
	}
	return unknownStatus
}

// ObserveTransition counts one transition attempt.
func ObserveTransition(from, to model.RequestStatus, err error) {
	transitionsTotal.WithLabelValues(statusLabel(from), statusLabel(to), Outcome(err)).Inc()
}
