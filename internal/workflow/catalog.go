// Package workflow holds the maintenance request lifecycle: the static
// status graph, the role-based authorization overlay and the state
// machine that applies a transition together with its history entry.
package workflow

import "uk-requests/internal/model"

// transitions is the static status graph. It is never mutated after init;
// every accessor hands out copies.
var transitions = map[model.RequestStatus][]model.RequestStatus{
	model.StatusNew:        {model.StatusAccepted, model.StatusRejected},
	model.StatusAccepted:   {model.StatusInProgress, model.StatusRejected, model.StatusOnHold},
	model.StatusInProgress: {model.StatusCompleted, model.StatusOnHold},
	model.StatusOnHold:     {model.StatusInProgress, model.StatusRejected},
	model.StatusCompleted:  {model.StatusReopened},
	model.StatusRejected:   {},
	model.StatusReopened:   {model.StatusAccepted, model.StatusRejected},
	model.StatusCancelled:  {},
}

var statusOrder = []model.RequestStatus{
	model.StatusNew,
	model.StatusAccepted,
	model.StatusInProgress,
	model.StatusOnHold,
	model.StatusCompleted,
	model.StatusRejected,
	model.StatusReopened,
	model.StatusCancelled,
}

var statusLabels = map[model.RequestStatus]string{
	model.StatusNew:        "New",
	model.StatusAccepted:   "Accepted",
	model.StatusInProgress: "In progress",
	model.StatusOnHold:     "On hold",
	model.StatusCompleted:  "Completed",
	model.StatusRejected:   "Rejected",
	model.StatusReopened:   "Reopened",
	model.StatusCancelled:  "Cancelled",
}

// Statuses returns every known status in lifecycle order.
func Statuses() []model.RequestStatus {
	out := make([]model.RequestStatus, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// IsKnown reports whether s belongs to the catalog.
func IsKnown(s model.RequestStatus) bool {
	_, ok := transitions[s]
	return ok
}

// LegalTargets returns the statuses reachable from s in one step.
// Unknown statuses have no targets.
func LegalTargets(s model.RequestStatus) []model.RequestStatus {
	targets := transitions[s]
	out := make([]model.RequestStatus, len(targets))
	copy(out, targets)
	return out
}

// CanTransition reports whether from -> to is an edge of the graph.
func CanTransition(from, to model.RequestStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// IsTerminal is true for statuses without outgoing edges.
func IsTerminal(s model.RequestStatus) bool {
	return IsKnown(s) && len(transitions[s]) == 0
}

// Label returns the display name of s.
func Label(s model.RequestStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}
