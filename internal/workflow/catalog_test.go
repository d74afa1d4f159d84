package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"uk-requests/internal/model"
)

func TestLegalTargets(t *testing.T) {
	cases := map[model.RequestStatus][]model.RequestStatus{
		model.StatusNew:        {model.StatusAccepted, model.StatusRejected},
		model.StatusAccepted:   {model.StatusInProgress, model.StatusRejected, model.StatusOnHold},
		model.StatusInProgress: {model.StatusCompleted, model.StatusOnHold},
		model.StatusOnHold:     {model.StatusInProgress, model.StatusRejected},
		model.StatusCompleted:  {model.StatusReopened},
		model.StatusRejected:   {},
		model.StatusReopened:   {model.StatusAccepted, model.StatusRejected},
		model.StatusCancelled:  {},
	}
	for from, want := range cases {
		assert.ElementsMatch(t, want, LegalTargets(from), "targets from %s", from)
	}
}

func TestLegalTargetsReturnsCopy(t *testing.T) {
	targets := LegalTargets(model.StatusNew)
	targets[0] = model.StatusCompleted

	assert.Equal(t, model.StatusAccepted, LegalTargets(model.StatusNew)[0])
	assert.False(t, CanTransition(model.StatusNew, model.StatusCompleted))
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range Statuses() {
		want := s == model.StatusRejected || s == model.StatusCancelled
		assert.Equal(t, want, IsTerminal(s), "status %s", s)
	}
}

func TestNewIsNeverATarget(t *testing.T) {
	for _, from := range Statuses() {
		assert.False(t, CanTransition(from, model.StatusNew), "edge %s -> new", from)
	}
}

func TestCancelledHasNoIncomingEdges(t *testing.T) {
	for _, from := range Statuses() {
		assert.False(t, CanTransition(from, model.StatusCancelled))
	}
}

func TestUnknownStatus(t *testing.T) {
	unknown := model.RequestStatus("archived")
	assert.False(t, IsKnown(unknown))
	assert.False(t, IsTerminal(unknown))
	assert.Empty(t, LegalTargets(unknown))
	assert.Equal(t, "archived", Label(unknown))
}

func TestStatusesCoverCatalog(t *testing.T) {
	all := Statuses()
	assert.Len(t, all, 8)
	for _, s := range all {
		assert.True(t, IsKnown(s))
		assert.NotEqual(t, string(s), Label(s))
	}
}
