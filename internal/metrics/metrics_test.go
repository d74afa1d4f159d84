package metrics

import (
	"errors"
	"fmt"
	"testing"

	"uk-requests/internal/model"
	"uk-requests/internal/workflow"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "applied", Outcome(nil))
	assert.Equal(t, "not_found", Outcome(workflow.ErrNotFound))
	assert.Equal(t, "persistence_conflict", Outcome(fmt.Errorf("wrapped: %w", workflow.ErrPersistenceConflict)))
	assert.Equal(t, "illegal_transition", Outcome(&workflow.IllegalTransitionError{}))
	assert.Equal(t, "forbidden", Outcome(&workflow.ForbiddenError{}))
	assert.Equal(t, "unknown", Outcome(errors.New("db down")))
}

func TestObserveTransition(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	counter := transitionsTotal.WithLabelValues("new", "accepted", "applied")
	before := testutil.ToFloat64(counter)

	ObserveTransition(model.StatusNew, model.StatusAccepted, nil)
	ObserveTransition(model.StatusNew, model.StatusAccepted, nil)

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestObserveTransitionFoldsUnknownStatuses(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t_total"}, []string{"from", "to", "outcome"})
	require.NoError(t, reg.Register(counter))

	saved := transitionsTotal
	transitionsTotal = counter
	defer func() { transitionsTotal = saved }()

	for i := 0; i < 50; i++ {
		ObserveTransition(model.StatusNew, model.RequestStatus(fmt.Sprintf("junk-%d", i)), &workflow.IllegalTransitionError{})
	}
	ObserveTransition("", model.StatusAccepted, workflow.ErrNotFound)

	assert.Equal(t, 2, testutil.CollectAndCount(counter))
	assert.Equal(t, float64(50), testutil.ToFloat64(counter.WithLabelValues("new", "unknown", "illegal_transition")))
	assert.Equal(t, float64(1), testutil.ToFloat64(counter.WithLabelValues("unknown", "accepted", "not_found")))
}
