package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"uk-requests/internal/model"
)

// TxRunner scopes a unit of work. fn runs inside one transaction that is
// committed when fn returns nil and rolled back otherwise.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// RequestStore is the persistence the machine needs for requests.
type RequestStore interface {
	Create(ctx context.Context, req *model.Request) error
	// FindForUpdate loads the request and holds a row lock until the
	// surrounding transaction ends. Returns ErrNotFound when missing.
	FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Request, error)
	// UpdateStatus moves the request from -> to. It reports false when
	// the stored status was not from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.RequestStatus, at time.Time) (bool, error)
}

// HistoryLedger is the append side of the history ledger.
type HistoryLedger interface {
	Append(ctx context.Context, entry *model.RequestHistory) (uuid.UUID, error)
}

// CreatedComment is recorded on the synthetic first history entry.
const CreatedComment = "Request created"

// Machine applies status transitions. It holds no mutable state of its
// own, so one instance serves all requests concurrently.
type Machine struct {
	tx       TxRunner
	requests RequestStore
	history  HistoryLedger
	now      func() time.Time
}

// Option customises a Machine.
type Option func(*Machine)

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func NewMachine(tx TxRunner, requests RequestStore, history HistoryLedger, opts ...Option) *Machine {
	m := &Machine{
		tx:       tx,
		requests: requests,
		history:  history,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check runs the pure part of a transition: existence, authorization and
// the graph, in that order.
func Check(req *model.Request, actor Actor, target model.RequestStatus) error {
	if req == nil {
		return ErrNotFound
	}
	if d := Authorize(actor, req, target); !d.Allowed {
		return &ForbiddenError{Reason: d.Reason, Role: actor.Role, Target: target}
	}
	if !CanTransition(req.Status, target) {
		return &IllegalTransitionError{
			Current: req.Status,
			Target:  target,
			Allowed: LegalTargets(req.Status),
		}
	}
	return nil
}

// Create stores req with status new and writes the creation entry in the
// same unit of work.
func (m *Machine) Create(ctx context.Context, req *model.Request, actor Actor) (*model.RequestHistory, error) {
	now := m.now()
	req.Status = model.StatusNew
	req.CreatedAt = now
	req.UpdatedAt = now

	entry := &model.RequestHistory{
		NewStatus: model.StatusNew,
		Comment:   CreatedComment,
		ChangedBy: actorRef(actor),
		CreatedAt: now,
	}
	err := m.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := m.requests.Create(txCtx, req); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		entry.RequestID = req.ID
		if _, err := m.history.Append(txCtx, entry); err != nil {
			return fmt.Errorf("failed to append creation history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Apply moves req to target on behalf of actor and appends exactly one
// history entry. req is the caller's snapshot: if the stored status no
// longer matches it the call fails with ErrPersistenceConflict. req is
// never modified; the updated request is returned after commit.
func (m *Machine) Apply(ctx context.Context, req *model.Request, actor Actor, target model.RequestStatus, comment string) (*model.Request, *model.RequestHistory, error) {
	if err := Check(req, actor, target); err != nil {
		return nil, nil, err
	}

	from := req.Status
	var updated *model.Request
	var entry *model.RequestHistory
	err := m.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := m.requests.FindForUpdate(txCtx, req.ID)
		if err != nil {
			return err
		}
		if current.Status != from {
			return fmt.Errorf("%w: status is now %q", ErrPersistenceConflict, current.Status)
		}

		now := m.now()
		ok, err := m.requests.UpdateStatus(txCtx, req.ID, from, target, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPersistenceConflict
		}

		old := from
		e := &model.RequestHistory{
			RequestID: req.ID,
			OldStatus: &old,
			NewStatus: target,
			Comment:   comment,
			ChangedBy: actorRef(actor),
			CreatedAt: now,
		}
		if _, err := m.history.Append(txCtx, e); err != nil {
			return err
		}

		current.Status = target
		current.UpdatedAt = now
		updated, entry = current, e
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, entry, nil
}

func actorRef(a Actor) *uuid.UUID {
	if a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}
