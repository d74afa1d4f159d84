package workflow

import (
	"errors"
	"fmt"
	"strings"

	"uk-requests/internal/model"
)

var (
	// ErrNotFound is returned when the request (or actor) does not exist.
	ErrNotFound = errors.New("request not found")
	// ErrPersistenceConflict means a concurrent writer changed the request
	// first. The caller may reload and decide again.
	ErrPersistenceConflict = errors.New("request was modified concurrently")
)

// ForbiddenError is returned when the authorizer denies a transition.
type ForbiddenError struct {
	Reason DenyReason
	Role   model.Role
	Target model.RequestStatus
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("role %q may not move request to %q: %s", e.Role, e.Target, e.Reason)
}

// IllegalTransitionError is returned when target is not an edge from the
// current status. Allowed lists every legal target at the time of the call.
type IllegalTransitionError struct {
	Current model.RequestStatus
	Target  model.RequestStatus
	Allowed []model.RequestStatus
}

func (e *IllegalTransitionError) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		names := make([]string, 0, len(e.Allowed))
		for _, s := range e.Allowed {
			names = append(names, string(s))
		}
		allowed = strings.Join(names, ", ")
	}
	return fmt.Sprintf("cannot change status from %q to %q; allowed: %s", e.Current, e.Target, allowed)
}

// Kind classifies workflow errors for the transport layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindIllegalTransition
	KindPersistenceConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindIllegalTransition:
		return "illegal_transition"
	case KindPersistenceConflict:
		return "persistence_conflict"
	default:
		return "unknown"
	}
}

// KindOf returns the kind of err, looking through wrapping.
func KindOf(err error) Kind {
	var forbidden *ForbiddenError
	var illegal *IllegalTransitionError
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.As(err, &forbidden):
		return KindForbidden
	case errors.As(err, &illegal):
		return KindIllegalTransition
	case errors.Is(err, ErrPersistenceConflict):
		return KindPersistenceConflict
	default:
		return KindUnknown
	}
}
