package workflow

import (
	"github.com/google/uuid"

	"uk-requests/internal/model"
)

// Actor is the resolved identity attempting a change.
type Actor struct {
	ID        uuid.UUID
	Role      model.Role
	CompanyID *uuid.UUID
	HouseID   *uuid.UUID
}

// Owns reports whether the actor filed req.
func (a Actor) Owns(req *model.Request) bool {
	return req != nil && req.UserID == a.ID
}

// DenyReason is a machine-readable code explaining a denial.
type DenyReason string

const (
	ReasonNotOwner      DenyReason = "not-owner"
	ReasonResidentScope DenyReason = "resident-scope"
	ReasonUnknownRole   DenyReason = "unknown-role"
)

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func permit() Decision { return Decision{Allowed: true} }

func deny(r DenyReason) Decision { return Decision{Reason: r} }

// residentTargets are the only statuses a request owner may ask for.
var residentTargets = map[model.RequestStatus]bool{
	model.StatusReopened:  true,
	model.StatusCancelled: true,
}

// Authorize decides whether actor may move req to target. It does not
// consult the status graph; both checks must pass for a transition.
func Authorize(actor Actor, req *model.Request, target model.RequestStatus) Decision {
	switch actor.Role {
	case model.RoleResident:
		if !actor.Owns(req) {
			return deny(ReasonNotOwner)
		}
		if !residentTargets[target] {
			return deny(ReasonResidentScope)
		}
		return permit()
	case model.RoleDispatcher, model.RoleAdmin, model.RoleSuperAdmin:
		return permit()
	default:
		return deny(ReasonUnknownRole)
	}
}
