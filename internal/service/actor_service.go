package service

import (
	"context"
	"fmt"

	"uk-requests/internal/repository"
	"uk-requests/internal/workflow"

	"github.com/google/uuid"
)

// ActorResolver turns an authenticated subject id into a workflow actor.
type ActorResolver interface {
	ResolveActor(ctx context.Context, subject string) (workflow.Actor, error)
}

type actorResolver struct {
	users repository.UserRepository
}

func NewActorResolver(users repository.UserRepository) ActorResolver {
	return &actorResolver{users: users}
}

func (r *actorResolver) ResolveActor(ctx context.Context, subject string) (workflow.Actor, error) {
	id, err := uuid.Parse(subject)
	if err != nil {
		return workflow.Actor{}, fmt.Errorf("%w: invalid subject %q", ErrValidation, subject)
	}

	user, err := r.users.GetByID(ctx, id)
	if err != nil {
		return workflow.Actor{}, err
	}
	if !user.Role.Valid() {
		return workflow.Actor{}, fmt.Errorf("%w: unknown role %q", ErrAccessDenied, user.Role)
	}

	return workflow.Actor{
		ID:        user.ID,
		Role:      user.Role,
		CompanyID: user.CompanyID,
		HouseID:   user.HouseID,
	}, nil
}
