// Package service implements the application core on top of the store:
// catalog management, the checkout ledger, and report aggregation.
package service

import (
	"context"
	"errors"

	"warungpos/backend/internal/domain"
)

// ErrOwnerRequired is returned by operations reserved for the shop owner.
// The HTTP layer maps it to 403.
var ErrOwnerRequired = errors.New("owner role required")

const (
	RoleOwner = "owner"
	RoleStaff = "staff"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

func requireOwner(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != RoleOwner {
		return ErrOwnerRequired
	}
	return nil
}
