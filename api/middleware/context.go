package middleware

import (
	"context"

	"github.com/tinytales/storefront-backend/pkg/enums"
)

// Actor is the authenticated admin behind a request. Storefront requests have none.
type Actor struct {
	ID   string
	Role enums.AdminRole
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// UserIDFromContext is "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return actor.ID
}

func RoleFromContext(ctx context.Context) enums.AdminRole {
	actor, _ := ActorFromContext(ctx)
	return actor.Role
}
