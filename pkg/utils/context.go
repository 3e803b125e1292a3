package utils

import (
	"context"

	"service-engagement/internal/data/entity"
)

type contextKey string

const ActorKey contextKey = "actor"

// SetActorContext stores the authenticated actor. Handlers read it back and
// pass it explicitly into every command.
func SetActorContext(ctx context.Context, actor entity.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

func GetActorFromContext(ctx context.Context) (entity.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(entity.Actor)
	return actor, ok
}
