package service

import (
	"context"

	"github.com/google/uuid"
)

// Actor: кто выполняет операцию. Проверка прав остаётся за внешним слоем доступа,
// здесь актор нужен только для аудита.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

func actorID(ctx context.Context) *uuid.UUID {
	a, ok := ActorFromContext(ctx)
	if !ok || a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
