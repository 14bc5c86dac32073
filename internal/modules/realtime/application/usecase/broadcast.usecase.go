package usecase

import (
	"context"

	"careLinkWs/internal/modules/realtime/application/port"
	"careLinkWs/internal/modules/realtime/domain"
)

type BroadcastUseCase struct {
	broadcaster port.Broadcaster
}

func NewBroadcastUseCase(b port.Broadcaster) *BroadcastUseCase {
	return &BroadcastUseCase{broadcaster: b}
}

func (uc *BroadcastUseCase) Execute(ctx context.Context, env *domain.Envelope) {
	if env == nil {
		return
	}
	uc.broadcaster.Broadcast(ctx, env)
}

// ToIdentity delivers env to every connection of identity.
func (uc *BroadcastUseCase) ToIdentity(ctx context.Context, identity string, env *domain.Envelope) {
	if env == nil || identity == "" {
		return
	}
	uc.broadcaster.Broadcast(ctx, env.For(identity))
}
