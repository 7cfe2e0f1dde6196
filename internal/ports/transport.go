package ports

import (
	"context"

	"git.platform.alem.school/amibragim/bazaar/internal/shared/contracts"
)

// Transport is the real-time delivery abstraction carrying events to
// counter-party processes. Publications are best-effort: a failed publish
// never fails the caller's action once the store write committed.
type Transport interface {
	OriginToken() string
	PublishStatusUpdate(ctx context.Context, msg contracts.StatusUpdateMessage) error
	PublishChatMessage(ctx context.Context, env contracts.ChatMessageEnvelope) error
	PublishTyping(ctx context.Context, sig contracts.TypingSignal) error
}
