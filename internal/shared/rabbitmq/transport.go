package rabbitmq

import (
	"context"
	"encoding/json"

	"git.platform.alem.school/amibragim/bazaar/internal/ports"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/contracts"

	"github.com/google/uuid"
)

// Transport implements ports.Transport over the AMQP client. Each process
// gets an origin token so its own publications are not replayed back to it
// by the consume side.
type Transport struct {
	client *Client
	origin string
}

var _ ports.Transport = (*Transport)(nil)

// NewTransport wraps a connected client.
func NewTransport(client *Client) *Transport {
	return &Transport{
		client: client,
		origin: uuid.NewString(),
	}
}

// OriginToken identifies this process on the wire.
func (t *Transport) OriginToken() string {
	return t.origin
}

// PublishStatusUpdate fans an order status change out to all subscribers.
func (t *Transport) PublishStatusUpdate(_ context.Context, msg contracts.StatusUpdateMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return t.client.Publish(StatusExchange, "", body)
}

// PublishChatMessage delivers a chat message to the counter-party.
func (t *Transport) PublishChatMessage(_ context.Context, env contracts.ChatMessageEnvelope) error {
	env.OriginToken = t.origin
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return t.client.Publish(ChatExchange, "chat."+env.ChannelKey+".message", body)
}

// PublishTyping delivers a fire-and-forget typing signal.
func (t *Transport) PublishTyping(_ context.Context, sig contracts.TypingSignal) error {
	sig.OriginToken = t.origin
	body, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return t.client.Publish(ChatExchange, "chat."+sig.ChannelKey+".typing", body)
}
