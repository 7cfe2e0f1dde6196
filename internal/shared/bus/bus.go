// Package bus is the in-process publish/subscribe fan-out used for same-tab
// signaling: order lifecycle events, notification arrival, chat messages,
// and typing indicators. Subscribers register typed handlers per topic
// family instead of inspecting untyped payloads.
package bus

import (
	"sync"
	"time"

	"git.platform.alem.school/amibragim/bazaar/internal/domain/chat"
	"git.platform.alem.school/amibragim/bazaar/internal/domain/notifications"
	"git.platform.alem.school/amibragim/bazaar/internal/domain/orders"
)

const (
	TopicNotificationCreated = "notification.created"
	TopicChatMessage         = "chat.message"
	TopicChatTyping          = "chat.typing"
)

// OrderTopic builds the "order.<status>" topic for a lifecycle event.
func OrderTopic(status orders.OrderStatus) string {
	return "order." + string(status)
}

// TopicOrderCreated is the creation event; every other order topic is
// derived from the status entered.
var TopicOrderCreated = OrderTopic("created")

// OrderEvent carries one order lifecycle change. Delivery is at-least-once
// from the consumer's point of view: reapplying the same (OrderID, Status)
// pair must be idempotent.
type OrderEvent struct {
	Topic      string
	OrderID    string
	Status     orders.OrderStatus
	CustomerID string
	PreparerID string
	Total      orders.Money
	At         time.Time
}

// NotificationEvent signals a freshly created notification so open inbox
// views for that actor can refresh.
type NotificationEvent struct {
	Notification notifications.Notification
}

// ChatEvent carries one chat message, local or remote.
type ChatEvent struct {
	Message chat.Message
}

// TypingEvent signals typing state for one side of a channel. Active=false
// events are emitted by the auto-clear when no further signal arrives.
type TypingEvent struct {
	ChannelKey string
	From       chat.Sender
	Active     bool
	At         time.Time
}

// Bus fans events out to all registered handlers. Dispatch is synchronous:
// operations run to completion in the caller's goroutine (single logical
// actor), so handlers must be short and non-blocking.
type Bus struct {
	mu         sync.RWMutex
	orderSubs  []func(OrderEvent)
	notifySubs []func(NotificationEvent)
	chatSubs   []func(ChatEvent)
	typingSubs []func(TypingEvent)
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// SubscribeOrders registers a handler for all order.* events.
func (b *Bus) SubscribeOrders(h func(OrderEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orderSubs = append(b.orderSubs, h)
}

// SubscribeNotifications registers a handler for notification.created.
func (b *Bus) SubscribeNotifications(h func(NotificationEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifySubs = append(b.notifySubs, h)
}

// SubscribeChat registers a handler for chat.message.
func (b *Bus) SubscribeChat(h func(ChatEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chatSubs = append(b.chatSubs, h)
}

// SubscribeTyping registers a handler for chat.typing.
func (b *Bus) SubscribeTyping(h func(TypingEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typingSubs = append(b.typingSubs, h)
}

// PublishOrder delivers an order event to every order subscriber.
func (b *Bus) PublishOrder(e OrderEvent) {
	b.mu.RLock()
	subs := make([]func(OrderEvent), len(b.orderSubs))
	copy(subs, b.orderSubs)
	b.mu.RUnlock()

	for _, h := range subs {
		h(e)
	}
}

// PublishNotification delivers a notification event to every subscriber.
func (b *Bus) PublishNotification(e NotificationEvent) {
	b.mu.RLock()
	subs := make([]func(NotificationEvent), len(b.notifySubs))
	copy(subs, b.notifySubs)
	b.mu.RUnlock()

	for _, h := range subs {
		h(e)
	}
}

// PublishChat delivers a chat message event to every subscriber.
func (b *Bus) PublishChat(e ChatEvent) {
	b.mu.RLock()
	subs := make([]func(ChatEvent), len(b.chatSubs))
	copy(subs, b.chatSubs)
	b.mu.RUnlock()

	for _, h := range subs {
		h(e)
	}
}

// PublishTyping delivers a typing event to every subscriber.
func (b *Bus) PublishTyping(e TypingEvent) {
	b.mu.RLock()
	subs := make([]func(TypingEvent), len(b.typingSubs))
	copy(subs, b.typingSubs)
	b.mu.RUnlock()

	for _, h := range subs {
		h(e)
	}
}
