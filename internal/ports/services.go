package ports

import (
	"context"
	"time"

	"git.platform.alem.school/amibragim/bazaar/internal/domain/chat"
	"git.platform.alem.school/amibragim/bazaar/internal/domain/notifications"
	"git.platform.alem.school/amibragim/bazaar/internal/domain/orders"
)

// OrderStateMachine owns order records: creation, lifecycle transitions,
// and SLA timer derivation.
type OrderStateMachine interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*orders.Order, error)
	Transition(ctx context.Context, orderID string, target orders.OrderStatus, changedBy string) (*orders.Order, error)
	Timer(ctx context.Context, orderID string, now time.Time) (orders.Timer, error)
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
}

type CreateOrderCommand struct {
	CustomerID                  string
	PreparerID                  string
	DeliveryAddress             string
	Items                       []ItemInput
	DeliveryFee                 orders.Money
	Discount                    orders.Money
	EstimatedPreparationMinutes int
}

type ItemInput struct {
	DishID    string
	Quantity  int
	UnitPrice orders.Money
	Notes     string
}

// NotificationService translates lifecycle events and direct actor actions
// into role-targeted inboxes.
type NotificationService interface {
	Notify(ctx context.Context, cmd NotifyCommand) (notifications.Notification, error)
	MarkRead(ctx context.Context, role notifications.Role, targetID, notificationID string) error
	ListInbox(ctx context.Context, role notifications.Role, targetID string) ([]notifications.Notification, error)
	UnreadCount(ctx context.Context, role notifications.Role, targetID string) (int, error)
}

type NotifyCommand struct {
	TargetRole     notifications.Role
	TargetID       string
	Type           string
	Title          string
	Message        string
	RelatedOrderID string
	Priority       notifications.Priority
}

// ChatService maintains per-channel history and low-latency delivery to
// both participants.
type ChatService interface {
	SendMessage(ctx context.Context, cmd SendMessageCommand) (SendReceipt, error)
	Typing(ctx context.Context, channelKey string, from chat.Sender) error
	LoadHistory(ctx context.Context, channelKey string) ([]chat.Message, error)
}

type SendMessageCommand struct {
	ChannelKey string
	Sender     chat.Sender
	Text       string
	Image      *chat.Attachment
}

// SendReceipt tells the sender what actually happened to their message.
// Degraded-mode flags surface reduced functionality without failing the
// user's action.
type SendReceipt struct {
	Message           chat.Message
	AttachmentDropped bool
	HistoryTruncated  bool
}

// TrackingService powers the read-only progress/ETA views.
type TrackingService interface {
	GetOrderProgress(ctx context.Context, orderID string) (*OrderProgressView, error)
	GetOrderHistory(ctx context.Context, orderID string) ([]orders.StatusLog, error)
	GetTimer(ctx context.Context, orderID string, now time.Time) (orders.Timer, error)
}

type OrderProgressView struct {
	OrderID             string
	Status              orders.OrderStatus
	ProgressPercent     int
	EstimatedCompletion *time.Time
	UpdatedAt           time.Time
}
