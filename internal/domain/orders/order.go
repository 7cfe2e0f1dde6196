package orders

import (
	"errors"
	"time"
)

// ErrPreconditionFailed is returned when the cooking timer is requested for
// an order that is not in 'preparing' or has no cooking start timestamp yet.
var ErrPreconditionFailed = errors.New("order is not in preparing state")

// OrderItem represents a single dish position in an order.
type OrderItem struct {
	DishID    string `json:"dish_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unit_price"` // per-unit in cents
	Notes     string `json:"notes,omitempty"`
}

// StatusLog records one status change for audit/history views.
type StatusLog struct {
	Status    OrderStatus `json:"status"`
	ChangedBy string      `json:"changed_by"`
	ChangedAt time.Time   `json:"changed_at"`
}

// Order is the aggregate owned by the state machine. It is mutated only
// through transition calls and never deleted; cancellation states and
// 'completed' are terminal.
//
// Timestamps are stamped exactly once, by the transition that enters the
// corresponding status, and are monotonically non-decreasing.
type Order struct {
	ID              string      `json:"id"`
	CustomerID      string      `json:"customer_id"`
	PreparerID      string      `json:"preparer_id"`
	Items           []OrderItem `json:"items"`
	DeliveryAddress string      `json:"delivery_address,omitempty"`

	Subtotal    Money `json:"subtotal"`
	DeliveryFee Money `json:"delivery_fee"`
	Discount    Money `json:"discount"`
	Total       Money `json:"total"`

	Status OrderStatus `json:"status"`

	CreatedAt         time.Time  `json:"created_at"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	CookingStartTime  *time.Time `json:"cooking_start_time,omitempty"`
	ReadyAt           *time.Time `json:"ready_at,omitempty"`
	DeliveryStartTime *time.Time `json:"delivery_start_time,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`

	EstimatedPreparationMinutes int `json:"estimated_preparation_minutes"`
	CookingDurationMinutes      int `json:"cooking_duration_minutes"`

	History []StatusLog `json:"history,omitempty"`
}

// StoreKey builds the store key for one order record.
func StoreKey(orderID string) string {
	return "order:" + orderID
}

// SetTotals recomputes subtotal and total from items, fee, and discount.
func (order *Order) SetTotals() {
	var sum Money
	for _, it := range order.Items {
		sum += Money(it.Quantity) * it.UnitPrice
	}
	order.Subtotal = sum
	order.Total = sum + order.DeliveryFee - order.Discount
}

// Stamp sets the timestamp field matching the given status to t.
// A timestamp already set is left untouched (transitions stamp exactly once).
func (order *Order) Stamp(status OrderStatus, t time.Time) {
	set := func(field **time.Time) {
		if *field == nil {
			v := t
			*field = &v
		}
	}
	switch status {
	case StatusConfirmed:
		set(&order.ConfirmedAt)
	case StatusPreparing:
		set(&order.CookingStartTime)
	case StatusReady:
		set(&order.ReadyAt)
	case StatusInDelivery:
		set(&order.DeliveryStartTime)
	case StatusDelivered:
		set(&order.DeliveredAt)
	case StatusCompleted:
		set(&order.CompletedAt)
	case StatusCancelled, StatusRejected:
		set(&order.CancelledAt)
	}
}
