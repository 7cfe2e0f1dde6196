package orders

import "fmt"

// OrderStatus is a custom type that represents the current status of an order in its lifecycle.
type OrderStatus string

const (
	StatusPendingConfirmation OrderStatus = "pending_confirmation"
	StatusConfirmed           OrderStatus = "confirmed"
	StatusPreparing           OrderStatus = "preparing"
	StatusReady               OrderStatus = "ready"
	StatusInDelivery          OrderStatus = "in_delivery"
	StatusDelivered           OrderStatus = "delivered"
	StatusCompleted           OrderStatus = "completed"
	StatusCancelled           OrderStatus = "cancelled"
	StatusRejected            OrderStatus = "rejected"
)

// Allowed state transitions as per lifecycle. The two cancellation states
// are reachable from every status before 'delivered'.
var allowed = map[OrderStatus]map[OrderStatus]bool{
	StatusPendingConfirmation: {StatusConfirmed: true, StatusCancelled: true, StatusRejected: true},
	StatusConfirmed:           {StatusPreparing: true, StatusCancelled: true, StatusRejected: true},
	StatusPreparing:           {StatusReady: true, StatusCancelled: true, StatusRejected: true},
	StatusReady:               {StatusInDelivery: true, StatusCancelled: true, StatusRejected: true},
	StatusInDelivery:          {StatusDelivered: true, StatusCancelled: true, StatusRejected: true},
	StatusDelivered:           {StatusCompleted: true},
	StatusCompleted:           {},
	StatusCancelled:           {},
	StatusRejected:            {},
}

// CanTransition checks if from->to is allowed.
func CanTransition(from, to OrderStatus) bool {
	nexts := allowed[from]
	return nexts != nil && nexts[to]
}

// IsTerminal reports whether no further transitions are possible from s.
func (s OrderStatus) IsTerminal() bool {
	nexts, ok := allowed[s]
	return ok && len(nexts) == 0
}

// Valid reports whether s is one of the known lifecycle statuses.
func (s OrderStatus) Valid() bool {
	_, ok := allowed[s]
	return ok
}

// InvalidTransitionError is returned when a requested status change is not
// a legal successor of the order's current status. The order is left unchanged.
type InvalidTransitionError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for order %s: %q -> %q", e.OrderID, e.From, e.To)
}
