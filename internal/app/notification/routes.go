package notification

import (
	"fmt"

	"git.platform.alem.school/amibragim/bazaar/internal/domain/notifications"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/bus"
)

// route describes how one order.* topic turns into a notification for the
// counter-party role. The mapping is a static table, not inferred.
type route struct {
	target   notifications.Role
	typ      string
	title    string
	message  func(e bus.OrderEvent) string
	priority notifications.Priority
}

var orderRoutes = map[string]route{
	bus.TopicOrderCreated: {
		target:   notifications.RolePreparer,
		typ:      "new_order",
		title:    "New order received",
		message:  func(e bus.OrderEvent) string { return fmt.Sprintf("Order %s placed, total %.2f", e.OrderID, e.Total.ToFloat2()) },
		priority: notifications.PriorityHigh,
	},
	"order.confirmed": {
		target:   notifications.RoleCustomer,
		typ:      "order_confirmed",
		title:    "Order confirmed",
		message:  func(e bus.OrderEvent) string { return fmt.Sprintf("Order %s was confirmed by the kitchen", e.OrderID) },
		priority: notifications.PriorityNormal,
	},
	"order.preparing": {
		target:   notifications.RoleCustomer,
		typ:      "order_preparing",
		title:    "Cooking started",
		message:  func(e bus.OrderEvent) string { return fmt.Sprintf("Order %s is being prepared", e.OrderID) },
		priority: notifications.PriorityNormal,
	},
	"order.ready": {
		target:   notifications.RoleCustomer,
		typ:      "order_ready",
		title:    "Order ready",
		message:  func(e bus.OrderEvent) string { return fmt.Sprintf("Order %s is ready for delivery", e.OrderID) },
		priority: notifications.PriorityNormal,
	},
	"order.in_delivery": {
		target:   notifications.RoleCustomer,
		typ:      "order_in_delivery",
		title:    "Order on the way",
		message:  func(e bus.OrderEvent) string { return fmt.Sprintf("Order %s is out for delivery", e.OrderID) },
		priority: notifications.PriorityNormal,
	},
	"order.delivered": {
		target:   notifications.RoleCustomer,
		typ:      "order_delivered",
		title:    "Order delivered",
		message:  func(e bus.OrderEvent) string { return fmt.Sprintf("Order %s was delivered, enjoy!", e.OrderID) },
		priority: notifications.PriorityNormal,
	},
	"order.completed": {
		target:   notifications.RolePreparer,
		typ:      "order_completed",
		title:    "Order completed",
		message:  func(e bus.OrderEvent) string { return fmt.Sprintf("Order %s was completed by the customer", e.OrderID) },
		priority: notifications.PriorityLow,
	},
	"order.cancelled": {
		target:   notifications.RolePreparer,
		typ:      "order_cancelled",
		title:    "Order cancelled",
		message:  func(e bus.OrderEvent) string { return fmt.Sprintf("Order %s was cancelled", e.OrderID) },
		priority: notifications.PriorityHigh,
	},
	"order.rejected": {
		target:   notifications.RoleCustomer,
		typ:      "order_rejected",
		title:    "Order rejected",
		message:  func(e bus.OrderEvent) string { return fmt.Sprintf("Order %s was rejected by the kitchen", e.OrderID) },
		priority: notifications.PriorityHigh,
	},
}

// actorFor resolves the actor id on the event matching the target role.
func actorFor(role notifications.Role, e bus.OrderEvent) string {
	switch role {
	case notifications.RoleCustomer:
		return e.CustomerID
	case notifications.RolePreparer:
		return e.PreparerID
	default:
		return "admin"
	}
}
