package orderstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"git.platform.alem.school/amibragim/bazaar/internal/domain/orders"
	"git.platform.alem.school/amibragim/bazaar/internal/ports"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/bus"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/contracts"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/store"

	"github.com/google/uuid"
)

// defaultPreparationMinutes is used when checkout supplies no estimate.
const defaultPreparationMinutes = 20

// Service implements ports.OrderStateMachine.
type Service struct {
	store     store.Store
	bus       *bus.Bus
	transport ports.Transport // optional; nil in single-process runs
	logger    *logger.Logger
}

// Ensure Service implements the interface at compile time.
var _ ports.OrderStateMachine = (*Service)(nil)

// New creates the state machine service with the required dependencies.
func New(st store.Store, eventBus *bus.Bus, transport ports.Transport, logger *logger.Logger) *Service {
	return &Service{store: st, bus: eventBus, transport: transport, logger: logger}
}

// CreateOrder validates input, builds the order aggregate in
// 'pending_confirmation', persists it, and emits order.created.
func (service *Service) CreateOrder(ctx context.Context, cmd ports.CreateOrderCommand) (*orders.Order, error) {
	// basic validation
	if len(cmd.Items) < 1 || len(cmd.Items) > 20 {
		return nil, errors.New("order must contain between 1 and 20 items")
	}
	if strings.TrimSpace(cmd.CustomerID) == "" {
		return nil, errors.New("customer_id is required")
	}
	if strings.TrimSpace(cmd.PreparerID) == "" {
		return nil, errors.New("preparer_id is required")
	}
	for i := range cmd.Items {
		if strings.TrimSpace(cmd.Items[i].DishID) == "" {
			return nil, fmt.Errorf("item %d dish_id is required", i+1)
		}
		if cmd.Items[i].Quantity < 1 || cmd.Items[i].Quantity > 10 {
			return nil, fmt.Errorf("item %d quantity must be between 1 and 10", i+1)
		}
		if cmd.Items[i].UnitPrice < 1 {
			return nil, fmt.Errorf("item %d unit_price must be positive", i+1)
		}
	}
	if cmd.DeliveryFee < 0 || cmd.Discount < 0 {
		return nil, errors.New("delivery_fee and discount must not be negative")
	}

	now := time.Now().UTC()
	est := cmd.EstimatedPreparationMinutes
	if est <= 0 {
		est = defaultPreparationMinutes
	}

	order := &orders.Order{
		ID:              uuid.NewString(),
		CustomerID:      cmd.CustomerID,
		PreparerID:      cmd.PreparerID,
		DeliveryAddress: strings.TrimSpace(cmd.DeliveryAddress),
		DeliveryFee:     cmd.DeliveryFee,
		Discount:        cmd.Discount,
		Status:          orders.StatusPendingConfirmation,
		CreatedAt:       now,

		EstimatedPreparationMinutes: est,
		CookingDurationMinutes:      est,
	}

	order.Items = make([]orders.OrderItem, len(cmd.Items))
	for i, item := range cmd.Items {
		order.Items[i] = orders.OrderItem{
			DishID:    item.DishID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Notes:     item.Notes,
		}
	}
	order.SetTotals()

	order.History = append(order.History, orders.StatusLog{
		Status:    orders.StatusPendingConfirmation,
		ChangedBy: "system",
		ChangedAt: now,
	})

	if err := service.save(ctx, order); err != nil {
		service.logger.Error(ctx, "store_write_failed", "failed to persist new order", err)
		return nil, err
	}

	service.bus.PublishOrder(bus.OrderEvent{
		Topic:      bus.TopicOrderCreated,
		OrderID:    order.ID,
		Status:     order.Status,
		CustomerID: order.CustomerID,
		PreparerID: order.PreparerID,
		Total:      order.Total,
		At:         now,
	})
	service.mirrorStatusUpdate(ctx, order, "", "system", now)

	service.logger.Debug(ctx, "order_created", "new order persisted", map[string]any{
		"order_id": order.ID,
		"total":    order.Total.ToFloat2(),
	})

	return order, nil
}

// Transition advances an order to target, stamping the matching timestamp
// and emitting exactly one order.<status> event. An illegal target fails
// with InvalidTransitionError and leaves the order unchanged.
func (service *Service) Transition(ctx context.Context, orderID string, target orders.OrderStatus, changedBy string) (*orders.Order, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("unknown order status: %q", target)
	}

	// reload the current record immediately before mutating: the same key
	// may have been updated by a transport delivery since the caller last
	// looked at it.
	order, err := service.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !orders.CanTransition(order.Status, target) {
		return nil, &orders.InvalidTransitionError{OrderID: orderID, From: order.Status, To: target}
	}

	now := time.Now().UTC()
	old := order.Status
	order.Status = target
	order.Stamp(target, now)
	if changedBy == "" {
		changedBy = "system"
	}
	order.History = append(order.History, orders.StatusLog{
		Status:    target,
		ChangedBy: changedBy,
		ChangedAt: now,
	})

	if err := service.save(ctx, order); err != nil {
		service.logger.Error(ctx, "store_write_failed", "failed to persist order transition", err)
		return nil, err
	}

	service.bus.PublishOrder(bus.OrderEvent{
		Topic:      bus.OrderTopic(target),
		OrderID:    order.ID,
		Status:     target,
		CustomerID: order.CustomerID,
		PreparerID: order.PreparerID,
		Total:      order.Total,
		At:         now,
	})
	service.mirrorStatusUpdate(ctx, order, old, changedBy, now)

	service.logger.Debug(ctx, "order_transitioned", "order status changed", map[string]any{
		"order_id":   order.ID,
		"old_status": string(old),
		"new_status": string(target),
	})

	return order, nil
}

// Timer derives the SLA timer view for an order in the cooking phase.
func (service *Service) Timer(ctx context.Context, orderID string, now time.Time) (orders.Timer, error) {
	order, err := service.GetOrder(ctx, orderID)
	if err != nil {
		return orders.Timer{}, err
	}
	return orders.ComputeTimer(order, now, orders.DefaultGraceMinutes)
}

// GetOrder loads one order record from the store.
func (service *Service) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	raw, err := service.store.Get(ctx, orders.StoreKey(orderID))
	if err != nil {
		return nil, err
	}
	var order orders.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", orderID, err)
	}
	return &order, nil
}

// save persists the order record. Orders are authoritative state: a
// capacity failure is surfaced to the caller, not degraded away.
func (service *Service) save(ctx context.Context, order *orders.Order) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", order.ID, err)
	}
	return service.store.Put(ctx, orders.StoreKey(order.ID), raw)
}

// mirrorStatusUpdate publishes the transition onto the real-time transport.
// Best-effort: the store commit already succeeded, so failures are logged
// and the caller's action continues.
func (service *Service) mirrorStatusUpdate(ctx context.Context, order *orders.Order, old orders.OrderStatus, changedBy string, now time.Time) {
	if service.transport == nil {
		return
	}

	var est *time.Time
	if order.Status == orders.StatusPreparing && order.CookingStartTime != nil {
		t := order.CookingStartTime.Add(time.Duration(order.CookingDurationMinutes) * time.Minute)
		est = &t
	}

	msg := contracts.StatusUpdateMessage{
		OrderID:             order.ID,
		OldStatus:           string(old),
		NewStatus:           string(order.Status),
		ChangedBy:           changedBy,
		Timestamp:           now,
		EstimatedCompletion: est,
	}
	if err := service.transport.PublishStatusUpdate(ctx, msg); err != nil {
		service.logger.Error(ctx, "transport_publish_failed", "failed to publish status update", err)
		// continue anyway; store commit already succeeded
	}
}
