package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"git.platform.alem.school/amibragim/bazaar/internal/domain/orders"
	"git.platform.alem.school/amibragim/bazaar/internal/ports"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/store"
)

// progressByStatus maps each lifecycle status to a coarse progress value
// for the customer-facing tracker bar.
var progressByStatus = map[orders.OrderStatus]int{
	orders.StatusPendingConfirmation: 5,
	orders.StatusConfirmed:           20,
	orders.StatusPreparing:           40,
	orders.StatusReady:               60,
	orders.StatusInDelivery:          80,
	orders.StatusDelivered:           95,
	orders.StatusCompleted:           100,
	orders.StatusCancelled:           0,
	orders.StatusRejected:            0,
}

// Service implements ports.TrackingService: a read-only presenter over the
// order records the state machine persists.
type Service struct {
	store        store.Store
	logger       *logger.Logger
	graceMinutes int
}

var _ ports.TrackingService = (*Service)(nil)

// NewService creates a tracking presenter with the required dependencies.
func NewService(st store.Store, logger *logger.Logger, graceMinutes int) *Service {
	if graceMinutes <= 0 {
		graceMinutes = orders.DefaultGraceMinutes
	}
	return &Service{store: st, logger: logger, graceMinutes: graceMinutes}
}

// GetOrderProgress returns the progress/ETA view for one order.
func (service *Service) GetOrderProgress(ctx context.Context, orderID string) (*ports.OrderProgressView, error) {
	order, err := service.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var est *time.Time
	if order.Status == orders.StatusPreparing && order.CookingStartTime != nil {
		t := order.CookingStartTime.Add(time.Duration(order.CookingDurationMinutes) * time.Minute)
		est = &t
	}

	updated := order.CreatedAt
	if n := len(order.History); n > 0 {
		updated = order.History[n-1].ChangedAt
	}

	return &ports.OrderProgressView{
		OrderID:             order.ID,
		Status:              order.Status,
		ProgressPercent:     progressByStatus[order.Status],
		EstimatedCompletion: est,
		UpdatedAt:           updated,
	}, nil
}

// GetOrderHistory returns the list of status changes for the given order.
func (service *Service) GetOrderHistory(ctx context.Context, orderID string) ([]orders.StatusLog, error) {
	order, err := service.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order.History, nil
}

// GetTimer derives the cooking-phase SLA timer for one order.
func (service *Service) GetTimer(ctx context.Context, orderID string, now time.Time) (orders.Timer, error) {
	order, err := service.loadOrder(ctx, orderID)
	if err != nil {
		return orders.Timer{}, err
	}
	return orders.ComputeTimer(order, now, service.graceMinutes)
}

// loadOrder reads and decodes one order record.
func (service *Service) loadOrder(ctx context.Context, orderID string) (*orders.Order, error) {
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
