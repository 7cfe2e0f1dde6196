package orderstate

import (
	"context"
	"testing"
	"time"

	"git.platform.alem.school/amibragim/bazaar/internal/domain/orders"
	"git.platform.alem.school/amibragim/bazaar/internal/ports"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/bus"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *bus.Bus) {
	eventBus := bus.New()
	svc := New(store.NewMemory(0), eventBus, nil, logger.NewLogger("test"))
	return svc, eventBus
}

func validCommand() ports.CreateOrderCommand {
	return ports.CreateOrderCommand{
		CustomerID: "cust-1",
		PreparerID: "prep-1",
		Items: []ports.ItemInput{
			{DishID: "plov", Quantity: 2, UnitPrice: 250},
			{DishID: "tea", Quantity: 3, UnitPrice: 100},
		},
		DeliveryFee: 150,
		Discount:    50,
	}
}

func TestCreateOrder(t *testing.T) {
	svc, eventBus := newTestService()
	ctx := context.Background()

	var events []bus.OrderEvent
	eventBus.SubscribeOrders(func(e bus.OrderEvent) { events = append(events, e) })

	order, err := svc.CreateOrder(ctx, validCommand())
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, orders.StatusPendingConfirmation, order.Status)
	assert.Equal(t, orders.Money(800), order.Subtotal)
	assert.Equal(t, orders.Money(900), order.Total)
	assert.Len(t, order.History, 1)

	require.Len(t, events, 1)
	assert.Equal(t, bus.TopicOrderCreated, events[0].Topic)
	assert.Equal(t, order.ID, events[0].OrderID)

	// persisted copy matches
	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Total, stored.Total)
}

func TestCreateOrder_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*ports.CreateOrderCommand)
	}{
		{"no items", func(c *ports.CreateOrderCommand) { c.Items = nil }},
		{"too many items", func(c *ports.CreateOrderCommand) {
			c.Items = make([]ports.ItemInput, 21)
			for i := range c.Items {
				c.Items[i] = ports.ItemInput{DishID: "x", Quantity: 1, UnitPrice: 1}
			}
		}},
		{"missing customer", func(c *ports.CreateOrderCommand) { c.CustomerID = " " }},
		{"missing preparer", func(c *ports.CreateOrderCommand) { c.PreparerID = "" }},
		{"zero quantity", func(c *ports.CreateOrderCommand) { c.Items[0].Quantity = 0 }},
		{"quantity too big", func(c *ports.CreateOrderCommand) { c.Items[0].Quantity = 11 }},
		{"free dish", func(c *ports.CreateOrderCommand) { c.Items[0].UnitPrice = 0 }},
		{"negative discount", func(c *ports.CreateOrderCommand) { c.Discount = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := validCommand()
			tt.mutate(&cmd)
			_, err := svc.CreateOrder(ctx, cmd)
			assert.Error(t, err)
		})
	}
}

func TestTransition_FullLifecycle(t *testing.T) {
	svc, eventBus := newTestService()
	ctx := context.Background()

	var events []bus.OrderEvent
	eventBus.SubscribeOrders(func(e bus.OrderEvent) { events = append(events, e) })

	order, err := svc.CreateOrder(ctx, validCommand())
	require.NoError(t, err)

	steps := []orders.OrderStatus{
		orders.StatusConfirmed,
		orders.StatusPreparing,
		orders.StatusReady,
		orders.StatusInDelivery,
		orders.StatusDelivered,
		orders.StatusCompleted,
	}
	for _, target := range steps {
		order, err = svc.Transition(ctx, order.ID, target, "test")
		require.NoError(t, err, "transition to %s", target)
		assert.Equal(t, target, order.Status)
	}

	// one creation event plus one per step
	require.Len(t, events, 1+len(steps))
	for i, target := range steps {
		assert.Equal(t, bus.OrderTopic(target), events[i+1].Topic)
	}

	// all six lifecycle timestamps stamped
	final, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.NotNil(t, final.ConfirmedAt)
	assert.NotNil(t, final.CookingStartTime)
	assert.NotNil(t, final.ReadyAt)
	assert.NotNil(t, final.DeliveryStartTime)
	assert.NotNil(t, final.DeliveredAt)
	assert.NotNil(t, final.CompletedAt)
	assert.Nil(t, final.CancelledAt)

	// history: created + six transitions
	assert.Len(t, final.History, 7)
}

func TestTransition_InvalidLeavesOrderUnchanged(t *testing.T) {
	svc, eventBus := newTestService()
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, validCommand())
	require.NoError(t, err)

	var events []bus.OrderEvent
	eventBus.SubscribeOrders(func(e bus.OrderEvent) { events = append(events, e) })

	// skipping confirmed is illegal
	_, err = svc.Transition(ctx, order.ID, orders.StatusPreparing, "test")
	var invalid *orders.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, orders.StatusPendingConfirmation, invalid.From)
	assert.Equal(t, orders.StatusPreparing, invalid.To)

	// no event, no mutation
	assert.Empty(t, events)
	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPendingConfirmation, stored.Status)
	assert.Len(t, stored.History, 1)
}

func TestTransition_UnknownStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, validCommand())
	require.NoError(t, err)

	_, err = svc.Transition(ctx, order.ID, orders.OrderStatus("shipped"), "test")
	assert.Error(t, err)
}

func TestTransition_MissingOrder(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Transition(context.Background(), "nope", orders.StatusConfirmed, "test")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransition_CancelBeforeDelivered(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, validCommand())
	require.NoError(t, err)

	order, err = svc.Transition(ctx, order.ID, orders.StatusConfirmed, "customer")
	require.NoError(t, err)

	order, err = svc.Transition(ctx, order.ID, orders.StatusCancelled, "customer")
	require.NoError(t, err)
	assert.NotNil(t, order.CancelledAt)

	// terminal: nothing moves after cancellation
	_, err = svc.Transition(ctx, order.ID, orders.StatusPreparing, "preparer")
	assert.Error(t, err)
}

func TestTimer(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cmd := validCommand()
	cmd.EstimatedPreparationMinutes = 30
	order, err := svc.CreateOrder(ctx, cmd)
	require.NoError(t, err)

	// timer before cooking fails the precondition
	_, err = svc.Timer(ctx, order.ID, time.Now().UTC())
	assert.ErrorIs(t, err, orders.ErrPreconditionFailed)

	order, err = svc.Transition(ctx, order.ID, orders.StatusConfirmed, "preparer")
	require.NoError(t, err)
	order, err = svc.Transition(ctx, order.ID, orders.StatusPreparing, "preparer")
	require.NoError(t, err)

	timer, err := svc.Timer(ctx, order.ID, order.CookingStartTime.Add(12*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 12, timer.ElapsedMinutes)
	assert.Equal(t, 18, timer.RemainingMinutes)
	assert.False(t, timer.IsOverdue)
}
