package notification

import (
	"context"
	"fmt"
	"testing"
	"time"

	"git.platform.alem.school/amibragim/bazaar/internal/app/orderstate"
	"git.platform.alem.school/amibragim/bazaar/internal/domain/notifications"
	"git.platform.alem.school/amibragim/bazaar/internal/domain/orders"
	"git.platform.alem.school/amibragim/bazaar/internal/ports"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/bus"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(inboxCap int) (*Service, *bus.Bus) {
	eventBus := bus.New()
	svc := New(store.NewMemory(0), eventBus, logger.NewLogger("test"), inboxCap)
	svc.SubscribeToOrders(eventBus)
	return svc, eventBus
}

func orderEvent(topic, orderID string) bus.OrderEvent {
	return bus.OrderEvent{
		Topic:      topic,
		OrderID:    orderID,
		Status:     orders.StatusPendingConfirmation,
		CustomerID: "cust-1",
		PreparerID: "prep-1",
		Total:      900,
		At:         time.Now().UTC(),
	}
}

func TestNotify_AppendsNewestFirst(t *testing.T) {
	svc, _ := newTestService(50)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Notify(ctx, ports.NotifyCommand{
			TargetRole: notifications.RoleCustomer,
			TargetID:   "cust-1",
			Type:       "test",
			Title:      fmt.Sprintf("n%d", i),
		})
		require.NoError(t, err)
	}

	inbox, err := svc.ListInbox(ctx, notifications.RoleCustomer, "cust-1")
	require.NoError(t, err)
	require.Len(t, inbox, 3)
	assert.Equal(t, "n2", inbox[0].Title)
	assert.Equal(t, "n0", inbox[2].Title)
	assert.Equal(t, notifications.PriorityNormal, inbox[0].Priority)
}

func TestNotify_CapEvictsOldest(t *testing.T) {
	svc, _ := newTestService(5)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := svc.Notify(ctx, ports.NotifyCommand{
			TargetRole: notifications.RolePreparer,
			TargetID:   "prep-1",
			Title:      fmt.Sprintf("n%d", i),
		})
		require.NoError(t, err)
	}

	inbox, err := svc.ListInbox(ctx, notifications.RolePreparer, "prep-1")
	require.NoError(t, err)
	require.Len(t, inbox, 5)
	assert.Equal(t, "n7", inbox[0].Title)
	assert.Equal(t, "n3", inbox[4].Title)
}

func TestNotify_InboxesAreIsolated(t *testing.T) {
	svc, _ := newTestService(50)
	ctx := context.Background()

	_, err := svc.Notify(ctx, ports.NotifyCommand{
		TargetRole: notifications.RoleCustomer, TargetID: "cust-1", Title: "a",
	})
	require.NoError(t, err)

	// same id under a different role is a different inbox
	other, err := svc.ListInbox(ctx, notifications.RolePreparer, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestOrderEventRouting(t *testing.T) {
	svc, eventBus := newTestService(50)
	ctx := context.Background()

	eventBus.PublishOrder(orderEvent(bus.TopicOrderCreated, "o-1"))
	eventBus.PublishOrder(orderEvent("order.confirmed", "o-1"))
	eventBus.PublishOrder(orderEvent("order.ready", "o-1"))
	eventBus.PublishOrder(orderEvent("order.cancelled", "o-1"))

	// created and cancelled go to the preparer
	prep, err := svc.ListInbox(ctx, notifications.RolePreparer, "prep-1")
	require.NoError(t, err)
	require.Len(t, prep, 2)
	assert.Equal(t, "order_cancelled", prep[0].Type)
	assert.Equal(t, "new_order", prep[1].Type)
	assert.Equal(t, notifications.PriorityHigh, prep[0].Priority)

	// confirmed and ready go to the customer
	cust, err := svc.ListInbox(ctx, notifications.RoleCustomer, "cust-1")
	require.NoError(t, err)
	require.Len(t, cust, 2)
	assert.Equal(t, "o-1", cust[0].RelatedOrderID)
}

func TestOrderEventDedup(t *testing.T) {
	svc, eventBus := newTestService(50)
	ctx := context.Background()

	// at-least-once delivery: the same (order, topic) pair arrives twice
	eventBus.PublishOrder(orderEvent("order.confirmed", "o-1"))
	eventBus.PublishOrder(orderEvent("order.confirmed", "o-1"))
	eventBus.PublishOrder(orderEvent("order.confirmed", "o-2"))

	cust, err := svc.ListInbox(ctx, notifications.RoleCustomer, "cust-1")
	require.NoError(t, err)
	assert.Len(t, cust, 2)
}

func TestUnknownTopicIgnored(t *testing.T) {
	svc, eventBus := newTestService(50)

	eventBus.PublishOrder(orderEvent("order.pending_confirmation", "o-1"))

	cust, err := svc.ListInbox(context.Background(), notifications.RoleCustomer, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, cust)
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	svc, _ := newTestService(50)
	ctx := context.Background()

	first, err := svc.Notify(ctx, ports.NotifyCommand{
		TargetRole: notifications.RoleCustomer, TargetID: "cust-1", Title: "a",
	})
	require.NoError(t, err)
	_, err = svc.Notify(ctx, ports.NotifyCommand{
		TargetRole: notifications.RoleCustomer, TargetID: "cust-1", Title: "b",
	})
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, notifications.RoleCustomer, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, svc.MarkRead(ctx, notifications.RoleCustomer, "cust-1", first.ID))

	count, err = svc.UnreadCount(ctx, notifications.RoleCustomer, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// marking again is fine, marking a missing id is not
	require.NoError(t, svc.MarkRead(ctx, notifications.RoleCustomer, "cust-1", first.ID))
	err = svc.MarkRead(ctx, notifications.RoleCustomer, "cust-1", "nope")
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestLifecycleProducesOneNotificationPerStep(t *testing.T) {
	eventBus := bus.New()
	st := store.NewMemory(0)
	svc := New(st, eventBus, logger.NewLogger("test"), 50)
	svc.SubscribeToOrders(eventBus)
	orderSvc := orderstate.New(st, eventBus, nil, logger.NewLogger("test"))
	ctx := context.Background()

	inboxTotal := func() int {
		cust, err := svc.ListInbox(ctx, notifications.RoleCustomer, "cust-1")
		require.NoError(t, err)
		prep, err := svc.ListInbox(ctx, notifications.RolePreparer, "prep-1")
		require.NoError(t, err)
		return len(cust) + len(prep)
	}

	order, err := orderSvc.CreateOrder(ctx, ports.CreateOrderCommand{
		CustomerID: "cust-1",
		PreparerID: "prep-1",
		Items: []ports.ItemInput{
			{DishID: "plov", Quantity: 2, UnitPrice: 250},
			{DishID: "tea", Quantity: 3, UnitPrice: 100},
		},
	})
	require.NoError(t, err)
	require.Equal(t, orders.Money(800), order.Total)
	assert.Equal(t, 1, inboxTotal())

	steps := []orders.OrderStatus{
		orders.StatusConfirmed,
		orders.StatusPreparing,
		orders.StatusReady,
		orders.StatusInDelivery,
		orders.StatusDelivered,
		orders.StatusCompleted,
	}
	for i, target := range steps {
		order, err = orderSvc.Transition(ctx, order.ID, target, "test")
		require.NoError(t, err)
		assert.Equal(t, i+2, inboxTotal(), "after %s", target)
	}
	assert.Equal(t, orders.StatusCompleted, order.Status)
}

func TestNotify_StoreFullNeverFailsCaller(t *testing.T) {
	// a budget too small for even one notification record
	eventBus := bus.New()
	svc := New(store.NewMemory(8), eventBus, logger.NewLogger("test"), 50)

	var published int
	eventBus.SubscribeNotifications(func(bus.NotificationEvent) { published++ })

	n, err := svc.Notify(context.Background(), ports.NotifyCommand{
		TargetRole: notifications.RoleCustomer, TargetID: "cust-1", Title: "a",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)

	// the in-memory event still reached subscribers
	assert.Equal(t, 1, published)
}
