package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"git.platform.alem.school/amibragim/bazaar/internal/domain/notifications"
	"git.platform.alem.school/amibragim/bazaar/internal/ports"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/bus"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/store"

	"github.com/google/uuid"
)

// seenCapacity bounds the dedupe set for reapplied order events.
const seenCapacity = 4096

// ErrNotificationNotFound is returned by MarkRead when the inbox holds no
// notification with the given id.
var ErrNotificationNotFound = errors.New("notification not found")

// Service implements ports.NotificationService: role-scoped bounded
// inboxes (newest first) with read/unread tracking.
type Service struct {
	store    store.Store
	bus      *bus.Bus
	logger   *logger.Logger
	inboxCap int

	mu   sync.Mutex
	seen map[string]struct{} // "<orderID>|<topic>" pairs already applied
}

var _ ports.NotificationService = (*Service)(nil)

// New creates the notification service. inboxCap <= 0 selects the default of 50.
func New(st store.Store, eventBus *bus.Bus, logger *logger.Logger, inboxCap int) *Service {
	if inboxCap <= 0 {
		inboxCap = 50
	}
	return &Service{
		store:    st,
		bus:      eventBus,
		logger:   logger,
		inboxCap: inboxCap,
		seen:     make(map[string]struct{}),
	}
}

// SubscribeToOrders registers the order.* handler that synthesizes
// counter-party notifications from the static routing table.
func (service *Service) SubscribeToOrders(eventBus *bus.Bus) {
	eventBus.SubscribeOrders(service.onOrderEvent)
}

// onOrderEvent applies one lifecycle event. Events are at-least-once, so a
// (order, topic) pair already applied is skipped.
func (service *Service) onOrderEvent(e bus.OrderEvent) {
	if !service.firstApplication(e.OrderID + "|" + e.Topic) {
		return
	}

	r, ok := orderRoutes[e.Topic]
	if !ok {
		return
	}

	_, _ = service.Notify(context.Background(), ports.NotifyCommand{
		TargetRole:     r.target,
		TargetID:       actorFor(r.target, e),
		Type:           r.typ,
		Title:          r.title,
		Message:        r.message(e),
		RelatedOrderID: e.OrderID,
		Priority:       r.priority,
	})
}

// firstApplication records the pair and reports whether it was new.
func (service *Service) firstApplication(key string) bool {
	service.mu.Lock()
	defer service.mu.Unlock()

	if _, dup := service.seen[key]; dup {
		return false
	}
	if len(service.seen) >= seenCapacity {
		service.seen = make(map[string]struct{})
	}
	service.seen[key] = struct{}{}
	return true
}

// Notify creates a notification and prepends it to the target's bounded
// inbox. It never fails the caller: if persistence is impossible even after
// degradation, the returned notification exists only in memory and a
// degraded-mode warning is logged.
func (service *Service) Notify(ctx context.Context, cmd ports.NotifyCommand) (notifications.Notification, error) {
	n := notifications.Notification{
		ID:             uuid.NewString(),
		Type:           cmd.Type,
		Title:          cmd.Title,
		Message:        cmd.Message,
		TargetRole:     cmd.TargetRole,
		TargetID:       cmd.TargetID,
		RelatedOrderID: cmd.RelatedOrderID,
		CreatedAt:      time.Now().UTC(),
		Priority:       cmd.Priority,
	}
	if n.Priority == "" {
		n.Priority = notifications.PriorityNormal
	}

	key := notifications.InboxKey(cmd.TargetRole, cmd.TargetID)

	// read-modify-write: reload right before the append
	inbox, err := service.loadInbox(ctx, key)
	if err != nil {
		service.logger.Error(ctx, "inbox_load_failed", "failed to load inbox, starting fresh", err)
		inbox = nil
	}

	inbox = append([]notifications.Notification{n}, inbox...)
	if len(inbox) > service.inboxCap {
		inbox = inbox[:service.inboxCap] // evict oldest (tail of newest-first list)
	}

	raw, err := json.Marshal(inbox)
	if err != nil {
		service.logger.Error(ctx, "inbox_encode_failed", "failed to encode inbox", err)
		return n, nil
	}

	result, err := store.PutWithFallback(ctx, service.store, key, raw, nil, service.truncateInbox)
	if err != nil {
		service.logger.Warn(ctx, "notification_degraded",
			"inbox write abandoned; notification exists in memory only",
			map[string]any{"target_role": cmd.TargetRole, "target_id": cmd.TargetID})
	} else if result.TruncatedHistory {
		service.logger.Warn(ctx, "notification_degraded",
			"inbox truncated to fit capacity",
			map[string]any{"target_role": cmd.TargetRole, "target_id": cmd.TargetID})
	}

	// open views for this actor refresh regardless of persistence outcome
	service.bus.PublishNotification(bus.NotificationEvent{Notification: n})

	return n, nil
}

// truncateInbox is the ladder's history rung: keep the newest half.
func (service *Service) truncateInbox(raw []byte) ([]byte, bool) {
	var inbox []notifications.Notification
	if err := json.Unmarshal(raw, &inbox); err != nil {
		return raw, false
	}
	keep := service.inboxCap / 2
	if keep < 1 {
		keep = 1
	}
	if len(inbox) <= keep {
		return raw, false
	}
	smaller, err := json.Marshal(inbox[:keep])
	if err != nil {
		return raw, false
	}
	return smaller, true
}

// MarkRead flips the read flag on one notification in the actor's inbox.
func (service *Service) MarkRead(ctx context.Context, role notifications.Role, targetID, notificationID string) error {
	key := notifications.InboxKey(role, targetID)
	inbox, err := service.loadInbox(ctx, key)
	if err != nil {
		return err
	}

	found := false
	for i := range inbox {
		if inbox[i].ID == notificationID {
			inbox[i].Read = true
			found = true
			break
		}
	}
	if !found {
		return ErrNotificationNotFound
	}

	raw, err := json.Marshal(inbox)
	if err != nil {
		return err
	}
	return service.store.Put(ctx, key, raw)
}

// ListInbox returns the actor's notifications, newest first.
func (service *Service) ListInbox(ctx context.Context, role notifications.Role, targetID string) ([]notifications.Notification, error) {
	return service.loadInbox(ctx, notifications.InboxKey(role, targetID))
}

// UnreadCount returns the number of unread notifications in the inbox.
func (service *Service) UnreadCount(ctx context.Context, role notifications.Role, targetID string) (int, error) {
	inbox, err := service.loadInbox(ctx, notifications.InboxKey(role, targetID))
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range inbox {
		if !inbox[i].Read {
			count++
		}
	}
	return count, nil
}

// loadInbox reads and decodes one inbox; a missing key is an empty inbox.
func (service *Service) loadInbox(ctx context.Context, key string) ([]notifications.Notification, error) {
	raw, err := service.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var inbox []notifications.Notification
	if err := json.Unmarshal(raw, &inbox); err != nil {
		return nil, err
	}
	return inbox, nil
}
