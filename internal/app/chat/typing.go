package chat

import (
	"sync"
	"time"

	"git.platform.alem.school/amibragim/bazaar/internal/domain/chat"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/bus"
)

// DefaultTypingTTL is how long a typing indicator stays active without a
// further signal.
const DefaultTypingTTL = 3 * time.Second

// Tracker keeps at most one indicator state per (channel, side) and
// auto-clears it after the TTL: no acknowledgement protocol, a fresh signal
// simply re-arms the timer.
type Tracker struct {
	bus *bus.Bus
	ttl time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewTracker creates a tracker publishing state changes on the bus.
// ttl <= 0 selects the default of 3 seconds.
func NewTracker(eventBus *bus.Bus, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &Tracker{
		bus:    eventBus,
		ttl:    ttl,
		timers: make(map[string]*time.Timer),
	}
}

// Signal marks one side of a channel as typing and re-arms the auto-clear.
func (t *Tracker) Signal(channelKey string, from chat.Sender) {
	key := channelKey + "|" + string(from)

	t.mu.Lock()
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
	}
	t.timers[key] = time.AfterFunc(t.ttl, func() {
		t.clear(channelKey, from)
	})
	t.mu.Unlock()

	t.bus.PublishTyping(bus.TypingEvent{
		ChannelKey: channelKey,
		From:       from,
		Active:     true,
		At:         time.Now().UTC(),
	})
}

// Active reports whether the given side currently shows as typing.
func (t *Tracker) Active(channelKey string, from chat.Sender) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[channelKey+"|"+string(from)]
	return ok
}

// clear drops the indicator and emits the edge-triggered inactive event.
func (t *Tracker) clear(channelKey string, from chat.Sender) {
	key := channelKey + "|" + string(from)

	t.mu.Lock()
	if _, ok := t.timers[key]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.timers, key)
	t.mu.Unlock()

	t.bus.PublishTyping(bus.TypingEvent{
		ChannelKey: channelKey,
		From:       from,
		Active:     false,
		At:         time.Now().UTC(),
	})
}
