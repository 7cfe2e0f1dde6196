package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"git.platform.alem.school/amibragim/bazaar/internal/domain/chat"
	"git.platform.alem.school/amibragim/bazaar/internal/ports"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/bus"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/contracts"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(capacityBytes int64, cfg Config) (*Service, *bus.Bus) {
	eventBus := bus.New()
	tracker := NewTracker(eventBus, 30*time.Millisecond)
	svc := New(store.NewMemory(capacityBytes), eventBus, nil, logger.NewLogger("test"), tracker, cfg)
	return svc, eventBus
}

func textCommand(key, text string) ports.SendMessageCommand {
	return ports.SendMessageCommand{
		ChannelKey: key,
		Sender:     chat.SenderCustomer,
		Text:       text,
	}
}

func TestSendMessage_Validation(t *testing.T) {
	svc, _ := newTestService(0, Config{})
	ctx := context.Background()

	// neither text nor image
	_, err := svc.SendMessage(ctx, ports.SendMessageCommand{ChannelKey: "c|p", Sender: chat.SenderCustomer, Text: "   "})
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)

	// bad sender
	_, err = svc.SendMessage(ctx, ports.SendMessageCommand{ChannelKey: "c|p", Sender: "admin", Text: "hi"})
	assert.Error(t, err)

	// non-image content type
	_, err = svc.SendMessage(ctx, ports.SendMessageCommand{
		ChannelKey: "c|p", Sender: chat.SenderCustomer,
		Image: &chat.Attachment{ContentType: "application/pdf", Data: []byte("x")},
	})
	var bad *chat.InvalidAttachmentError
	assert.ErrorAs(t, err, &bad)

	// oversized image
	_, err = svc.SendMessage(ctx, ports.SendMessageCommand{
		ChannelKey: "c|p", Sender: chat.SenderCustomer,
		Image: &chat.Attachment{ContentType: "image/png", Data: make([]byte, 6<<20)},
	})
	assert.ErrorAs(t, err, &bad)

	// no history was written by any rejected message
	history, err := svc.LoadHistory(ctx, "c|p")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSendMessage_RoundTripOrder(t *testing.T) {
	svc, eventBus := newTestService(0, Config{})
	ctx := context.Background()

	var delivered []chat.Message
	eventBus.SubscribeChat(func(e bus.ChatEvent) { delivered = append(delivered, e.Message) })

	for i := 0; i < 3; i++ {
		receipt, err := svc.SendMessage(ctx, textCommand("c|p", fmt.Sprintf("m%d", i)))
		require.NoError(t, err)
		assert.False(t, receipt.AttachmentDropped)
		assert.False(t, receipt.HistoryTruncated)
	}

	history, err := svc.LoadHistory(ctx, "c|p")
	require.NoError(t, err)
	require.Len(t, history, 3)
	// oldest first, ids are time-ordered
	assert.Equal(t, "m0", history[0].Text)
	assert.Equal(t, "m2", history[2].Text)
	assert.True(t, history[0].ID < history[1].ID)

	// every message reached the bus
	assert.Len(t, delivered, 3)
}

func TestSendMessage_TwoSidesInterleave(t *testing.T) {
	svc, _ := newTestService(0, Config{})
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, ports.SendMessageCommand{ChannelKey: "c|p", Sender: chat.SenderCustomer, Text: "Hi"})
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, ports.SendMessageCommand{ChannelKey: "c|p", Sender: chat.SenderPreparer, Text: "Hello"})
	require.NoError(t, err)

	history, err := svc.LoadHistory(ctx, "c|p")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Hi", history[0].Text)
	assert.Equal(t, chat.SenderPreparer, history[1].Sender)
}

func TestSendMessage_ChannelIsolation(t *testing.T) {
	svc, _ := newTestService(0, Config{})
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, textCommand("c1|p1", "one"))
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, textCommand("c2|p1", "two"))
	require.NoError(t, err)

	first, err := svc.LoadHistory(ctx, "c1|p1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "one", first[0].Text)
}

func TestSendMessage_CapEvictsOldest(t *testing.T) {
	svc, _ := newTestService(0, Config{HistoryCap: 3, TruncateTo: 2})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.SendMessage(ctx, textCommand("c|p", fmt.Sprintf("m%d", i)))
		require.NoError(t, err)
	}

	history, err := svc.LoadHistory(ctx, "c|p")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "m2", history[0].Text)
	assert.Equal(t, "m4", history[2].Text)
}

func TestSendMessage_LadderDropsImage(t *testing.T) {
	// the image cannot fit the budget but the bare message can
	svc, _ := newTestService(2048, Config{})
	ctx := context.Background()

	receipt, err := svc.SendMessage(ctx, ports.SendMessageCommand{
		ChannelKey: "c|p",
		Sender:     chat.SenderCustomer,
		Text:       "look at this",
		Image:      &chat.Attachment{ContentType: "image/png", Data: bytes.Repeat([]byte{0xAB}, 100<<10)},
	})
	require.NoError(t, err)
	assert.True(t, receipt.AttachmentDropped)
	assert.Nil(t, receipt.Message.Image)

	history, err := svc.LoadHistory(ctx, "c|p")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "look at this", history[0].Text)
	assert.Nil(t, history[0].Image)
}

func TestSendMessage_HistoryFull(t *testing.T) {
	// nothing fits a 10-byte budget, not even after both rungs
	svc, _ := newTestService(10, Config{})
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, textCommand("c|p", "hello"))
	assert.ErrorIs(t, err, ErrHistoryFull)

	history, err := svc.LoadHistory(ctx, "c|p")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTransforms(t *testing.T) {
	svc, _ := newTestService(0, Config{HistoryCap: 10, TruncateTo: 2})
	now := time.Now().UTC()

	withImage := []chat.Message{
		chat.NewMessage("c|p", chat.SenderCustomer, "a", nil, now),
		chat.NewMessage("c|p", chat.SenderPreparer, "b", &chat.Attachment{ContentType: "image/png", Data: []byte("xyz")}, now),
	}
	raw, err := json.Marshal(withImage)
	require.NoError(t, err)

	// rung 1 strips only the newest message's image
	smaller, changed := svc.stripNewestImage(raw)
	require.True(t, changed)
	var stripped []chat.Message
	require.NoError(t, json.Unmarshal(smaller, &stripped))
	assert.Nil(t, stripped[1].Image)

	// no image on the newest message means nothing to strip
	_, changed = svc.stripNewestImage(smaller)
	assert.False(t, changed)

	// rung 2 keeps only the newest TruncateTo entries
	long := make([]chat.Message, 0, 5)
	for i := 0; i < 5; i++ {
		long = append(long, chat.NewMessage("c|p", chat.SenderCustomer, fmt.Sprintf("m%d", i), nil, now))
	}
	raw, err = json.Marshal(long)
	require.NoError(t, err)

	smaller, changed = svc.truncateHistory(raw)
	require.True(t, changed)
	var truncated []chat.Message
	require.NoError(t, json.Unmarshal(smaller, &truncated))
	require.Len(t, truncated, 2)
	assert.Equal(t, "m3", truncated[0].Text)
	assert.Equal(t, "m4", truncated[1].Text)

	// already short histories are left alone
	_, changed = svc.truncateHistory(smaller)
	assert.False(t, changed)
}

func TestHandleIncomingMessage_Dedup(t *testing.T) {
	svc, _ := newTestService(0, Config{})
	ctx := context.Background()

	env := contracts.ChatMessageEnvelope{
		MessageID:  "123-abc",
		ChannelKey: "c|p",
		Sender:     "preparer",
		Text:       "from the other side",
		Timestamp:  time.Now().UTC(),
	}

	require.NoError(t, svc.HandleIncomingMessage(ctx, env))
	// transport redelivery of the same envelope must be a no-op
	require.NoError(t, svc.HandleIncomingMessage(ctx, env))

	history, err := svc.LoadHistory(ctx, "c|p")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, chat.SenderPreparer, history[0].Sender)
}

func TestTyping_TTLAutoClear(t *testing.T) {
	svc, eventBus := newTestService(0, Config{})

	events := make(chan bus.TypingEvent, 8)
	eventBus.SubscribeTyping(func(e bus.TypingEvent) { events <- e })

	require.NoError(t, svc.Typing(context.Background(), "c|p", chat.SenderCustomer))
	svc.tracker.Signal("c|p", chat.SenderCustomer)
	assert.True(t, svc.tracker.Active("c|p", chat.SenderCustomer))

	// wait past the 30ms test TTL for the edge-triggered clear
	deadline := time.After(500 * time.Millisecond)
	var saw []bus.TypingEvent
	for {
		select {
		case e := <-events:
			saw = append(saw, e)
			if !e.Active {
				assert.False(t, svc.tracker.Active("c|p", chat.SenderCustomer))
				// actives first, exactly one inactive at the end
				for _, prev := range saw[:len(saw)-1] {
					assert.True(t, prev.Active)
				}
				return
			}
		case <-deadline:
			t.Fatal("typing indicator never cleared")
		}
	}
}

func TestTyping_InvalidSender(t *testing.T) {
	svc, _ := newTestService(0, Config{})
	err := svc.Typing(context.Background(), "c|p", chat.Sender("admin"))
	assert.Error(t, err)
}
