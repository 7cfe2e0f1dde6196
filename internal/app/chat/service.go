package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"git.platform.alem.school/amibragim/bazaar/internal/domain/chat"
	"git.platform.alem.school/amibragim/bazaar/internal/ports"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/bus"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/contracts"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/store"
)

// ErrHistoryFull is returned when even the degraded write could not extend
// the channel history. Prior history is untouched.
var ErrHistoryFull = errors.New("chat history could not be extended")

// DefaultImageMaxBytes caps inline image payloads at 5 MiB.
const DefaultImageMaxBytes = 5 << 20

// Config bounds one chat service instance.
type Config struct {
	HistoryCap    int // messages kept per channel (default 150)
	TruncateTo    int // ladder rung 2 keeps this many newest (default 50)
	ImageMaxBytes int
}

func (c *Config) applyDefaults() {
	if c.HistoryCap <= 0 {
		c.HistoryCap = 150
	}
	if c.TruncateTo <= 0 || c.TruncateTo > c.HistoryCap {
		c.TruncateTo = 50
	}
	if c.ImageMaxBytes <= 0 {
		c.ImageMaxBytes = DefaultImageMaxBytes
	}
}

// Service implements ports.ChatService.
type Service struct {
	store     store.Store
	bus       *bus.Bus
	transport ports.Transport // optional; nil in single-process runs
	logger    *logger.Logger
	tracker   *Tracker
	cfg       Config
}

var _ ports.ChatService = (*Service)(nil)

// New creates the chat layer with the required dependencies.
func New(st store.Store, eventBus *bus.Bus, transport ports.Transport, logger *logger.Logger, tracker *Tracker, cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{
		store:     st,
		bus:       eventBus,
		transport: transport,
		logger:    logger,
		tracker:   tracker,
		cfg:       cfg,
	}
}

// SendMessage validates, persists, and publishes one message:
// composed -> persisted -> published. On quota pressure the degradation
// ladder first drops the image, then truncates history; only if both fail
// is the write abandoned with ErrHistoryFull.
func (service *Service) SendMessage(ctx context.Context, cmd ports.SendMessageCommand) (ports.SendReceipt, error) {
	if strings.TrimSpace(cmd.Text) == "" && (cmd.Image == nil || len(cmd.Image.Data) == 0) {
		return ports.SendReceipt{}, chat.ErrEmptyMessage
	}
	if !cmd.Sender.Valid() {
		return ports.SendReceipt{}, errors.New("sender must be 'customer' or 'preparer'")
	}
	if cmd.Image != nil && len(cmd.Image.Data) > 0 {
		if !strings.HasPrefix(cmd.Image.ContentType, "image/") {
			return ports.SendReceipt{}, &chat.InvalidAttachmentError{Reason: "content type must be image/*"}
		}
		if len(cmd.Image.Data) > service.cfg.ImageMaxBytes {
			return ports.SendReceipt{}, &chat.InvalidAttachmentError{Reason: "image exceeds size limit"}
		}
	}

	msg := chat.NewMessage(cmd.ChannelKey, cmd.Sender, cmd.Text, cmd.Image, time.Now().UTC())

	receipt, err := service.appendMessage(ctx, msg)
	if err != nil {
		return ports.SendReceipt{}, err
	}
	if receipt.AttachmentDropped {
		// keep the published copy consistent with what was persisted
		receipt.Message.Image = nil
	}

	service.bus.PublishChat(bus.ChatEvent{Message: receipt.Message})
	service.publishRemote(ctx, receipt.Message)

	return receipt, nil
}

// Typing signals the counter-party, fire and forget.
func (service *Service) Typing(ctx context.Context, channelKey string, from chat.Sender) error {
	if !from.Valid() {
		return errors.New("sender must be 'customer' or 'preparer'")
	}

	service.bus.PublishTyping(bus.TypingEvent{
		ChannelKey: channelKey,
		From:       from,
		Active:     true,
		At:         time.Now().UTC(),
	})

	if service.transport != nil {
		sig := contracts.TypingSignal{
			ChannelKey: channelKey,
			From:       string(from),
			At:         time.Now().UTC(),
		}
		if err := service.transport.PublishTyping(ctx, sig); err != nil {
			service.logger.Error(ctx, "transport_publish_failed", "failed to publish typing signal", err)
		}
	}
	return nil
}

// LoadHistory returns the persisted channel history, oldest first.
func (service *Service) LoadHistory(ctx context.Context, channelKey string) ([]chat.Message, error) {
	return service.loadHistory(ctx, chat.HistoryKey(channelKey))
}

// HandleIncomingMessage applies a message delivered by the real-time
// transport. Deliveries are asynchronous and may interleave with local
// sends, so the history is reloaded and the message deduped by id.
func (service *Service) HandleIncomingMessage(ctx context.Context, env contracts.ChatMessageEnvelope) error {
	if service.transport != nil && env.OriginToken == service.transport.OriginToken() {
		return nil // our own publication echoed back
	}

	msg := chat.Message{
		ID:         env.MessageID,
		ChannelKey: env.ChannelKey,
		Sender:     chat.Sender(env.Sender),
		Text:       env.Text,
		Timestamp:  env.Timestamp,
	}
	if len(env.ImageData) > 0 {
		msg.Image = &chat.Attachment{ContentType: env.ImageType, Data: env.ImageData}
	}

	history, err := service.loadHistory(ctx, chat.HistoryKey(env.ChannelKey))
	if err != nil {
		return err
	}
	for i := range history {
		if history[i].ID == msg.ID {
			return nil // already applied
		}
	}

	if _, err := service.appendMessage(ctx, msg); err != nil {
		return err
	}
	service.bus.PublishChat(bus.ChatEvent{Message: msg})
	return nil
}

// HandleIncomingTyping applies a typing signal from the transport and arms
// the auto-clear.
func (service *Service) HandleIncomingTyping(sig contracts.TypingSignal) {
	if service.transport != nil && sig.OriginToken == service.transport.OriginToken() {
		return
	}
	service.tracker.Signal(sig.ChannelKey, chat.Sender(sig.From))
}

// appendMessage is the read-modify-write bounded append shared by local
// sends and transport deliveries.
func (service *Service) appendMessage(ctx context.Context, msg chat.Message) (ports.SendReceipt, error) {
	key := chat.HistoryKey(msg.ChannelKey)

	history, err := service.loadHistory(ctx, key)
	if err != nil {
		return ports.SendReceipt{}, err
	}

	history = append(history, msg)
	if len(history) > service.cfg.HistoryCap {
		history = history[len(history)-service.cfg.HistoryCap:] // evict oldest
	}

	raw, err := json.Marshal(history)
	if err != nil {
		return ports.SendReceipt{}, err
	}

	result, err := store.PutWithFallback(ctx, service.store, key, raw,
		service.stripNewestImage, service.truncateHistory)
	if err != nil {
		service.logger.Warn(ctx, "chat_degraded", "message write abandoned, history unchanged",
			map[string]any{"channel_key": msg.ChannelKey})
		return ports.SendReceipt{}, ErrHistoryFull
	}
	if result.Degraded() {
		service.logger.Warn(ctx, "chat_degraded", "message persisted with reduced fidelity",
			map[string]any{
				"channel_key":        msg.ChannelKey,
				"attachment_dropped": result.TrimmedLargeFields,
				"history_truncated":  result.TruncatedHistory,
			})
	}

	return ports.SendReceipt{
		Message:           msg,
		AttachmentDropped: result.TrimmedLargeFields,
		HistoryTruncated:  result.TruncatedHistory,
	}, nil
}

// stripNewestImage is ladder rung 1: retry without the image on the message
// being appended.
func (service *Service) stripNewestImage(raw []byte) ([]byte, bool) {
	var history []chat.Message
	if err := json.Unmarshal(raw, &history); err != nil {
		return raw, false
	}
	if len(history) == 0 || history[len(history)-1].Image == nil {
		return raw, false
	}
	history[len(history)-1].Image = nil
	smaller, err := json.Marshal(history)
	if err != nil {
		return raw, false
	}
	return smaller, true
}

// truncateHistory is ladder rung 2: keep only the newest configured slice.
func (service *Service) truncateHistory(raw []byte) ([]byte, bool) {
	var history []chat.Message
	if err := json.Unmarshal(raw, &history); err != nil {
		return raw, false
	}
	if len(history) <= service.cfg.TruncateTo {
		return raw, false
	}
	smaller, err := json.Marshal(history[len(history)-service.cfg.TruncateTo:])
	if err != nil {
		return raw, false
	}
	return smaller, true
}

// publishRemote mirrors a persisted message onto the transport. Best-effort:
// the local commit already succeeded.
func (service *Service) publishRemote(ctx context.Context, msg chat.Message) {
	if service.transport == nil {
		return
	}

	env := contracts.ChatMessageEnvelope{
		MessageID:  msg.ID,
		ChannelKey: msg.ChannelKey,
		Sender:     string(msg.Sender),
		Text:       msg.Text,
		Timestamp:  msg.Timestamp,
	}
	if msg.Image != nil {
		env.ImageType = msg.Image.ContentType
		env.ImageData = msg.Image.Data
	}
	if err := service.transport.PublishChatMessage(ctx, env); err != nil {
		service.logger.Error(ctx, "transport_publish_failed", "failed to publish chat message", err)
	}
}

// loadHistory reads one channel history; a missing key is an empty history.
func (service *Service) loadHistory(ctx context.Context, key string) ([]chat.Message, error) {
	raw, err := service.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var history []chat.Message
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, err
	}
	return history, nil
}
