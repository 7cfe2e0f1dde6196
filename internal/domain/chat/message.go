package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyMessage is returned when a message carries neither text nor image.
var ErrEmptyMessage = errors.New("chat message must contain text or an image")

// InvalidAttachmentError is returned when an image payload fails type or
// size validation. The channel history is not mutated.
type InvalidAttachmentError struct {
	Reason string
}

func (e *InvalidAttachmentError) Error() string {
	return "invalid attachment: " + e.Reason
}

// Sender identifies which side of the channel produced a message.
type Sender string

const (
	SenderCustomer Sender = "customer"
	SenderPreparer Sender = "preparer"
)

// Valid reports whether s is a known channel side.
func (s Sender) Valid() bool {
	return s == SenderCustomer || s == SenderPreparer
}

// Attachment is an inline image payload carried by a message.
type Attachment struct {
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"` // base64 over the wire via encoding/json
}

// Message is one chat entry. Messages are immutable after creation;
// capacity-driven oldest-first eviction is the only removal path.
type Message struct {
	ID         string      `json:"id"` // time-ordered: "<unixnano>-<uuid>"
	ChannelKey string      `json:"channel_key"`
	Sender     Sender      `json:"sender"`
	Text       string      `json:"text,omitempty"`
	Image      *Attachment `json:"image,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewMessage builds a message with a time-ordered id.
func NewMessage(channelKey string, sender Sender, text string, image *Attachment, now time.Time) Message {
	return Message{
		ID:         fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()),
		ChannelKey: channelKey,
		Sender:     sender,
		Text:       text,
		Image:      image,
		Timestamp:  now,
	}
}

// ChannelKey derives the stable identifier for the (customer, preparer)
// pair owning one chat history.
func ChannelKey(customerID, preparerID string) string {
	return customerID + "|" + preparerID
}

// SplitChannelKey returns the customer and preparer ids encoded in a key.
func SplitChannelKey(key string) (customerID, preparerID string, ok bool) {
	customerID, preparerID, ok = strings.Cut(key, "|")
	return
}

// HistoryKey builds the store key for one channel's bounded history.
func HistoryKey(channelKey string) string {
	return "chat:" + channelKey
}
