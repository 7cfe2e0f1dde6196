package contracts

import "time"

// StatusUpdateMessage is published to "status_fanout" after a successful
// store write of an order transition.
type StatusUpdateMessage struct {
	OrderID             string     `json:"order_id"`
	OldStatus           string     `json:"old_status"`
	NewStatus           string     `json:"new_status"`
	ChangedBy           string     `json:"changed_by"`
	Timestamp           time.Time  `json:"timestamp"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
}

// ChatMessageEnvelope is the wire format for cross-actor chat delivery on
// the "chat_topic" exchange, routing key "chat.<channel_key>.message".
type ChatMessageEnvelope struct {
	MessageID   string    `json:"message_id"`
	ChannelKey  string    `json:"channel_key"`
	Sender      string    `json:"sender"` // "customer" | "preparer"
	Text        string    `json:"text,omitempty"`
	ImageType   string    `json:"image_type,omitempty"`
	ImageData   []byte    `json:"image_data,omitempty"` // base64 via encoding/json
	Timestamp   time.Time `json:"timestamp"`
	OriginToken string    `json:"origin_token"` // suppresses echo back to the publishing process
}

// TypingSignal is the wire format for typing indicators, routing key
// "chat.<channel_key>.typing". Fire-and-forget: no acknowledgement, the
// receiver auto-clears after its TTL.
type TypingSignal struct {
	ChannelKey  string    `json:"channel_key"`
	From        string    `json:"from"`
	At          time.Time `json:"at"`
	OriginToken string    `json:"origin_token"`
}
