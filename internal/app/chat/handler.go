package chat

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"git.platform.alem.school/amibragim/bazaar/internal/domain/chat"
	"git.platform.alem.school/amibragim/bazaar/internal/ports"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"
)

// HTTPHandler adapts HTTP requests to the ChatService.
type HTTPHandler struct {
	svc    ports.ChatService
	logger *logger.Logger
}

// NewHTTPHandler wires an HTTP handler around the chat service.
func NewHTTPHandler(svc ports.ChatService, logger *logger.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: logger}
}

// Register mounts the chat routes on the provided mux. The channel is
// addressed by its two participants.
func (handler *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /chats/{customer_id}/{preparer_id}/messages", handler.sendMessage)
	mux.HandleFunc("POST /chats/{customer_id}/{preparer_id}/typing", handler.typing)
	mux.HandleFunc("GET /chats/{customer_id}/{preparer_id}/messages", handler.loadHistory)
}

type sendMessageRequest struct {
	Sender string `json:"sender"`
	Text   string `json:"text,omitempty"`
	// Inline attachment, base64 in transit.
	ImageType string `json:"image_type,omitempty"`
	ImageData string `json:"image_data,omitempty"`
}

type typingRequest struct {
	Sender string `json:"sender"`
}

// sendMessage handles POST /chats/{customer_id}/{preparer_id}/messages.
func (handler *HTTPHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	channelKey := chat.ChannelKey(r.PathValue("customer_id"), r.PathValue("preparer_id"))

	// attachments fit well under this with base64 overhead
	r.Body = http.MaxBytesReader(w, r.Body, 8<<20)
	defer r.Body.Close()

	var req sendMessageRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		handler.writeErr(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	cmd := ports.SendMessageCommand{
		ChannelKey: channelKey,
		Sender:     chat.Sender(req.Sender),
		Text:       req.Text,
	}
	if req.ImageData != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageData)
		if err != nil {
			handler.writeErr(w, http.StatusBadRequest, "image_data must be base64")
			return
		}
		cmd.Image = &chat.Attachment{ContentType: req.ImageType, Data: data}
	}

	receipt, err := handler.svc.SendMessage(ctx, cmd)
	if err != nil {
		var badAttachment *chat.InvalidAttachmentError
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			handler.writeErr(w, http.StatusBadRequest, "message must carry text or an image")
		case errors.As(err, &badAttachment):
			handler.writeErr(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrHistoryFull):
			handler.writeErr(w, http.StatusInsufficientStorage, "chat history is full")
		default:
			handler.logger.Error(ctx, "chat_send_failed", "failed to send message", err)
			handler.writeErr(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	handler.writeJSON(w, http.StatusCreated, map[string]any{
		"message_id":         receipt.Message.ID,
		"timestamp":          receipt.Message.Timestamp,
		"attachment_dropped": receipt.AttachmentDropped,
		"history_truncated":  receipt.HistoryTruncated,
	})
}

// typing handles POST /chats/{customer_id}/{preparer_id}/typing.
func (handler *HTTPHandler) typing(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	channelKey := chat.ChannelKey(r.PathValue("customer_id"), r.PathValue("preparer_id"))

	r.Body = http.MaxBytesReader(w, r.Body, 1<<12)
	defer r.Body.Close()

	var req typingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.writeErr(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := handler.svc.Typing(ctx, channelKey, chat.Sender(req.Sender)); err != nil {
		handler.writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	handler.writeJSON(w, http.StatusAccepted, map[string]any{"status": "ok"})
}

// loadHistory handles GET /chats/{customer_id}/{preparer_id}/messages.
func (handler *HTTPHandler) loadHistory(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	channelKey := chat.ChannelKey(r.PathValue("customer_id"), r.PathValue("preparer_id"))

	history, err := handler.svc.LoadHistory(ctx, channelKey)
	if err != nil {
		handler.logger.Error(ctx, "chat_history_failed", "failed to load history", err)
		handler.writeErr(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if history == nil {
		history = []chat.Message{}
	}

	handler.writeJSON(w, http.StatusOK, history)
}

// --- Helpers ---

// writeJSON writes the provided value as a JSON response with the given status code.
func (handler *HTTPHandler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr writes a JSON error response with a message.
func (handler *HTTPHandler) writeErr(w http.ResponseWriter, code int, msg string) {
	handler.writeJSON(w, code, map[string]any{"error": msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *HTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
