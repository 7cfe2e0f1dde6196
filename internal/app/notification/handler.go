package notification

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"git.platform.alem.school/amibragim/bazaar/internal/domain/notifications"
	"git.platform.alem.school/amibragim/bazaar/internal/ports"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"
)

// HTTPHandler adapts HTTP requests to the NotificationService.
type HTTPHandler struct {
	svc    ports.NotificationService
	logger *logger.Logger
}

// NewHTTPHandler wires an HTTP handler around the notification service.
func NewHTTPHandler(svc ports.NotificationService, logger *logger.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: logger}
}

// Register mounts the inbox routes on the provided mux.
func (handler *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /inboxes/{role}/{target_id}", handler.listInbox)
	mux.HandleFunc("GET /inboxes/{role}/{target_id}/unread_count", handler.unreadCount)
	mux.HandleFunc("POST /inboxes/{role}/{target_id}/read/{notification_id}", handler.markRead)
	mux.HandleFunc("POST /notifications", handler.notify)
}

type notifyRequest struct {
	TargetRole     string `json:"target_role"`
	TargetID       string `json:"target_id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	RelatedOrderID string `json:"related_order_id,omitempty"`
	Priority       string `json:"priority,omitempty"`
}

// listInbox handles GET /inboxes/{role}/{target_id}.
func (handler *HTTPHandler) listInbox(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	role := notifications.Role(r.PathValue("role"))
	if !role.Valid() {
		handler.writeErr(w, http.StatusBadRequest, "unknown role")
		return
	}

	inbox, err := handler.svc.ListInbox(ctx, role, r.PathValue("target_id"))
	if err != nil {
		handler.logger.Error(ctx, "inbox_list_failed", "failed to list inbox", err)
		handler.writeErr(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if inbox == nil {
		inbox = []notifications.Notification{}
	}

	handler.writeJSON(w, http.StatusOK, inbox)
}

// unreadCount handles GET /inboxes/{role}/{target_id}/unread_count.
func (handler *HTTPHandler) unreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	role := notifications.Role(r.PathValue("role"))
	if !role.Valid() {
		handler.writeErr(w, http.StatusBadRequest, "unknown role")
		return
	}

	count, err := handler.svc.UnreadCount(ctx, role, r.PathValue("target_id"))
	if err != nil {
		handler.logger.Error(ctx, "unread_count_failed", "failed to count unread notifications", err)
		handler.writeErr(w, http.StatusInternalServerError, "internal server error")
		return
	}

	handler.writeJSON(w, http.StatusOK, map[string]any{"unread_count": count})
}

// markRead handles POST /inboxes/{role}/{target_id}/read/{notification_id}.
func (handler *HTTPHandler) markRead(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	role := notifications.Role(r.PathValue("role"))
	if !role.Valid() {
		handler.writeErr(w, http.StatusBadRequest, "unknown role")
		return
	}

	err := handler.svc.MarkRead(ctx, role, r.PathValue("target_id"), r.PathValue("notification_id"))
	if err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			handler.writeErr(w, http.StatusNotFound, "notification not found")
			return
		}
		handler.logger.Error(ctx, "mark_read_failed", "failed to mark notification read", err)
		handler.writeErr(w, http.StatusInternalServerError, "internal server error")
		return
	}

	handler.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// notify handles POST /notifications: a direct actor-originated notification
// outside the order lifecycle routing.
func (handler *HTTPHandler) notify(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	defer r.Body.Close()

	var req notifyRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		handler.writeErr(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	role := notifications.Role(req.TargetRole)
	if !role.Valid() {
		handler.writeErr(w, http.StatusBadRequest, "unknown role")
		return
	}
	if req.TargetID == "" || req.Title == "" {
		handler.writeErr(w, http.StatusBadRequest, "target_id and title are required")
		return
	}

	n, err := handler.svc.Notify(ctx, ports.NotifyCommand{
		TargetRole:     role,
		TargetID:       req.TargetID,
		Type:           req.Type,
		Title:          req.Title,
		Message:        req.Message,
		RelatedOrderID: req.RelatedOrderID,
		Priority:       notifications.Priority(req.Priority),
	})
	if err != nil {
		handler.logger.Error(ctx, "notify_failed", "failed to create notification", err)
		handler.writeErr(w, http.StatusInternalServerError, "internal server error")
		return
	}

	handler.writeJSON(w, http.StatusCreated, n)
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
