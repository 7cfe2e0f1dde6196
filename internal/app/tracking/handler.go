package tracking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"git.platform.alem.school/amibragim/bazaar/internal/domain/orders"
	"git.platform.alem.school/amibragim/bazaar/internal/ports"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/store"
)

// HTTPHandler adapts HTTP requests to the TrackingService.
type HTTPHandler struct {
	logger *logger.Logger
	svc    ports.TrackingService
}

// NewHandler wires an HTTP handler around the TrackingService.
func NewHandler(logger *logger.Logger, svc ports.TrackingService) *HTTPHandler {
	return &HTTPHandler{logger: logger, svc: svc}
}

// Register mounts the tracking routes on the provided mux.
func (handler *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /orders/{order_id}/progress", handler.getProgress)
	mux.HandleFunc("GET /orders/{order_id}/history", handler.getHistory)
	mux.HandleFunc("GET /orders/{order_id}/timer", handler.getTimer)
}

// --- Handlers ---

// getProgress handles GET /orders/{order_id}/progress.
func (handler *HTTPHandler) getProgress(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	orderID := r.PathValue("order_id")
	handler.logger.Debug(ctx, "request_received", "GET /orders/{order_id}/progress", map[string]any{"order_id": orderID})

	view, err := handler.svc.GetOrderProgress(ctx, orderID)
	if err != nil {
		handler.maybeNotFound(ctx, w, err)
		return
	}

	resp := map[string]any{
		"order_id":             view.OrderID,
		"current_status":       string(view.Status),
		"progress_percent":     view.ProgressPercent,
		"estimated_completion": view.EstimatedCompletion,
		"updated_at":           view.UpdatedAt,
	}
	handler.writeJSON(w, http.StatusOK, resp)
}

// getHistory handles GET /orders/{order_id}/history.
func (handler *HTTPHandler) getHistory(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	orderID := r.PathValue("order_id")
	handler.logger.Debug(ctx, "request_received", "GET /orders/{order_id}/history", map[string]any{"order_id": orderID})

	hist, err := handler.svc.GetOrderHistory(ctx, orderID)
	if err != nil {
		handler.maybeNotFound(ctx, w, err)
		return
	}

	out := make([]map[string]any, 0, len(hist))
	for i := range hist {
		out = append(out, map[string]any{
			"status":     string(hist[i].Status),
			"timestamp":  hist[i].ChangedAt,
			"changed_by": hist[i].ChangedBy,
		})
	}
	handler.writeJSON(w, http.StatusOK, out)
}

// getTimer handles GET /orders/{order_id}/timer.
func (handler *HTTPHandler) getTimer(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	orderID := r.PathValue("order_id")
	handler.logger.Debug(ctx, "request_received", "GET /orders/{order_id}/timer", map[string]any{"order_id": orderID})

	timer, err := handler.svc.GetTimer(ctx, orderID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, orders.ErrPreconditionFailed) {
			handler.writeErr(w, http.StatusConflict, "order is not in preparing state")
			return
		}
		handler.maybeNotFound(ctx, w, err)
		return
	}

	handler.writeJSON(w, http.StatusOK, timer)
}

// --- Helpers ---

// maybeNotFound writes 404 for missing records, 500 otherwise.
func (handler *HTTPHandler) maybeNotFound(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		handler.writeErr(w, http.StatusNotFound, "not found")
		return
	}

	handler.logger.Error(ctx, "store_query_failed", "Store query failed", err)
	handler.writeErr(w, http.StatusInternalServerError, "internal server error")
}

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
