package orderstate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"git.platform.alem.school/amibragim/bazaar/internal/domain/orders"
	"git.platform.alem.school/amibragim/bazaar/internal/ports"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/store"
)

// HTTPHandler adapts HTTP requests to the OrderStateMachine.
type HTTPHandler struct {
	svc    ports.OrderStateMachine
	logger *logger.Logger
}

// NewHTTPHandler wires an HTTP handler around the state machine.
func NewHTTPHandler(svc ports.OrderStateMachine, logger *logger.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: logger}
}

// Register mounts the order routes on the provided mux.
func (handler *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", handler.handleCreateOrder)
	mux.HandleFunc("POST /orders/{order_id}/transition", handler.handleTransition)
	mux.HandleFunc("GET /orders/{order_id}", handler.handleGetOrder)
	mux.HandleFunc("GET /orders/{order_id}/timer", handler.handleTimer)
}

// --- Request/Response DTOs (HTTP boundary) ---

type createOrderRequest struct {
	CustomerID                  string                   `json:"customer_id"`
	PreparerID                  string                   `json:"preparer_id"`
	DeliveryAddress             string                   `json:"delivery_address,omitempty"`
	Items                       []createOrderItemRequest `json:"items"`
	DeliveryFee                 float64                  `json:"delivery_fee"`
	Discount                    float64                  `json:"discount"`
	EstimatedPreparationMinutes int                      `json:"estimated_preparation_minutes,omitempty"`
}

type createOrderItemRequest struct {
	DishID    string  `json:"dish_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"` // decimal currency units
	Notes     string  `json:"notes,omitempty"`
}

type transitionRequest struct {
	TargetStatus string `json:"target_status"`
	ChangedBy    string `json:"changed_by,omitempty"`
}

// --- Handlers ---

func (handler *HTTPHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	// check the size of the request body
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	// check the content type
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", errors.New("unsupported content type: "+ct))
		return
	}

	// decode strictly
	var req createOrderRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return
	}

	cmd := ports.CreateOrderCommand{
		CustomerID:                  req.CustomerID,
		PreparerID:                  req.PreparerID,
		DeliveryAddress:             req.DeliveryAddress,
		DeliveryFee:                 orders.NewMoneyFromFloat2(req.DeliveryFee),
		Discount:                    orders.NewMoneyFromFloat2(req.Discount),
		EstimatedPreparationMinutes: req.EstimatedPreparationMinutes,
	}
	cmd.Items = make([]ports.ItemInput, len(req.Items))
	for i, it := range req.Items {
		cmd.Items[i] = ports.ItemInput{
			DishID:    it.DishID,
			Quantity:  it.Quantity,
			UnitPrice: orders.NewMoneyFromFloat2(it.UnitPrice),
			Notes:     it.Notes,
		}
	}

	handler.logger.Debug(ctx, "order_received", "new order request received", map[string]any{
		"customer_id": cmd.CustomerID,
		"items_count": len(cmd.Items),
	})

	// bound request time
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	order, err := handler.svc.CreateOrder(ctxWithTimeout, cmd)
	if err != nil {
		if errors.Is(err, store.ErrCapacityExceeded) {
			handler.httpError(ctxWithTimeout, w, http.StatusInsufficientStorage, "store capacity exceeded", err)
			return
		}
		handler.httpError(ctxWithTimeout, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusCreated, orderResponse(order))
}

func (handler *HTTPHandler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	orderID := r.PathValue("order_id")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	defer r.Body.Close()

	var req transitionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	order, err := handler.svc.Transition(ctxWithTimeout, orderID, orders.OrderStatus(req.TargetStatus), req.ChangedBy)
	if err != nil {
		var invalid *orders.InvalidTransitionError
		switch {
		case errors.As(err, &invalid):
			handler.httpError(ctxWithTimeout, w, http.StatusConflict, err.Error(), err)
		case errors.Is(err, store.ErrNotFound):
			handler.httpError(ctxWithTimeout, w, http.StatusNotFound, "order not found", err)
		default:
			handler.httpError(ctxWithTimeout, w, http.StatusBadRequest, err.Error(), err)
		}
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, orderResponse(order))
}

func (handler *HTTPHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	orderID := r.PathValue("order_id")

	order, err := handler.svc.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			handler.httpError(ctx, w, http.StatusNotFound, "order not found", err)
			return
		}
		handler.httpError(ctx, w, http.StatusInternalServerError, "internal server error", err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, order)
}

func (handler *HTTPHandler) handleTimer(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	orderID := r.PathValue("order_id")

	timer, err := handler.svc.Timer(ctx, orderID, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrPreconditionFailed):
			handler.httpError(ctx, w, http.StatusConflict, "order is not in preparing state", err)
		case errors.Is(err, store.ErrNotFound):
			handler.httpError(ctx, w, http.StatusNotFound, "order not found", err)
		default:
			handler.httpError(ctx, w, http.StatusInternalServerError, "internal server error", err)
		}
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, timer)
}

// --- Helpers ---

// orderResponse builds the summary body returned by mutations.
func orderResponse(order *orders.Order) map[string]any {
	return map[string]any{
		"order_id": order.ID,
		"status":   string(order.Status),
		"subtotal": order.Subtotal.ToFloat2(),
		"total":    order.Total.ToFloat2(),
	}
}

// httpError sends a JSON error response with a message.
func (handler *HTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	// map status -> action
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	} else if status == http.StatusConflict {
		action = "transition_rejected"
	} else if status == http.StatusUnsupportedMediaType {
		action = "unsupported_media_type"
	}
	handler.logger.Error(ctx, action, msg, err)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// jsonResponse takes any type of data and encodes it to the HTTP response.
func (handler *HTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "failed to encode response", err)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
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
