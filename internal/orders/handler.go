package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mfreiras/menuflow/internal/domain"
	"github.com/mfreiras/menuflow/internal/invoice"
)

// OrderStore is the persistence contract the handler works against. The
// Postgres implementation serializes concurrent transitions with
// status-guarded updates.
type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	List(ctx context.Context, sessionID int64) ([]domain.Order, error)
	Confirm(ctx context.Context, id int64, d domain.ConfirmationDetails) (*domain.Order, error)
	Cancel(ctx context.Context, id int64, reason string) (*domain.Order, error)
	Delete(ctx context.Context, id int64) error
}

// EventPublisher pushes a transition event to a session's subscribers.
// Fire-and-forget, at-most-once: publish failures are logged, never retried,
// and consumers reconcile by re-fetching.
type EventPublisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

type Handler struct {
	store     OrderStore
	publisher EventPublisher
	logger    *slog.Logger
}

func NewHandler(store OrderStore, publisher EventPublisher, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

type placeOrderRequest struct {
	SessionID       int64              `json:"session_id"`
	CustomerPhone   string             `json:"customer_phone"`
	CustomerName    string             `json:"customer_name"`
	DeliveryAddress string             `json:"delivery_address"`
	Items           []domain.OrderItem `json:"items"`
}

func (h *Handler) HandlePlace(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := domain.NewOrder(req.SessionID, req.CustomerPhone, req.CustomerName, req.DeliveryAddress, req.Items)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := h.store.Create(r.Context(), order); err != nil {
		h.logger.Error("failed to create order", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.publish(r.Context(), order.SessionID, domain.EventOrderPlaced, domain.OrderPlacedEvent{
		OrderID:       order.ID,
		SessionID:     order.SessionID,
		CustomerPhone: order.CustomerPhone,
		Items:         order.Items,
		TotalPrice:    order.TotalPrice,
		Timestamp:     order.CreatedAt,
	})

	h.logger.Info("order placed", "order_id", order.ID, "session_id", order.SessionID, "total", order.TotalPrice)
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var details domain.ConfirmationDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := details.Validate(); err != nil {
		h.writeDomainError(w, err)
		return
	}

	order, err := h.store.Confirm(r.Context(), id, details)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	inv, err := invoice.Calculate(*order)
	if err != nil {
		h.logger.Error("failed to compute invoice for confirmed order", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.publish(r.Context(), order.SessionID, domain.EventOrderConfirmed, domain.OrderConfirmedEvent{
		OrderID:         order.ID,
		SessionID:       order.SessionID,
		PrepTimeMinutes: details.PrepTimeMinutes,
		GrandTotal:      inv.GrandTotal,
		Timestamp:       time.Now().UTC(),
	})

	h.logger.Info("order confirmed", "order_id", order.ID, "grand_total", inv.GrandTotal)
	h.writeJSON(w, http.StatusOK, order)
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		h.writeError(w, http.StatusBadRequest, "cancellation reason is required")
		return
	}

	order, err := h.store.Cancel(r.Context(), id, reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.publish(r.Context(), order.SessionID, domain.EventOrderCancelled, domain.OrderCancelledEvent{
		OrderID:   order.ID,
		SessionID: order.SessionID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})

	h.logger.Info("order cancelled", "order_id", order.ID, "reason", reason)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	inv, err := invoice.Calculate(*order)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, inv)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var sessionID int64
	if raw := r.URL.Query().Get("session_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid session_id")
			return
		}
		sessionID = parsed
	}

	orders, err := h.store.List(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("order deleted", "order_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) publish(ctx context.Context, sessionID int64, event string, payload any) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(ctx, domain.SessionChannel(sessionID), event, payload); err != nil {
		h.logger.Error("failed to publish event", "error", err, "event", event, "session_id", sessionID)
	}
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, validationErr.Msg)
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, domain.ErrInvalidState):
		h.writeError(w, http.StatusConflict, "order is not in a state that allows this transition")
	case errors.Is(err, domain.ErrIncompleteData):
		h.writeError(w, http.StatusConflict, "order has not been confirmed yet")
	default:
		h.logger.Error("order operation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
