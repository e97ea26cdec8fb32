// Package worker turns order and session lifecycle events into live
// notifications for connected dashboards and customers.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mfreiras/menuflow/internal/domain"
)

type NotificationHandler struct {
	notifierURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewNotificationHandler(notifierURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifierURL: notifierURL,
		httpClient:  client,
		logger:      logger,
	}
}

type notification struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

// Handle dispatches one consumed event. Unknown events are skipped, not
// failed, so a rolling deploy with new event types does not wedge the
// consumer group.
func (h *NotificationHandler) Handle(ctx context.Context, event string, payload []byte) error {
	switch event {
	case domain.EventOrderPlaced:
		return h.handleOrderPlaced(ctx, payload)
	case domain.EventOrderConfirmed:
		return h.handleOrderConfirmed(ctx, payload)
	case domain.EventOrderCancelled:
		return h.handleOrderCancelled(ctx, payload)
	case domain.EventSessionRenewed:
		return h.handleSessionRenewed(ctx, payload)
	default:
		h.logger.Warn("skipping unknown event", "event", event)
		return nil
	}
}

func (h *NotificationHandler) handleOrderPlaced(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order placed event: %w", err)
	}

	h.logger.Info("dispatching new order notification", "order_id", event.OrderID, "session_id", event.SessionID)

	return h.send(ctx, notification{
		Channel: domain.SessionChannel(event.SessionID),
		Event:   domain.EventOrderPlaced,
		Title:   fmt.Sprintf("New order #%d", event.OrderID),
		Body:    fmt.Sprintf("%d items, total %s", len(event.Items), event.TotalPrice),
	})
}

func (h *NotificationHandler) handleOrderConfirmed(ctx context.Context, payload []byte) error {
	var event domain.OrderConfirmedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order confirmed event: %w", err)
	}

	return h.send(ctx, notification{
		Channel: customerChannel(event.SessionID),
		Event:   domain.EventOrderConfirmed,
		Title:   fmt.Sprintf("Order #%d confirmed", event.OrderID),
		Body:    fmt.Sprintf("Your order is being prepared, ready in about %d minutes. Total due: %s.", event.PrepTimeMinutes, event.GrandTotal),
	})
}

func (h *NotificationHandler) handleOrderCancelled(ctx context.Context, payload []byte) error {
	var event domain.OrderCancelledEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order cancelled event: %w", err)
	}

	return h.send(ctx, notification{
		Channel: customerChannel(event.SessionID),
		Event:   domain.EventOrderCancelled,
		Title:   fmt.Sprintf("Order #%d cancelled", event.OrderID),
		Body:    "Your order was cancelled: " + event.Reason,
	})
}

func (h *NotificationHandler) handleSessionRenewed(ctx context.Context, payload []byte) error {
	var event domain.SessionRenewedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal session renewed event: %w", err)
	}

	return h.send(ctx, notification{
		Channel: domain.SessionChannel(event.SessionID),
		Event:   domain.EventSessionRenewed,
		Title:   "Subscription renewed",
		Body:    fmt.Sprintf("Plan %s renewed until %s.", event.PlanType, event.NewExpireDate.Format("2006-01-02")),
	})
}

func (h *NotificationHandler) send(ctx context.Context, n notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.notifierURL+"/notify", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification to %s: %w", n.Channel, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notifier returned status %d for channel %s", resp.StatusCode, n.Channel)
	}

	return nil
}

// customerChannel addresses the ordering customer rather than the restaurant
// dashboard subscribed to the session channel.
func customerChannel(sessionID int64) string {
	return fmt.Sprintf("session.%d.customer", sessionID)
}
