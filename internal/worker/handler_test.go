package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mfreiras/menuflow/internal/domain"
)

type capturedNotification struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

func captureNotifier(t *testing.T) (*httptest.Server, func() []capturedNotification) {
	t.Helper()
	var mu sync.Mutex
	var captured []capturedNotification

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notify" {
			t.Errorf("expected /notify, got %s", r.URL.Path)
		}
		var n capturedNotification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			t.Errorf("failed to decode notification: %v", err)
		}
		mu.Lock()
		captured = append(captured, n)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	return server, func() []capturedNotification {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedNotification(nil), captured...)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotificationHandler_Handle(t *testing.T) {
	t.Run("order placed goes to the session channel", func(t *testing.T) {
		server, captured := captureNotifier(t)
		h := NewNotificationHandler(server.URL, server.Client(), testLogger())

		payload, _ := json.Marshal(domain.OrderPlacedEvent{
			OrderID:   42,
			SessionID: 7,
			Items: []domain.OrderItem{
				{ProductName: "Pizza", Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
			},
			TotalPrice: decimal.NewFromInt(22),
			Timestamp:  time.Now().UTC(),
		})

		if err := h.Handle(context.Background(), domain.EventOrderPlaced, payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := captured()
		if len(got) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(got))
		}
		if got[0].Channel != "session.7" {
			t.Errorf("expected channel session.7, got %s", got[0].Channel)
		}
		if got[0].Event != domain.EventOrderPlaced {
			t.Errorf("expected %s, got %s", domain.EventOrderPlaced, got[0].Event)
		}
	})

	t.Run("order confirmed goes to the customer channel", func(t *testing.T) {
		server, captured := captureNotifier(t)
		h := NewNotificationHandler(server.URL, server.Client(), testLogger())

		payload, _ := json.Marshal(domain.OrderConfirmedEvent{
			OrderID:         42,
			SessionID:       7,
			PrepTimeMinutes: 20,
			GrandTotal:      decimal.NewFromInt(28),
			Timestamp:       time.Now().UTC(),
		})

		if err := h.Handle(context.Background(), domain.EventOrderConfirmed, payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := captured()
		if len(got) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(got))
		}
		if got[0].Channel != "session.7.customer" {
			t.Errorf("expected channel session.7.customer, got %s", got[0].Channel)
		}
	})

	t.Run("order cancelled carries the reason", func(t *testing.T) {
		server, captured := captureNotifier(t)
		h := NewNotificationHandler(server.URL, server.Client(), testLogger())

		payload, _ := json.Marshal(domain.OrderCancelledEvent{
			OrderID:   42,
			SessionID: 7,
			Reason:    "out of stock",
			Timestamp: time.Now().UTC(),
		})

		if err := h.Handle(context.Background(), domain.EventOrderCancelled, payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := captured()
		if len(got) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(got))
		}
		if got[0].Body != "Your order was cancelled: out of stock" {
			t.Errorf("unexpected body: %s", got[0].Body)
		}
	})

	t.Run("session renewed notifies the session channel", func(t *testing.T) {
		server, captured := captureNotifier(t)
		h := NewNotificationHandler(server.URL, server.Client(), testLogger())

		payload, _ := json.Marshal(domain.SessionRenewedEvent{
			SessionID:     7,
			PlanType:      "pro",
			RenewalPeriod: domain.RenewalPeriodYear,
			NewExpireDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			Timestamp:     time.Now().UTC(),
		})

		if err := h.Handle(context.Background(), domain.EventSessionRenewed, payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := captured()
		if len(got) != 1 || got[0].Channel != "session.7" {
			t.Fatalf("expected 1 notification on session.7, got %+v", got)
		}
	})

	t.Run("unknown events are skipped without error", func(t *testing.T) {
		server, captured := captureNotifier(t)
		h := NewNotificationHandler(server.URL, server.Client(), testLogger())

		if err := h.Handle(context.Background(), "order.refunded", []byte(`{}`)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(captured()) != 0 {
			t.Error("expected no notifications for unknown event")
		}
	})

	t.Run("malformed payload fails", func(t *testing.T) {
		server, _ := captureNotifier(t)
		h := NewNotificationHandler(server.URL, server.Client(), testLogger())

		if err := h.Handle(context.Background(), domain.EventOrderPlaced, []byte("not json")); err == nil {
			t.Fatal("expected error for malformed payload")
		}
	})

	t.Run("notifier error propagates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()
		h := NewNotificationHandler(server.URL, server.Client(), testLogger())

		payload, _ := json.Marshal(domain.OrderPlacedEvent{OrderID: 1, SessionID: 1})
		if err := h.Handle(context.Background(), domain.EventOrderPlaced, payload); err == nil {
			t.Fatal("expected error when notifier rejects the delivery")
		}
	})
}
