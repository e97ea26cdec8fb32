package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event names carried in the message header alongside each payload.
const (
	EventOrderPlaced    = "order.placed"
	EventOrderConfirmed = "order.confirmed"
	EventOrderCancelled = "order.cancelled"
	EventSessionRenewed = "session.renewed"
)

// SessionChannel is the pub/sub channel for a session's subscribers, e.g. a
// restaurant dashboard. Events published to the same channel preserve
// publish order.
func SessionChannel(sessionID int64) string {
	return fmt.Sprintf("session.%d", sessionID)
}

type OrderPlacedEvent struct {
	OrderID       int64           `json:"order_id"`
	SessionID     int64           `json:"session_id"`
	CustomerPhone string          `json:"customer_phone"`
	Items         []OrderItem     `json:"items"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Timestamp     time.Time       `json:"timestamp"`
}

type OrderConfirmedEvent struct {
	OrderID         int64           `json:"order_id"`
	SessionID       int64           `json:"session_id"`
	PrepTimeMinutes int             `json:"prep_time_minutes"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	Timestamp       time.Time       `json:"timestamp"`
}

type OrderCancelledEvent struct {
	OrderID   int64     `json:"order_id"`
	SessionID int64     `json:"session_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type SessionRenewedEvent struct {
	SessionID     int64         `json:"session_id"`
	PlanType      string        `json:"plan_type"`
	RenewalPeriod RenewalPeriod `json:"renewal_period"`
	NewExpireDate time.Time     `json:"new_expire_date"`
	Timestamp     time.Time     `json:"timestamp"`
}
