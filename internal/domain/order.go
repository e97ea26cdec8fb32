package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusInCart    OrderStatus = "in_cart"
	OrderStatusNew       OrderStatus = "new"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type OrderItem struct {
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a customer's placed purchase request. The fee fields stay nil
// until the restaurant confirms the order; confirmation sets all of them at
// once, together with FinalConfirmed.
type Order struct {
	ID              int64            `json:"id"`
	SessionID       int64            `json:"session_id"`
	CustomerPhone   string           `json:"customer_phone"`
	CustomerName    string           `json:"customer_name,omitempty"`
	DeliveryAddress string           `json:"delivery_address,omitempty"`
	Items           []OrderItem      `json:"items"`
	TotalPrice      decimal.Decimal  `json:"total_price"`
	PrepTimeMinutes *int             `json:"prep_time_minutes,omitempty"`
	DeliveryFee     *decimal.Decimal `json:"delivery_fee,omitempty"`
	ServiceFee      *decimal.Decimal `json:"service_fee,omitempty"`
	TaxValue        *decimal.Decimal `json:"tax_value,omitempty"`
	Status          OrderStatus      `json:"status"`
	FinalConfirmed  bool             `json:"final_confirmed"`
	CancelReason    string           `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NewOrder validates a checked-out cart and builds an order in status new.
// TotalPrice is the exact decimal sum of the item subtotals.
func NewOrder(sessionID int64, phone, name, address string, items []OrderItem) (*Order, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, Validationf("customer phone is required")
	}
	if len(items) == 0 {
		return nil, Validationf("order must contain at least one item")
	}

	total := decimal.Zero
	for _, item := range items {
		if strings.TrimSpace(item.ProductName) == "" {
			return nil, Validationf("item product name is required")
		}
		if item.Quantity < 1 {
			return nil, Validationf("item %q has quantity %d, must be at least 1", item.ProductName, item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return nil, Validationf("item %q has a negative unit price", item.ProductName)
		}
		total = total.Add(item.Subtotal())
	}

	return &Order{
		SessionID:       sessionID,
		CustomerPhone:   strings.TrimSpace(phone),
		CustomerName:    strings.TrimSpace(name),
		DeliveryAddress: strings.TrimSpace(address),
		Items:           items,
		TotalPrice:      total,
		Status:          OrderStatusNew,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// ConfirmationDetails are the fields the restaurant supplies when accepting
// an order. ServiceFee is the only one that may be omitted.
type ConfirmationDetails struct {
	PrepTimeMinutes int              `json:"prep_time_minutes"`
	DeliveryFee     decimal.Decimal  `json:"delivery_fee"`
	ServiceFee      *decimal.Decimal `json:"service_fee,omitempty"`
	TaxValue        decimal.Decimal  `json:"tax_value"`
}

func (d ConfirmationDetails) Validate() error {
	if d.PrepTimeMinutes < 0 {
		return Validationf("prep time must not be negative")
	}
	if d.DeliveryFee.IsNegative() {
		return Validationf("delivery fee must not be negative")
	}
	if d.ServiceFee != nil && d.ServiceFee.IsNegative() {
		return Validationf("service fee must not be negative")
	}
	if d.TaxValue.IsNegative() {
		return Validationf("tax value must not be negative")
	}
	return nil
}
