// Package invoice derives the final amounts for a confirmed order. The
// calculation is a pure function of the order's numeric fields.
package invoice

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mfreiras/menuflow/internal/domain"
)

type Invoice struct {
	OrderID     int64           `json:"order_id"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	ServiceFee  decimal.Decimal `json:"service_fee"`
	TaxValue    decimal.Decimal `json:"tax_value"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
}

// Calculate builds the invoice for a confirmed order. DeliveryFee and
// TaxValue must be set by confirmation; a nil ServiceFee counts as zero.
func Calculate(o domain.Order) (Invoice, error) {
	if o.DeliveryFee == nil || o.TaxValue == nil {
		return Invoice{}, fmt.Errorf("order %d: %w", o.ID, domain.ErrIncompleteData)
	}

	serviceFee := decimal.Zero
	if o.ServiceFee != nil {
		serviceFee = *o.ServiceFee
	}

	grand := o.TotalPrice.Add(*o.DeliveryFee).Add(serviceFee).Add(*o.TaxValue)

	return Invoice{
		OrderID:     o.ID,
		TotalPrice:  o.TotalPrice,
		DeliveryFee: *o.DeliveryFee,
		ServiceFee:  serviceFee,
		TaxValue:    *o.TaxValue,
		GrandTotal:  grand.Round(2),
	}, nil
}
