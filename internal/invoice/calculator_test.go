package invoice

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mfreiras/menuflow/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculate(t *testing.T) {
	t.Run("sums total and fees", func(t *testing.T) {
		fee := dec("5")
		tax := dec("1")
		order := domain.Order{
			ID:          42,
			TotalPrice:  dec("22"),
			DeliveryFee: &fee,
			TaxValue:    &tax,
		}

		inv, err := Calculate(order)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !inv.GrandTotal.Equal(dec("28")) {
			t.Errorf("expected grand total 28, got %s", inv.GrandTotal)
		}
		if !inv.ServiceFee.IsZero() {
			t.Errorf("nil service fee must count as zero, got %s", inv.ServiceFee)
		}
	})

	t.Run("includes service fee when set", func(t *testing.T) {
		fee := dec("5")
		service := dec("2.50")
		tax := dec("1")
		order := domain.Order{
			TotalPrice:  dec("22"),
			DeliveryFee: &fee,
			ServiceFee:  &service,
			TaxValue:    &tax,
		}

		inv, err := Calculate(order)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !inv.GrandTotal.Equal(dec("30.50")) {
			t.Errorf("expected grand total 30.50, got %s", inv.GrandTotal)
		}
	})

	t.Run("rounds the grand total to cents", func(t *testing.T) {
		fee := dec("0.333")
		tax := dec("0.333")
		order := domain.Order{
			TotalPrice:  dec("10"),
			DeliveryFee: &fee,
			TaxValue:    &tax,
		}

		inv, err := Calculate(order)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !inv.GrandTotal.Equal(dec("10.67")) {
			t.Errorf("expected 10.67, got %s", inv.GrandTotal)
		}
	})

	t.Run("fails before confirmation", func(t *testing.T) {
		tax := dec("1")
		cases := map[string]domain.Order{
			"no fees at all":   {TotalPrice: dec("22")},
			"missing delivery": {TotalPrice: dec("22"), TaxValue: &tax},
		}
		for name, order := range cases {
			if _, err := Calculate(order); !errors.Is(err, domain.ErrIncompleteData) {
				t.Errorf("%s: expected ErrIncompleteData, got %v", name, err)
			}
		}
	})
}
