// Package pricing computes cart totals. It has no side effects and is used
// both for display quotes and for the authoritative charge amount.
package pricing

import (
	"gallery-service/internal/models"

	"github.com/shopspring/decimal"
)

// Default business configuration
var (
	FreeShippingThreshold = decimal.NewFromInt(100)
	OriginalShippingRate  = decimal.NewFromInt(25)
	PrintShippingRate     = decimal.NewFromInt(15)
)

// Rates is the shipping configuration used by ComputeTotals
type Rates struct {
	FreeShippingThreshold decimal.Decimal
	OriginalShippingRate  decimal.Decimal
	PrintShippingRate     decimal.Decimal
}

// DefaultRates returns the package default rates
func DefaultRates() Rates {
	return Rates{
		FreeShippingThreshold: FreeShippingThreshold,
		OriginalShippingRate:  OriginalShippingRate,
		PrintShippingRate:     PrintShippingRate,
	}
}

// Totals is the result of pricing a cart
type Totals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Total        decimal.Decimal `json:"total"`
}

// ComputeTotals prices a cart. An empty cart costs nothing, including shipping.
func ComputeTotals(items []models.CartLineItem, rates Rates) Totals {
	subtotal := decimal.Zero
	hasOriginal := false
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
		if item.Type == models.PurchaseTypeOriginal {
			hasOriginal = true
		}
	}

	shipping := decimal.Zero
	if len(items) > 0 {
		shipping = ShippingCost(subtotal, hasOriginal, rates)
	}

	return Totals{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Total:        subtotal.Add(shipping),
	}
}

// ShippingCost applies the tiered shipping rule
func ShippingCost(subtotal decimal.Decimal, hasOriginal bool, rates Rates) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(rates.FreeShippingThreshold) {
		return decimal.Zero
	}
	if hasOriginal {
		return rates.OriginalShippingRate
	}
	return rates.PrintShippingRate
}

// ToMinorUnits converts an amount to integer cents for the payment processor
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts integer cents back to a decimal amount
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
