package pricing

import (
	"math/rand"
	"testing"

	"gallery-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeTotalsScenarios(t *testing.T) {
	tests := []struct {
		name     string
		items    []models.CartLineItem
		subtotal string
		shipping string
		total    string
	}{
		{
			name: "prints only below threshold",
			items: []models.CartLineItem{
				{ArtworkID: 1, Type: models.PurchaseTypePrint, PrintSize: "8x10", Quantity: 2, UnitPrice: dec("20")},
			},
			subtotal: "40", shipping: "15", total: "55",
		},
		{
			name: "original below threshold",
			items: []models.CartLineItem{
				{ArtworkID: 2, Type: models.PurchaseTypeOriginal, Quantity: 1, UnitPrice: dec("90")},
			},
			subtotal: "90", shipping: "25", total: "115",
		},
		{
			name: "mixed above threshold ships free",
			items: []models.CartLineItem{
				{ArtworkID: 2, Type: models.PurchaseTypeOriginal, Quantity: 1, UnitPrice: dec("90")},
				{ArtworkID: 1, Type: models.PurchaseTypePrint, PrintSize: "8x10", Quantity: 1, UnitPrice: dec("30")},
			},
			subtotal: "120", shipping: "0", total: "120",
		},
		{
			name: "exactly at threshold ships free",
			items: []models.CartLineItem{
				{ArtworkID: 1, Type: models.PurchaseTypePrint, PrintSize: "A3", Quantity: 4, UnitPrice: dec("25")},
			},
			subtotal: "100", shipping: "0", total: "100",
		},
		{
			name:     "empty cart",
			items:    nil,
			subtotal: "0", shipping: "0", total: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := ComputeTotals(tt.items, DefaultRates())

			assert.True(t, dec(tt.subtotal).Equal(totals.Subtotal), "subtotal %s", totals.Subtotal)
			assert.True(t, dec(tt.shipping).Equal(totals.ShippingCost), "shipping %s", totals.ShippingCost)
			assert.True(t, dec(tt.total).Equal(totals.Total), "total %s", totals.Total)
		})
	}
}

func TestComputeTotalsCustomRates(t *testing.T) {
	rates := Rates{
		FreeShippingThreshold: dec("250"),
		OriginalShippingRate:  dec("40"),
		PrintShippingRate:     dec("9.50"),
	}
	items := []models.CartLineItem{
		{ArtworkID: 1, Type: models.PurchaseTypePrint, PrintSize: "A4", Quantity: 3, UnitPrice: dec("45.50")},
	}

	totals := ComputeTotals(items, rates)

	assert.True(t, dec("136.50").Equal(totals.Subtotal))
	assert.True(t, dec("9.50").Equal(totals.ShippingCost))
	assert.True(t, dec("146").Equal(totals.Total))
}

func TestComputeTotalsProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	rates := DefaultRates()

	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(5)
		items := make([]models.CartLineItem, 0, n)
		hasOriginal := false
		for j := 0; j < n; j++ {
			item := models.CartLineItem{
				ArtworkID: int64(j + 1),
				Type:      models.PurchaseTypePrint,
				PrintSize: "8x10",
				Quantity:  1 + rng.Intn(4),
				UnitPrice: decimal.New(int64(100+rng.Intn(9000)), -2),
			}
			if rng.Intn(3) == 0 {
				item.Type = models.PurchaseTypeOriginal
				item.PrintSize = ""
				item.Quantity = 1
				hasOriginal = true
			}
			items = append(items, item)
		}

		totals := ComputeTotals(items, rates)

		assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.ShippingCost)))
		switch {
		case totals.Subtotal.GreaterThanOrEqual(rates.FreeShippingThreshold):
			assert.True(t, totals.ShippingCost.IsZero())
		case hasOriginal:
			assert.True(t, totals.ShippingCost.Equal(rates.OriginalShippingRate))
		default:
			assert.True(t, totals.ShippingCost.Equal(rates.PrintShippingRate))
		}
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(5500), ToMinorUnits(dec("55")))
	assert.Equal(t, int64(14650), ToMinorUnits(dec("146.50")))
	assert.True(t, dec("115").Equal(FromMinorUnits(11500)))
}
