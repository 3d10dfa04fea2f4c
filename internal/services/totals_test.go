package services

import (
	"errors"
	"testing"

	"momoinvoice/internal/common"
	"momoinvoice/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestCalculateTotals(t *testing.T) {
	tests := []struct {
		name  string
		items []models.InvoiceLineItem
		want  models.InvoiceTotals
	}{
		{
			name:  "no items",
			items: nil,
			want: models.InvoiceTotals{
				Subtotal:      decimal.Zero,
				TaxTotal:      decimal.Zero,
				DiscountTotal: decimal.Zero,
				Total:         decimal.Zero,
			},
		},
		{
			name: "single item with tax",
			items: []models.InvoiceLineItem{
				{Quantity: dec("2"), UnitPrice: dec("100"), TaxRate: dec("0.1"), Discount: decimal.Zero},
			},
			want: models.InvoiceTotals{
				Subtotal:      dec("200"),
				TaxTotal:      dec("20"),
				DiscountTotal: decimal.Zero,
				Total:         dec("220"),
			},
		},
		{
			name: "mixed items with discount",
			items: []models.InvoiceLineItem{
				{Quantity: dec("1.5"), UnitPrice: dec("40"), TaxRate: dec("0.15"), Discount: dec("5")},
				{Quantity: dec("3"), UnitPrice: dec("12.50"), TaxRate: decimal.Zero, Discount: dec("2.5")},
			},
			want: models.InvoiceTotals{
				Subtotal:      dec("97.5"),
				TaxTotal:      dec("9"),
				DiscountTotal: dec("7.5"),
				Total:         dec("99"),
			},
		},
		{
			name: "discount larger than line value goes negative",
			items: []models.InvoiceLineItem{
				{Quantity: dec("1"), UnitPrice: dec("10"), TaxRate: decimal.Zero, Discount: dec("15")},
			},
			want: models.InvoiceTotals{
				Subtotal:      dec("10"),
				TaxTotal:      decimal.Zero,
				DiscountTotal: dec("15"),
				Total:         dec("-5"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateTotals(tt.items)
			assert.True(t, got.Equal(tt.want), "got %+v, want %+v", got, tt.want)
		})
	}
}

func TestCalculateTotals_MatchesLineTotals(t *testing.T) {
	items := []models.InvoiceLineItem{
		{Quantity: dec("2"), UnitPrice: dec("19.99"), TaxRate: dec("0.125"), Discount: dec("1")},
		{Quantity: dec("7"), UnitPrice: dec("3.333"), TaxRate: dec("0.03"), Discount: decimal.Zero},
	}

	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal())
	}

	assert.True(t, CalculateTotals(items).Total.Equal(sum))
}

func TestBuildLineItems(t *testing.T) {
	t.Run("defaults optional fields", func(t *testing.T) {
		items, err := BuildLineItems([]LineItemInput{
			{Description: "  Design work ", Quantity: dec("2"), UnitPrice: dec("150")},
			{Description: "Hosting", Quantity: dec("1"), UnitPrice: dec("20"), TaxRate: decPtr("0.15"), Discount: decPtr("2")},
		})

		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "Design work", items[0].Description)
		assert.True(t, items[0].TaxRate.IsZero())
		assert.True(t, items[0].Discount.IsZero())
		assert.Equal(t, 0, items[0].SortOrder)
		assert.Equal(t, 1, items[1].SortOrder)
		assert.True(t, items[1].TaxRate.Equal(dec("0.15")))
	})

	t.Run("requires at least one item", func(t *testing.T) {
		_, err := BuildLineItems(nil)

		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrValidation))
	})

	t.Run("collects every invalid field", func(t *testing.T) {
		_, err := BuildLineItems([]LineItemInput{
			{Description: "", Quantity: dec("0"), UnitPrice: dec("-1")},
			{Description: "ok", Quantity: dec("1"), UnitPrice: dec("1"), TaxRate: decPtr("1.5"), Discount: decPtr("-3")},
		})

		require.Error(t, err)
		var appErr *common.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, common.ErrValidation, appErr.Kind)
		assert.Contains(t, appErr.Details, "lineItems[0].description")
		assert.Contains(t, appErr.Details, "lineItems[0].quantity")
		assert.Contains(t, appErr.Details, "lineItems[0].unitPrice")
		assert.Contains(t, appErr.Details, "lineItems[1].taxRate")
		assert.Contains(t, appErr.Details, "lineItems[1].discount")
	})
}
