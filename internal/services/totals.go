package services

import (
	"fmt"
	"strings"

	"momoinvoice/internal/common"
	"momoinvoice/internal/models"

	"github.com/shopspring/decimal"
)

// CalculateTotals derives invoice totals from its line items. No rounding is
// applied; the invoice columns are unconstrained NUMERIC so the stored row
// reproduces these values exactly.
func CalculateTotals(items []models.InvoiceLineItem) models.InvoiceTotals {
	subtotal := decimal.Zero
	taxTotal := decimal.Zero
	discountTotal := decimal.Zero

	for _, item := range items {
		net := item.Net()
		subtotal = subtotal.Add(net)
		taxTotal = taxTotal.Add(net.Mul(item.TaxRate))
		discountTotal = discountTotal.Add(item.Discount)
	}

	return models.InvoiceTotals{
		Subtotal:      subtotal,
		TaxTotal:      taxTotal,
		DiscountTotal: discountTotal,
		Total:         subtotal.Add(taxTotal).Sub(discountTotal),
	}
}

// LineItemInput is the editable part of a line item. Optional rates and
// discounts default to zero.
type LineItemInput struct {
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	TaxRate     *decimal.Decimal `json:"tax_rate,omitempty"`
	Discount    *decimal.Decimal `json:"discount,omitempty"`
}

var one = decimal.NewFromInt(1)

// BuildLineItems validates the inputs and converts them into line items in order.
func BuildLineItems(inputs []LineItemInput) ([]models.InvoiceLineItem, error) {
	if len(inputs) == 0 {
		return nil, common.NewValidationError("lineItems", "at least one line item is required")
	}

	details := map[string]string{}
	items := make([]models.InvoiceLineItem, 0, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("lineItems[%d]", i)
		description := strings.TrimSpace(in.Description)
		if description == "" {
			details[field+".description"] = "description is required"
		}
		if !in.Quantity.IsPositive() {
			details[field+".quantity"] = "quantity must be greater than zero"
		}
		if in.UnitPrice.IsNegative() {
			details[field+".unitPrice"] = "unit price cannot be negative"
		}

		taxRate := decimal.Zero
		if in.TaxRate != nil {
			taxRate = *in.TaxRate
			if taxRate.IsNegative() || taxRate.GreaterThan(one) {
				details[field+".taxRate"] = "tax rate must be between 0 and 1"
			}
		}
		discount := decimal.Zero
		if in.Discount != nil {
			discount = *in.Discount
			if discount.IsNegative() {
				details[field+".discount"] = "discount cannot be negative"
			}
		}

		items = append(items, models.InvoiceLineItem{
			Description: description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			TaxRate:     taxRate,
			Discount:    discount,
			SortOrder:   i,
		})
	}

	if len(details) > 0 {
		return nil, common.NewValidationErrors(details)
	}
	return items, nil
}
