package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusSent  InvoiceStatus = "sent"
	InvoiceStatusPaid  InvoiceStatus = "paid"
	// InvoiceStatusOverdue is never stored; it is derived from sent + a past due date.
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// DefaultCurrency is used when an invoice carries no currency code.
const DefaultCurrency = "GHS"

// NormalizeInvoiceStatus maps a stored status onto the persisted set.
// Rows written as "overdue" by older clients are read back as sent.
func NormalizeInvoiceStatus(s InvoiceStatus) InvoiceStatus {
	if s == InvoiceStatusOverdue {
		return InvoiceStatusSent
	}
	return s
}

type Invoice struct {
	ID                  uuid.UUID         `json:"id" db:"id"`
	BusinessID          uuid.UUID         `json:"business_id" db:"business_id"`
	ClientID            uuid.UUID         `json:"client_id" db:"client_id"`
	Status              InvoiceStatus     `json:"status" db:"status"`
	Currency            string            `json:"currency" db:"currency"`
	IssueDate           time.Time         `json:"issue_date" db:"issue_date"`
	DueDate             *time.Time        `json:"due_date,omitempty" db:"due_date"`
	Subtotal            decimal.Decimal   `json:"subtotal" db:"subtotal"`
	TaxTotal            decimal.Decimal   `json:"tax_total" db:"tax_total"`
	DiscountTotal       decimal.Decimal   `json:"discount_total" db:"discount_total"`
	Total               decimal.Decimal   `json:"total" db:"total"`
	InvoiceNumber       string            `json:"invoice_number" db:"invoice_number"`
	SequentialNumber    int               `json:"sequential_number" db:"sequential_number"`
	PaymentMethodID     *uuid.UUID        `json:"payment_method_id,omitempty" db:"payment_method_id"`
	Notes               *string           `json:"notes,omitempty" db:"notes"`
	PaymentInstructions *string           `json:"payment_instructions,omitempty" db:"payment_instructions"`
	PayableTo           *string           `json:"payable_to,omitempty" db:"payable_to"`
	LastSharedAt        *time.Time        `json:"last_shared_at,omitempty" db:"last_shared_at"`
	PaidAt              *time.Time        `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt           time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" db:"updated_at"`
	LineItems           []InvoiceLineItem `json:"line_items,omitempty" db:"-"`
}

type InvoiceLineItem struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	InvoiceID   uuid.UUID       `json:"invoice_id" db:"invoice_id"`
	Description string          `json:"description" db:"description"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	Discount    decimal.Decimal `json:"discount" db:"discount"`
	SortOrder   int             `json:"sort_order" db:"sort_order"`
}

// Net is quantity * unit price before tax and discount.
func (li InvoiceLineItem) Net() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

// LineTotal is quantity * unitPrice * (1 + taxRate) - discount.
func (li InvoiceLineItem) LineTotal() decimal.Decimal {
	net := li.Net()
	return net.Add(net.Mul(li.TaxRate)).Sub(li.Discount)
}

type InvoiceTotals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	Total         decimal.Decimal `json:"total"`
}

// Equal compares totals by value, ignoring decimal exponent differences.
func (t InvoiceTotals) Equal(other InvoiceTotals) bool {
	return t.Subtotal.Equal(other.Subtotal) &&
		t.TaxTotal.Equal(other.TaxTotal) &&
		t.DiscountTotal.Equal(other.DiscountTotal) &&
		t.Total.Equal(other.Total)
}

func (i *Invoice) Totals() InvoiceTotals {
	return InvoiceTotals{
		Subtotal:      i.Subtotal,
		TaxTotal:      i.TaxTotal,
		DiscountTotal: i.DiscountTotal,
		Total:         i.Total,
	}
}

func (i *Invoice) ApplyTotals(t InvoiceTotals) {
	i.Subtotal = t.Subtotal
	i.TaxTotal = t.TaxTotal
	i.DiscountTotal = t.DiscountTotal
	i.Total = t.Total
}

// IsOverdue reports whether a sent invoice's due date lies before the day of now.
func (i *Invoice) IsOverdue(now time.Time) bool {
	if NormalizeInvoiceStatus(i.Status) != InvoiceStatusSent || i.DueDate == nil {
		return false
	}
	return i.DueDate.Before(StartOfDay(now))
}

// DisplayStatus is the status shown to users, with overdue derived at read time.
func (i *Invoice) DisplayStatus(now time.Time) InvoiceStatus {
	if i.IsOverdue(now) {
		return InvoiceStatusOverdue
	}
	return NormalizeInvoiceStatus(i.Status)
}

// IsEditable reports whether line items and metadata may still change.
func (i *Invoice) IsEditable(now time.Time) bool {
	switch i.DisplayStatus(now) {
	case InvoiceStatusDraft, InvoiceStatusSent:
		return true
	default:
		return false
	}
}

// IsCollectible reports whether the invoice is awaiting payment.
func (i *Invoice) IsCollectible() bool {
	return NormalizeInvoiceStatus(i.Status) == InvoiceStatusSent
}

// InvoiceFilter narrows invoice listings. Status may be the derived overdue value.
type InvoiceFilter struct {
	Status   *InvoiceStatus
	ClientID *uuid.UUID
	AsOf     time.Time
	Limit    int
	Offset   int
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
