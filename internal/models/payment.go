package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// PaymentMethodPaystack tags payments created through hosted checkout.
const PaymentMethodPaystack = "paystack"

// Gateway event types the reconciliation engine acts on.
const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

type Payment struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	InvoiceID uuid.UUID       `json:"invoice_id" db:"invoice_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Method    string          `json:"method" db:"method"`
	Reference string          `json:"reference" db:"reference"`
	Status    PaymentStatus   `json:"status" db:"status"`
	Metadata  PaymentMetadata `json:"metadata" db:"metadata"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// PaymentMetadata is stored as JSONB. Known fields are typed; Raw keeps the last
// gateway payload verbatim so fields added by the provider are not lost.
type PaymentMetadata struct {
	AccessCode       string          `json:"access_code,omitempty"`
	AuthorizationURL string          `json:"authorization_url,omitempty"`
	LastEvent        string          `json:"last_event,omitempty"`
	Charge           *ChargeDetails  `json:"charge,omitempty"`
	Raw              json.RawMessage `json:"raw,omitempty"`
}

type ChargeDetails struct {
	Status          string     `json:"status,omitempty"`
	AmountMinor     int64      `json:"amount_minor,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	Channel         string     `json:"channel,omitempty"`
	GatewayResponse string     `json:"gateway_response,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
}

// GatewayEvent is a parsed webhook delivery.
type GatewayEvent struct {
	Event string           `json:"event"`
	Data  GatewayEventData `json:"data"`
	// RawData is the "data" object exactly as delivered.
	RawData json.RawMessage `json:"-"`
}

type GatewayEventData struct {
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Channel         string `json:"channel"`
	GatewayResponse string `json:"gateway_response"`
	PaidAt          string `json:"paid_at"`
	PaidAtCamel     string `json:"paidAt"`
}

// PaidAtTime parses the provider's paid-at timestamp, if any.
func (d GatewayEventData) PaidAtTime() *time.Time {
	for _, raw := range []string{d.PaidAt, d.PaidAtCamel} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return &t
		}
	}
	return nil
}

// MetadataFor builds the metadata recorded for a delivered event.
func (e *GatewayEvent) MetadataFor(existing PaymentMetadata) PaymentMetadata {
	meta := existing
	meta.LastEvent = e.Event
	meta.Charge = &ChargeDetails{
		Status:          e.Data.Status,
		AmountMinor:     e.Data.Amount,
		Currency:        e.Data.Currency,
		Channel:         e.Data.Channel,
		GatewayResponse: e.Data.GatewayResponse,
		PaidAt:          e.Data.PaidAtTime(),
	}
	if len(e.RawData) > 0 {
		meta.Raw = e.RawData
	}
	return meta
}
