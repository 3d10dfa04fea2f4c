package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReminderChannel string

const (
	ReminderChannelEmail    ReminderChannel = "email"
	ReminderChannelSMS      ReminderChannel = "sms"
	ReminderChannelWhatsApp ReminderChannel = "whatsapp"
)

func (c ReminderChannel) Valid() bool {
	switch c {
	case ReminderChannelEmail, ReminderChannelSMS, ReminderChannelWhatsApp:
		return true
	}
	return false
}

type ReminderStatus string

const (
	ReminderStatusSent   ReminderStatus = "sent"
	ReminderStatusFailed ReminderStatus = "failed"
)

// ReminderTemplate fires OffsetDays relative to an invoice's due date:
// negative before, zero on, positive after.
type ReminderTemplate struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	BusinessID uuid.UUID       `json:"business_id" db:"business_id"`
	Label      string          `json:"label" db:"label"`
	OffsetDays int             `json:"offset_days" db:"offset_days"`
	Channel    ReminderChannel `json:"channel" db:"channel"`
	Enabled    bool            `json:"enabled" db:"enabled"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// ScheduledAt is dueDate shifted by the template offset in calendar days.
func (t *ReminderTemplate) ScheduledAt(dueDate time.Time) time.Time {
	return dueDate.AddDate(0, 0, t.OffsetDays)
}

// ReminderLogEntry is one append-only send attempt for an (invoice, template) pair.
type ReminderLogEntry struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	InvoiceID   uuid.UUID       `json:"invoice_id" db:"invoice_id"`
	TemplateID  uuid.UUID       `json:"template_id" db:"template_id"`
	Channel     ReminderChannel `json:"channel" db:"channel"`
	Status      ReminderStatus  `json:"status" db:"status"`
	ScheduledAt time.Time       `json:"scheduled_at" db:"scheduled_at"`
	SentAt      *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	Payload     ReminderPayload `json:"payload" db:"payload"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type ReminderPayload struct {
	Error     string `json:"error,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// ReminderHistoryEntry is a log entry joined with display fields.
type ReminderHistoryEntry struct {
	ReminderLogEntry
	InvoiceNumber string `json:"invoice_number"`
	TemplateLabel string `json:"template_label"`
}

// ReminderTarget is a collectible invoice with the contact data needed to remind its client.
type ReminderTarget struct {
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	BusinessID     uuid.UUID       `json:"business_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	Status         InvoiceStatus   `json:"status"`
	Currency       string          `json:"currency"`
	Total          decimal.Decimal `json:"total"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	ClientName     string          `json:"client_name"`
	ClientEmail    *string         `json:"client_email,omitempty"`
	ClientPhone    *string         `json:"client_phone,omitempty"`
	ClientWhatsapp *string         `json:"client_whatsapp,omitempty"`
	BusinessName   string          `json:"business_name"`
	BusinessEmail  *string         `json:"business_email,omitempty"`
	BusinessPhone  *string         `json:"business_phone,omitempty"`
}

// ReminderResult is the per-pair outcome of a reminder run.
type ReminderResult struct {
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	TemplateID  uuid.UUID       `json:"template_id"`
	Channel     ReminderChannel `json:"channel"`
	Status      ReminderStatus  `json:"status"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	LogID       *uuid.UUID      `json:"log_id,omitempty"`
	MessageID   string          `json:"message_id,omitempty"`
	Error       string          `json:"error,omitempty"`
	Test        bool            `json:"test,omitempty"`

	// Skipped is set when a successful send already exists for the pair or
	// another worker holds the pair lock.
	Skipped bool `json:"skipped,omitempty"`
}

type ReminderRunResult struct {
	Sent    int              `json:"sent"`
	Failed  int              `json:"failed"`
	Results []ReminderResult `json:"results"`
}

func (r *ReminderRunResult) Add(res ReminderResult) {
	if res.Status == ReminderStatusSent {
		r.Sent++
	} else {
		r.Failed++
	}
	r.Results = append(r.Results, res)
}
