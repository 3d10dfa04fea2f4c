package models

import (
	"time"

	"github.com/google/uuid"
)

type Business struct {
	ID                     uuid.UUID `json:"id" db:"id"`
	OwnerID                string    `json:"owner_id" db:"owner_id"`
	Name                   string    `json:"name" db:"name"`
	Slug                   *string   `json:"slug,omitempty" db:"slug"`
	Email                  *string   `json:"email,omitempty" db:"email"`
	Phone                  *string   `json:"phone,omitempty" db:"phone"`
	WhatsappNumber         *string   `json:"whatsapp_number,omitempty" db:"whatsapp_number"`
	PaystackSubaccountCode *string   `json:"paystack_subaccount_code,omitempty" db:"paystack_subaccount_code"`
	PaystackSplitCode      *string   `json:"paystack_split_code,omitempty" db:"paystack_split_code"`
	CreatedAt              time.Time `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time `json:"updated_at" db:"updated_at"`
}

type Client struct {
	ID             uuid.UUID `json:"id" db:"id"`
	BusinessID     uuid.UUID `json:"business_id" db:"business_id"`
	FullName       string    `json:"full_name" db:"full_name"`
	Email          *string   `json:"email,omitempty" db:"email"`
	Phone          *string   `json:"phone,omitempty" db:"phone"`
	WhatsappNumber *string   `json:"whatsapp_number,omitempty" db:"whatsapp_number"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type PaymentMethod struct {
	ID            uuid.UUID `json:"id" db:"id"`
	BusinessID    uuid.UUID `json:"business_id" db:"business_id"`
	Label         string    `json:"label" db:"label"`
	Provider      *string   `json:"provider,omitempty" db:"provider"`
	AccountName   *string   `json:"account_name,omitempty" db:"account_name"`
	AccountNumber *string   `json:"account_number,omitempty" db:"account_number"`
	Instructions  *string   `json:"instructions,omitempty" db:"instructions"`
	IsDefault     bool      `json:"is_default" db:"is_default"`
}
