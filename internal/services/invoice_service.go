package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"momoinvoice/internal/common"
	"momoinvoice/internal/logger"
	"momoinvoice/internal/models"
	"momoinvoice/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// InvoiceServiceInterface defines the invoice lifecycle operations
type InvoiceServiceInterface interface {
	CreateInvoice(ctx context.Context, businessID uuid.UUID, input CreateInvoiceInput) (*models.Invoice, error)
	GetInvoice(ctx context.Context, businessID, invoiceID uuid.UUID) (*InvoiceView, error)
	ListInvoices(ctx context.Context, businessID uuid.UUID, filter models.InvoiceFilter) ([]*InvoiceView, error)
	UpdateLineItems(ctx context.Context, businessID, invoiceID uuid.UUID, items []LineItemInput) (*models.Invoice, error)
	UpdateMetadata(ctx context.Context, businessID, invoiceID uuid.UUID, patch MetadataPatch) (*models.Invoice, error)
	MarkShared(ctx context.Context, businessID, invoiceID uuid.UUID) (*models.Invoice, error)
	MarkPaid(ctx context.Context, businessID, invoiceID uuid.UUID, paidAt *time.Time) (*models.Invoice, error)
}

// CreateInvoiceInput is the payload for a new invoice
type CreateInvoiceInput struct {
	ClientID            uuid.UUID            `json:"client_id"`
	IssueDate           string               `json:"issue_date"`
	DueDate             *string              `json:"due_date,omitempty"`
	Currency            string               `json:"currency,omitempty"`
	Status              models.InvoiceStatus `json:"status,omitempty"`
	PaymentMethodID     *uuid.UUID           `json:"payment_method_id,omitempty"`
	Notes               *string              `json:"notes,omitempty"`
	PaymentInstructions *string              `json:"payment_instructions,omitempty"`
	PayableTo           *string              `json:"payable_to,omitempty"`
	LineItems           []LineItemInput      `json:"line_items"`
}

// MetadataPatch changes invoice fields other than line items. Absent fields are
// left alone; nullable fields can be cleared with an explicit null.
type MetadataPatch struct {
	ClientID            *uuid.UUID                 `json:"client_id,omitempty"`
	IssueDate           *string                    `json:"issue_date,omitempty"`
	DueDate             common.Optional[string]    `json:"due_date"`
	Currency            *string                    `json:"currency,omitempty"`
	PaymentMethodID     common.Optional[uuid.UUID] `json:"payment_method_id"`
	Notes               common.Optional[string]    `json:"notes"`
	PaymentInstructions common.Optional[string]    `json:"payment_instructions"`
	PayableTo           common.Optional[string]    `json:"payable_to"`
}

func (p MetadataPatch) IsEmpty() bool {
	return p.ClientID == nil && p.IssueDate == nil && !p.DueDate.Set && p.Currency == nil &&
		!p.PaymentMethodID.Set && !p.Notes.Set && !p.PaymentInstructions.Set && !p.PayableTo.Set
}

// InvoiceView is an invoice as presented to callers, with derived fields filled in.
type InvoiceView struct {
	*models.Invoice
	DisplayStatus    models.InvoiceStatus `json:"display_status"`
	TotalsConsistent bool                 `json:"totals_consistent"`
	Payments         []*models.Payment    `json:"payments,omitempty"`
}

const (
	maxNotesLength        = 2000
	maxInstructionsLength = 2000
	maxPayableToLength    = 200
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type invoiceService struct {
	invoiceRepo       repositories.InvoiceRepository
	clientRepo        repositories.ClientRepository
	businessRepo      repositories.BusinessRepository
	paymentMethodRepo repositories.PaymentMethodRepository
	paymentRepo       repositories.PaymentRepository
	tx                repositories.TxManager
	logger            zerolog.Logger
	now               func() time.Time
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(
	invoiceRepo repositories.InvoiceRepository,
	clientRepo repositories.ClientRepository,
	businessRepo repositories.BusinessRepository,
	paymentMethodRepo repositories.PaymentMethodRepository,
	paymentRepo repositories.PaymentRepository,
	tx repositories.TxManager,
) InvoiceServiceInterface {
	return &invoiceService{
		invoiceRepo:       invoiceRepo,
		clientRepo:        clientRepo,
		businessRepo:      businessRepo,
		paymentMethodRepo: paymentMethodRepo,
		paymentRepo:       paymentRepo,
		tx:                tx,
		logger:            logger.WithComponent("invoice_service"),
		now:               time.Now,
	}
}

// InvoiceNumberPrefix derives the three character number prefix from the
// business slug, then its name, falling back to INV.
func InvoiceNumberPrefix(business *models.Business) string {
	candidates := []string{common.SafeString(business.Slug), business.Name}
	for _, candidate := range candidates {
		var b strings.Builder
		for _, r := range strings.ToUpper(candidate) {
			if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
				if b.Len() == 3 {
					break
				}
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return "INV"
}

// FormatInvoiceNumber renders PREFIX-YYYY-NNN.
func FormatInvoiceNumber(prefix string, year, sequence int) string {
	return fmt.Sprintf("%s-%d-%03d", prefix, year, sequence)
}

func normalizeCurrency(value string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(value))
	if currency == "" {
		return models.DefaultCurrency, nil
	}
	if !currencyPattern.MatchString(currency) {
		return "", common.NewValidationError("currency", "currency must be a three letter ISO code")
	}
	return currency, nil
}

func validateDueDate(issueDate time.Time, dueDate *time.Time) error {
	if dueDate != nil && dueDate.Before(issueDate) {
		return common.NewValidationError("due_date", "due date cannot be before the issue date")
	}
	return nil
}

func (s *invoiceService) CreateInvoice(ctx context.Context, businessID uuid.UUID, input CreateInvoiceInput) (*models.Invoice, error) {
	items, err := BuildLineItems(input.LineItems)
	if err != nil {
		return nil, err
	}
	if input.ClientID == uuid.Nil {
		return nil, common.NewValidationError("client_id", "client is required")
	}

	issueDate, err := common.ParseDate(input.IssueDate, "issue_date")
	if err != nil {
		return nil, err
	}
	var dueDate *time.Time
	if input.DueDate != nil && strings.TrimSpace(*input.DueDate) != "" {
		parsed, err := common.ParseDate(*input.DueDate, "due_date")
		if err != nil {
			return nil, err
		}
		dueDate = &parsed
	}
	if err := validateDueDate(issueDate, dueDate); err != nil {
		return nil, err
	}

	currency, err := normalizeCurrency(input.Currency)
	if err != nil {
		return nil, err
	}

	status := input.Status
	switch status {
	case "":
		status = models.InvoiceStatusDraft
	case models.InvoiceStatusDraft, models.InvoiceStatusSent:
	default:
		return nil, common.NewValidationError("status", "new invoices must be draft or sent")
	}

	notes, err := common.NormalizeOptionalString(input.Notes, "notes", maxNotesLength)
	if err != nil {
		return nil, err
	}
	instructions, err := common.NormalizeOptionalString(input.PaymentInstructions, "payment_instructions", maxInstructionsLength)
	if err != nil {
		return nil, err
	}
	payableTo, err := common.NormalizeOptionalString(input.PayableTo, "payable_to", maxPayableToLength)
	if err != nil {
		return nil, err
	}

	if _, err := s.clientRepo.GetByID(ctx, businessID, input.ClientID); err != nil {
		if repositories.IsNotFound(err) {
			return nil, common.NewNotFoundError("Client")
		}
		return nil, fmt.Errorf("failed to load client: %w", err)
	}

	business, err := s.businessRepo.GetByID(ctx, businessID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, common.NewNotFoundError("Business")
		}
		return nil, fmt.Errorf("failed to load business: %w", err)
	}

	if input.PaymentMethodID != nil {
		method, err := s.loadPaymentMethod(ctx, businessID, *input.PaymentMethodID)
		if err != nil {
			return nil, err
		}
		if instructions == nil {
			instructions = method.Instructions
		}
		if payableTo == nil {
			payableTo = method.AccountName
		}
	}

	invoice := &models.Invoice{
		ID:                  uuid.New(),
		BusinessID:          businessID,
		ClientID:            input.ClientID,
		Status:              status,
		Currency:            currency,
		IssueDate:           issueDate,
		DueDate:             dueDate,
		PaymentMethodID:     input.PaymentMethodID,
		Notes:               notes,
		PaymentInstructions: instructions,
		PayableTo:           payableTo,
		LineItems:           items,
	}
	invoice.ApplyTotals(CalculateTotals(items))
	if status == models.InvoiceStatusSent {
		sharedAt := s.now().UTC()
		invoice.LastSharedAt = &sharedAt
	}

	prefix := InvoiceNumberPrefix(business)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		sequence, err := s.invoiceRepo.NextSequentialNumber(ctx, businessID)
		if err != nil {
			return fmt.Errorf("failed to allocate invoice number: %w", err)
		}
		invoice.SequentialNumber = sequence
		invoice.InvoiceNumber = FormatInvoiceNumber(prefix, issueDate.Year(), sequence)
		return s.invoiceRepo.Create(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("business_id", businessID.String()).
		Str("invoice_id", invoice.ID.String()).
		Str("invoice_number", invoice.InvoiceNumber).
		Msg("invoice created")
	return invoice, nil
}

func (s *invoiceService) loadPaymentMethod(ctx context.Context, businessID, methodID uuid.UUID) (*models.PaymentMethod, error) {
	method, err := s.paymentMethodRepo.GetByID(ctx, businessID, methodID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, common.NewNotFoundError("Payment method")
		}
		return nil, fmt.Errorf("failed to load payment method: %w", err)
	}
	return method, nil
}

func (s *invoiceService) view(invoice *models.Invoice, now time.Time) *InvoiceView {
	v := &InvoiceView{
		Invoice:          invoice,
		DisplayStatus:    invoice.DisplayStatus(now),
		TotalsConsistent: true,
	}
	if invoice.LineItems != nil {
		v.TotalsConsistent = CalculateTotals(invoice.LineItems).Equal(invoice.Totals())
	}
	return v
}

func (s *invoiceService) GetInvoice(ctx context.Context, businessID, invoiceID uuid.UUID) (*InvoiceView, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, businessID, invoiceID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, common.NewNotFoundError("Invoice")
		}
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}

	payments, err := s.paymentRepo.ListByInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	v := s.view(invoice, s.now())
	v.Payments = payments
	if !v.TotalsConsistent {
		s.logger.Warn().
			Str("invoice_id", invoice.ID.String()).
			Str("stored_total", invoice.Total.String()).
			Msg("stored invoice totals differ from line items")
	}
	return v, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, businessID uuid.UUID, filter models.InvoiceFilter) ([]*InvoiceView, error) {
	limit, offset, err := common.ValidatePaginationParams(filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	filter.Limit, filter.Offset = limit, offset

	now := s.now()
	if filter.AsOf.IsZero() {
		filter.AsOf = now
	}
	filter.AsOf = models.StartOfDay(filter.AsOf)

	invoices, err := s.invoiceRepo.List(ctx, businessID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	views := make([]*InvoiceView, 0, len(invoices))
	for _, invoice := range invoices {
		views = append(views, s.view(invoice, now))
	}
	return views, nil
}

// mutate loads the invoice under a row lock, applies fn and persists the result
// in the same transaction.
func (s *invoiceService) mutate(ctx context.Context, businessID, invoiceID uuid.UUID, fn func(ctx context.Context, invoice *models.Invoice, now time.Time) error) (*models.Invoice, error) {
	var updated *models.Invoice
	now := s.now()
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		invoice, err := s.invoiceRepo.GetForUpdate(ctx, businessID, invoiceID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return common.NewNotFoundError("Invoice")
			}
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		if err := fn(ctx, invoice, now); err != nil {
			return err
		}
		if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		updated = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func ensureEditable(invoice *models.Invoice, now time.Time) error {
	if !invoice.IsEditable(now) {
		return common.NewInvalidStateError("Paid or overdue invoices cannot be edited.")
	}
	return nil
}

func (s *invoiceService) UpdateLineItems(ctx context.Context, businessID, invoiceID uuid.UUID, inputs []LineItemInput) (*models.Invoice, error) {
	items, err := BuildLineItems(inputs)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, businessID, invoiceID, func(ctx context.Context, invoice *models.Invoice, now time.Time) error {
		if err := ensureEditable(invoice, now); err != nil {
			return err
		}
		if err := s.invoiceRepo.ReplaceLineItems(ctx, invoice.ID, items); err != nil {
			return fmt.Errorf("failed to replace line items: %w", err)
		}
		invoice.LineItems = items
		invoice.ApplyTotals(CalculateTotals(items))
		return nil
	})
}

func (s *invoiceService) UpdateMetadata(ctx context.Context, businessID, invoiceID uuid.UUID, patch MetadataPatch) (*models.Invoice, error) {
	if patch.IsEmpty() {
		return nil, common.NewValidationError("body", "no fields to update")
	}

	return s.mutate(ctx, businessID, invoiceID, func(ctx context.Context, invoice *models.Invoice, now time.Time) error {
		if err := ensureEditable(invoice, now); err != nil {
			return err
		}
		return s.applyPatch(ctx, invoice, patch)
	})
}

func (s *invoiceService) applyPatch(ctx context.Context, invoice *models.Invoice, patch MetadataPatch) error {
	if patch.ClientID != nil && *patch.ClientID != invoice.ClientID {
		if _, err := s.clientRepo.GetByID(ctx, invoice.BusinessID, *patch.ClientID); err != nil {
			if repositories.IsNotFound(err) {
				return common.NewNotFoundError("Client")
			}
			return fmt.Errorf("failed to load client: %w", err)
		}
		invoice.ClientID = *patch.ClientID
	}

	if patch.IssueDate != nil {
		issueDate, err := common.ParseDate(*patch.IssueDate, "issue_date")
		if err != nil {
			return err
		}
		invoice.IssueDate = issueDate
	}
	if patch.DueDate.Set {
		if patch.DueDate.Value == nil || strings.TrimSpace(*patch.DueDate.Value) == "" {
			invoice.DueDate = nil
		} else {
			dueDate, err := common.ParseDate(*patch.DueDate.Value, "due_date")
			if err != nil {
				return err
			}
			invoice.DueDate = &dueDate
		}
	}
	if err := validateDueDate(invoice.IssueDate, invoice.DueDate); err != nil {
		return err
	}

	if patch.Currency != nil {
		currency, err := normalizeCurrency(*patch.Currency)
		if err != nil {
			return err
		}
		invoice.Currency = currency
	}

	var err error
	if patch.Notes.Set {
		if invoice.Notes, err = common.NormalizeOptionalString(patch.Notes.Value, "notes", maxNotesLength); err != nil {
			return err
		}
	}
	if patch.PaymentInstructions.Set {
		if invoice.PaymentInstructions, err = common.NormalizeOptionalString(patch.PaymentInstructions.Value, "payment_instructions", maxInstructionsLength); err != nil {
			return err
		}
	}
	if patch.PayableTo.Set {
		if invoice.PayableTo, err = common.NormalizeOptionalString(patch.PayableTo.Value, "payable_to", maxPayableToLength); err != nil {
			return err
		}
	}

	if patch.PaymentMethodID.Set {
		invoice.PaymentMethodID = patch.PaymentMethodID.Value
		if patch.PaymentMethodID.Value != nil {
			method, err := s.loadPaymentMethod(ctx, invoice.BusinessID, *patch.PaymentMethodID.Value)
			if err != nil {
				return err
			}
			if !patch.PaymentInstructions.Set {
				invoice.PaymentInstructions = method.Instructions
			}
			if !patch.PayableTo.Set {
				invoice.PayableTo = method.AccountName
			}
		}
	}
	return nil
}

// MarkShared records a share and moves a draft to sent. Paid invoices may be
// re-shared without changing status.
func (s *invoiceService) MarkShared(ctx context.Context, businessID, invoiceID uuid.UUID) (*models.Invoice, error) {
	return s.mutate(ctx, businessID, invoiceID, func(ctx context.Context, invoice *models.Invoice, now time.Time) error {
		sharedAt := now.UTC()
		invoice.LastSharedAt = &sharedAt
		if invoice.Status == models.InvoiceStatusDraft {
			invoice.Status = models.InvoiceStatusSent
		}
		return nil
	})
}

// MarkPaid settles a sent invoice by hand, outside the gateway flow.
func (s *invoiceService) MarkPaid(ctx context.Context, businessID, invoiceID uuid.UUID, paidAt *time.Time) (*models.Invoice, error) {
	invoice, err := s.mutate(ctx, businessID, invoiceID, func(ctx context.Context, invoice *models.Invoice, now time.Time) error {
		switch invoice.Status {
		case models.InvoiceStatusPaid:
			return common.NewInvalidStateError("Invoice is already paid.")
		case models.InvoiceStatusDraft:
			return common.NewInvalidStateError("Draft invoices must be sent before they can be marked paid.")
		}
		at := now.UTC()
		if paidAt != nil {
			at = paidAt.UTC()
		}
		invoice.Status = models.InvoiceStatusPaid
		invoice.PaidAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("invoice_id", invoice.ID.String()).
		Msg("invoice marked paid manually")
	return invoice, nil
}
