package services

import (
	"bytes"
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
	"github.com/shopspring/decimal"
)

// PaymentServiceInterface covers checkout initialization and webhook reconciliation
type PaymentServiceInterface interface {
	InitializeCheckout(ctx context.Context, businessID, invoiceID uuid.UUID) (*CheckoutSession, error)
	InitializePublicCheckout(ctx context.Context, invoiceID uuid.UUID) (*CheckoutSession, error)
	HandleWebhook(ctx context.Context, rawBody []byte, signature string) (*WebhookOutcome, error)
}

// WebhookArchiver stores verified webhook bodies for later audit.
type WebhookArchiver interface {
	ArchiveWebhook(ctx context.Context, event, reference string, body []byte) (string, error)
}

// CheckoutSession is returned to the payer to continue on the hosted page.
type CheckoutSession struct {
	AuthorizationURL string    `json:"authorization_url"`
	Reference        string    `json:"reference"`
	PaymentID        uuid.UUID `json:"payment_id"`
}

// WebhookAction describes what a delivered event did.
type WebhookAction string

const (
	WebhookActionNoReference      WebhookAction = "no_reference"
	WebhookActionUnknownReference WebhookAction = "unknown_reference"
	WebhookActionSettled          WebhookAction = "settled"
	WebhookActionAlreadyPaid      WebhookAction = "already_paid"
	WebhookActionFailed           WebhookAction = "payment_failed"
	WebhookActionMetadata         WebhookAction = "metadata_recorded"
)

type WebhookOutcome struct {
	Event     string        `json:"event"`
	Reference string        `json:"reference,omitempty"`
	Action    WebhookAction `json:"action"`
	PaymentID *uuid.UUID    `json:"payment_id,omitempty"`
	InvoiceID *uuid.UUID    `json:"invoice_id,omitempty"`
}

type PaymentServiceConfig struct {
	AppURL                    string
	SkipSignatureVerification bool
}

const (
	referencePrefixLength = 30
	fallbackEmailDomain   = "momoinvoice.app"
)

var (
	referenceSanitizer = regexp.MustCompile(`[^A-Za-z0-9-]`)
	hundred            = decimal.NewFromInt(100)
)

type paymentService struct {
	invoiceRepo  repositories.InvoiceRepository
	businessRepo repositories.BusinessRepository
	clientRepo   repositories.ClientRepository
	paymentRepo  repositories.PaymentRepository
	tx           repositories.TxManager
	gateway      PaymentGateway
	archiver     WebhookArchiver
	cfg          PaymentServiceConfig
	logger       zerolog.Logger
	now          func() time.Time
}

// NewPaymentService creates a new payment service. archiver may be nil.
func NewPaymentService(
	invoiceRepo repositories.InvoiceRepository,
	businessRepo repositories.BusinessRepository,
	clientRepo repositories.ClientRepository,
	paymentRepo repositories.PaymentRepository,
	tx repositories.TxManager,
	gateway PaymentGateway,
	archiver WebhookArchiver,
	cfg PaymentServiceConfig,
) PaymentServiceInterface {
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	return &paymentService{
		invoiceRepo:  invoiceRepo,
		businessRepo: businessRepo,
		clientRepo:   clientRepo,
		paymentRepo:  paymentRepo,
		tx:           tx,
		gateway:      gateway,
		archiver:     archiver,
		cfg:          cfg,
		logger:       logger.WithComponent("payment_service"),
		now:          time.Now,
	}
}

// PaymentReference builds a gateway reference from the invoice number plus a random suffix.
func PaymentReference(invoiceNumber string) string {
	prefix := referenceSanitizer.ReplaceAllString(invoiceNumber, "")
	if len(prefix) > referencePrefixLength {
		prefix = prefix[:referencePrefixLength]
	}
	prefix = strings.ToUpper(prefix)
	if prefix == "" {
		prefix = "INVOICE"
	}
	suffix := strings.ToUpper(strings.SplitN(uuid.NewString(), "-", 2)[0])
	return prefix + "-" + suffix
}

// AmountInMinorUnits converts a decimal amount to the gateway's integer unit.
func AmountInMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func (s *paymentService) InitializeCheckout(ctx context.Context, businessID, invoiceID uuid.UUID) (*CheckoutSession, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil && !repositories.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if invoice == nil || invoice.BusinessID != businessID {
		return nil, common.NewNotFoundError("Invoice")
	}
	return s.checkout(ctx, invoice)
}

func (s *paymentService) InitializePublicCheckout(ctx context.Context, invoiceID uuid.UUID) (*CheckoutSession, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, common.NewNotFoundError("Invoice")
		}
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	return s.checkout(ctx, invoice)
}

func (s *paymentService) checkout(ctx context.Context, invoice *models.Invoice) (*CheckoutSession, error) {
	if invoice.Status == models.InvoiceStatusPaid {
		return nil, common.NewInvalidStateError("Invoice already settled")
	}
	if !invoice.Total.IsPositive() {
		return nil, common.NewValidationError("total", "Invoice has no payable amount")
	}

	business, err := s.businessRepo.GetByID(ctx, invoice.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("failed to load business: %w", err)
	}
	client, err := s.clientRepo.GetByID(ctx, invoice.BusinessID, invoice.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client: %w", err)
	}

	currency := invoice.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}

	req := InitializeTransactionRequest{
		Reference: PaymentReference(invoice.InvoiceNumber),
		Email: common.FirstNonEmpty(
			common.SafeString(client.Email),
			common.SafeString(business.Email),
			fmt.Sprintf("billing+%s@%s", invoice.ID, fallbackEmailDomain),
		),
		Amount:      AmountInMinorUnits(invoice.Total),
		Currency:    currency,
		CallbackURL: s.cfg.AppURL + "/payments/paystack/callback",
		Metadata: map[string]any{
			"invoiceId":  invoice.ID.String(),
			"businessId": invoice.BusinessID.String(),
			"clientId":   invoice.ClientID.String(),
			"workspace":  common.SafeString(business.Slug),
		},
		SplitCode: common.SafeString(business.PaystackSplitCode),
	}
	if subaccount := common.SafeString(business.PaystackSubaccountCode); subaccount != "" {
		req.Subaccount = subaccount
		req.Bearer = "subaccount"
	}

	session, err := s.gateway.InitializeTransaction(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).
			Str("invoice_id", invoice.ID.String()).
			Str("reference", req.Reference).
			Msg("checkout initialization failed")
		return nil, err
	}

	payment := &models.Payment{
		ID:        uuid.New(),
		InvoiceID: invoice.ID,
		Amount:    invoice.Total,
		Method:    models.PaymentMethodPaystack,
		Reference: session.Reference,
		Status:    models.PaymentStatusPending,
		Metadata: models.PaymentMetadata{
			AccessCode:       session.AccessCode,
			AuthorizationURL: session.AuthorizationURL,
		},
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.invoiceRepo.LockByID(ctx, invoice.ID)
		if err != nil {
			return fmt.Errorf("failed to lock invoice: %w", err)
		}
		if locked.Status == models.InvoiceStatusPaid {
			return common.NewInvalidStateError("Invoice already settled")
		}
		cancelled, err := s.paymentRepo.CancelPending(ctx, invoice.ID, models.PaymentMethodPaystack)
		if err != nil {
			return err
		}
		if cancelled > 0 {
			s.logger.Debug().
				Str("invoice_id", invoice.ID.String()).
				Int64("cancelled", cancelled).
				Msg("cancelled stale pending payments")
		}
		return s.paymentRepo.Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("invoice_id", invoice.ID.String()).
		Str("reference", payment.Reference).
		Int64("amount_minor", req.Amount).
		Msg("checkout initialized")

	return &CheckoutSession{
		AuthorizationURL: session.AuthorizationURL,
		Reference:        session.Reference,
		PaymentID:        payment.ID,
	}, nil
}

// HandleWebhook verifies and applies one gateway delivery. Any verified
// delivery that does not return an error should be acknowledged.
func (s *paymentService) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (*WebhookOutcome, error) {
	if len(bytes.TrimSpace(rawBody)) == 0 {
		return nil, common.NewValidationError("body", "Empty webhook payload")
	}

	if s.cfg.SkipSignatureVerification {
		s.logger.Warn().Msg("webhook signature verification skipped")
	} else {
		verification := s.gateway.VerifySignature(rawBody, signature)
		if !verification.Valid {
			s.logger.Warn().
				Bool("signature_present", strings.TrimSpace(signature) != "").
				Int("body_length", len(rawBody)).
				Msg("webhook signature verification failed")
			return nil, common.NewSignatureError("Invalid signature")
		}
	}

	event, err := ParseGatewayEvent(rawBody)
	if err != nil {
		return nil, err
	}
	outcome := &WebhookOutcome{Event: event.Event, Reference: event.Data.Reference}

	if s.archiver != nil {
		if key, err := s.archiver.ArchiveWebhook(ctx, event.Event, event.Data.Reference, rawBody); err != nil {
			s.logger.Warn().Err(err).Str("event", event.Event).Msg("failed to archive webhook")
		} else {
			s.logger.Debug().Str("object", key).Msg("webhook archived")
		}
	}

	if event.Data.Reference == "" {
		outcome.Action = WebhookActionNoReference
		return outcome, nil
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		payment, invoice, err := s.lockByReference(ctx, event.Data.Reference)
		if err != nil {
			return err
		}
		if payment == nil {
			outcome.Action = WebhookActionUnknownReference
			return nil
		}
		outcome.PaymentID = &payment.ID
		outcome.InvoiceID = &invoice.ID
		return s.apply(ctx, event, payment, invoice, outcome)
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("event", event.Event).
			Str("reference", event.Data.Reference).
			Msg("webhook reconciliation failed")
		return nil, err
	}

	s.logger.Info().
		Str("event", event.Event).
		Str("reference", event.Data.Reference).
		Str("action", string(outcome.Action)).
		Msg("webhook processed")
	return outcome, nil
}

// lockByReference locks the invoice row and then the payment row, the same order
// checkout uses, so the two flows cannot deadlock. A nil payment means the
// reference is unknown.
func (s *paymentService) lockByReference(ctx context.Context, reference string) (*models.Payment, *models.Invoice, error) {
	found, err := s.paymentRepo.GetByReference(ctx, reference)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to load payment: %w", err)
	}

	invoice, err := s.invoiceRepo.LockByID(ctx, found.InvoiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock invoice: %w", err)
	}
	payment, err := s.paymentRepo.GetByReferenceForUpdate(ctx, reference)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock payment: %w", err)
	}
	return payment, invoice, nil
}

func (s *paymentService) apply(ctx context.Context, event *models.GatewayEvent, payment *models.Payment, invoice *models.Invoice, outcome *WebhookOutcome) error {
	metadata := event.MetadataFor(payment.Metadata)

	switch event.Event {
	case models.EventChargeSuccess:
		if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentStatusSuccessful, metadata); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		if invoice.Status == models.InvoiceStatusPaid {
			outcome.Action = WebhookActionAlreadyPaid
			return nil
		}
		paidAt := s.now().UTC()
		if at := event.Data.PaidAtTime(); at != nil {
			paidAt = at.UTC()
		}
		if err := s.invoiceRepo.MarkPaid(ctx, invoice.ID, paidAt); err != nil {
			return fmt.Errorf("failed to mark invoice paid: %w", err)
		}
		outcome.Action = WebhookActionSettled

	case models.EventChargeFailed:
		// A late failure never downgrades a settled attempt.
		if payment.Status == models.PaymentStatusSuccessful {
			if err := s.paymentRepo.UpdateMetadata(ctx, payment.ID, metadata); err != nil {
				return fmt.Errorf("failed to update payment metadata: %w", err)
			}
			outcome.Action = WebhookActionMetadata
			return nil
		}
		if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentStatusFailed, metadata); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		outcome.Action = WebhookActionFailed

	default:
		if err := s.paymentRepo.UpdateMetadata(ctx, payment.ID, metadata); err != nil {
			return fmt.Errorf("failed to update payment metadata: %w", err)
		}
		outcome.Action = WebhookActionMetadata
	}
	return nil
}
