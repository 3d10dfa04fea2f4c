package handlers

import (
	"context"
	"time"

	"momoinvoice/internal/models"
	"momoinvoice/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) CreateInvoice(ctx context.Context, businessID uuid.UUID, input services.CreateInvoiceInput) (*models.Invoice, error) {
	args := m.Called(ctx, businessID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GetInvoice(ctx context.Context, businessID, invoiceID uuid.UUID) (*services.InvoiceView, error) {
	args := m.Called(ctx, businessID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.InvoiceView), args.Error(1)
}

func (m *MockInvoiceService) ListInvoices(ctx context.Context, businessID uuid.UUID, filter models.InvoiceFilter) ([]*services.InvoiceView, error) {
	args := m.Called(ctx, businessID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*services.InvoiceView), args.Error(1)
}

func (m *MockInvoiceService) UpdateLineItems(ctx context.Context, businessID, invoiceID uuid.UUID, items []services.LineItemInput) (*models.Invoice, error) {
	args := m.Called(ctx, businessID, invoiceID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) UpdateMetadata(ctx context.Context, businessID, invoiceID uuid.UUID, patch services.MetadataPatch) (*models.Invoice, error) {
	args := m.Called(ctx, businessID, invoiceID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) MarkShared(ctx context.Context, businessID, invoiceID uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, businessID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) MarkPaid(ctx context.Context, businessID, invoiceID uuid.UUID, paidAt *time.Time) (*models.Invoice, error) {
	args := m.Called(ctx, businessID, invoiceID, paidAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) InitializeCheckout(ctx context.Context, businessID, invoiceID uuid.UUID) (*services.CheckoutSession, error) {
	args := m.Called(ctx, businessID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CheckoutSession), args.Error(1)
}

func (m *MockPaymentService) InitializePublicCheckout(ctx context.Context, invoiceID uuid.UUID) (*services.CheckoutSession, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CheckoutSession), args.Error(1)
}

func (m *MockPaymentService) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (*services.WebhookOutcome, error) {
	args := m.Called(ctx, rawBody, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.WebhookOutcome), args.Error(1)
}

type MockReminderService struct {
	mock.Mock
}

func (m *MockReminderService) RunDue(ctx context.Context, opts services.RunOptions) (*models.ReminderRunResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReminderRunResult), args.Error(1)
}

func (m *MockReminderService) SendOne(ctx context.Context, businessID, invoiceID, templateID uuid.UUID, test bool) (*models.ReminderResult, error) {
	args := m.Called(ctx, businessID, invoiceID, templateID, test)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReminderResult), args.Error(1)
}

func (m *MockReminderService) CreateTemplate(ctx context.Context, businessID uuid.UUID, input services.TemplateInput) (*models.ReminderTemplate, error) {
	args := m.Called(ctx, businessID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReminderTemplate), args.Error(1)
}

func (m *MockReminderService) ListTemplates(ctx context.Context, businessID uuid.UUID) ([]*models.ReminderTemplate, error) {
	args := m.Called(ctx, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReminderTemplate), args.Error(1)
}

func (m *MockReminderService) UpdateTemplate(ctx context.Context, businessID, templateID uuid.UUID, patch services.TemplatePatch) (*models.ReminderTemplate, error) {
	args := m.Called(ctx, businessID, templateID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReminderTemplate), args.Error(1)
}

func (m *MockReminderService) DeleteTemplate(ctx context.Context, businessID, templateID uuid.UUID) error {
	args := m.Called(ctx, businessID, templateID)
	return args.Error(0)
}

func (m *MockReminderService) History(ctx context.Context, businessID uuid.UUID, limit int) ([]*models.ReminderHistoryEntry, error) {
	args := m.Called(ctx, businessID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReminderHistoryEntry), args.Error(1)
}

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(ctx context.Context) error {
	return s.err
}
