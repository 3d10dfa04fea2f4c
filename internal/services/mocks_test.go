package services

import (
	"context"
	"time"

	"momoinvoice/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// passthroughTx runs fn directly, standing in for a database transaction.
type passthroughTx struct {
	calls int
}

func (p *passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, businessID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) GetForUpdate(ctx context.Context, businessID, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, businessID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) List(ctx context.Context, businessID uuid.UUID, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	args := m.Called(ctx, businessID, filter)
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Update(ctx context.Context, invoice *models.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	args := m.Called(ctx, id, paidAt)
	return args.Error(0)
}

func (m *MockInvoiceRepository) ReplaceLineItems(ctx context.Context, invoiceID uuid.UUID, items []models.InvoiceLineItem) error {
	args := m.Called(ctx, invoiceID, items)
	return args.Error(0)
}

func (m *MockInvoiceRepository) ListLineItems(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceLineItem, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).([]models.InvoiceLineItem), args.Error(1)
}

func (m *MockInvoiceRepository) NextSequentialNumber(ctx context.Context, businessID uuid.UUID) (int, error) {
	args := m.Called(ctx, businessID)
	return args.Int(0), args.Error(1)
}

type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.Client, error) {
	args := m.Called(ctx, businessID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Client), args.Error(1)
}

type MockBusinessRepository struct {
	mock.Mock
}

func (m *MockBusinessRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Business), args.Error(1)
}

type MockPaymentMethodRepository struct {
	mock.Mock
}

func (m *MockPaymentMethodRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.PaymentMethod, error) {
	args := m.Called(ctx, businessID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentMethod), args.Error(1)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetByReferenceForUpdate(ctx context.Context, reference string) (*models.Payment, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*models.Payment, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).([]*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus, metadata models.PaymentMetadata) error {
	args := m.Called(ctx, id, status, metadata)
	return args.Error(0)
}

func (m *MockPaymentRepository) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata models.PaymentMetadata) error {
	args := m.Called(ctx, id, metadata)
	return args.Error(0)
}

func (m *MockPaymentRepository) CancelPending(ctx context.Context, invoiceID uuid.UUID, method string) (int64, error) {
	args := m.Called(ctx, invoiceID, method)
	return args.Get(0).(int64), args.Error(1)
}

type MockReminderTemplateRepository struct {
	mock.Mock
}

func (m *MockReminderTemplateRepository) Create(ctx context.Context, template *models.ReminderTemplate) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}

func (m *MockReminderTemplateRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.ReminderTemplate, error) {
	args := m.Called(ctx, businessID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReminderTemplate), args.Error(1)
}

func (m *MockReminderTemplateRepository) List(ctx context.Context, businessID uuid.UUID) ([]*models.ReminderTemplate, error) {
	args := m.Called(ctx, businessID)
	return args.Get(0).([]*models.ReminderTemplate), args.Error(1)
}

func (m *MockReminderTemplateRepository) ListEnabled(ctx context.Context, businessID *uuid.UUID) ([]*models.ReminderTemplate, error) {
	args := m.Called(ctx, businessID)
	return args.Get(0).([]*models.ReminderTemplate), args.Error(1)
}

func (m *MockReminderTemplateRepository) Update(ctx context.Context, template *models.ReminderTemplate) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}

func (m *MockReminderTemplateRepository) Delete(ctx context.Context, businessID, id uuid.UUID) error {
	args := m.Called(ctx, businessID, id)
	return args.Error(0)
}

type MockReminderRepository struct {
	mock.Mock
}

func (m *MockReminderRepository) ListCollectibleTargets(ctx context.Context, businessID uuid.UUID) ([]*models.ReminderTarget, error) {
	args := m.Called(ctx, businessID)
	return args.Get(0).([]*models.ReminderTarget), args.Error(1)
}

func (m *MockReminderRepository) GetTarget(ctx context.Context, businessID, invoiceID uuid.UUID) (*models.ReminderTarget, error) {
	args := m.Called(ctx, businessID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReminderTarget), args.Error(1)
}

func (m *MockReminderRepository) HasSent(ctx context.Context, invoiceID, templateID uuid.UUID) (bool, error) {
	args := m.Called(ctx, invoiceID, templateID)
	return args.Bool(0), args.Error(1)
}

func (m *MockReminderRepository) Append(ctx context.Context, entry *models.ReminderLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockReminderRepository) ListHistory(ctx context.Context, businessID uuid.UUID, limit int) ([]*models.ReminderHistoryEntry, error) {
	args := m.Called(ctx, businessID, limit)
	return args.Get(0).([]*models.ReminderHistoryEntry), args.Error(1)
}

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) InitializeTransaction(ctx context.Context, req InitializeTransactionRequest) (*InitializeTransactionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*InitializeTransactionResponse), args.Error(1)
}

func (m *MockPaymentGateway) VerifySignature(rawBody []byte, signature string) SignatureVerification {
	args := m.Called(rawBody, signature)
	return args.Get(0).(SignatureVerification)
}

type MockWebhookArchiver struct {
	mock.Mock
}

func (m *MockWebhookArchiver) ArchiveWebhook(ctx context.Context, event, reference string, body []byte) (string, error) {
	args := m.Called(ctx, event, reference, body)
	return args.String(0), args.Error(1)
}

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendReminder(ctx context.Context, target *models.ReminderTarget, tmpl *models.ReminderTemplate, test bool) (*NotificationResult, error) {
	args := m.Called(ctx, target, tmpl, test)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*NotificationResult), args.Error(1)
}

type MockPairLocker struct {
	mock.Mock
}

func (m *MockPairLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockPairLocker) ReleaseLock(ctx context.Context, key, token string) error {
	args := m.Called(ctx, key, token)
	return args.Error(0)
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
