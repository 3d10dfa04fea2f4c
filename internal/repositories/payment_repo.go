package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"momoinvoice/internal/models"

	"github.com/google/uuid"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
	GetByReferenceForUpdate(ctx context.Context, reference string) (*models.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*models.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus, metadata models.PaymentMetadata) error
	UpdateMetadata(ctx context.Context, id uuid.UUID, metadata models.PaymentMetadata) error
	CancelPending(ctx context.Context, invoiceID uuid.UUID, method string) (int64, error)
}

const paymentColumns = `id, invoice_id, amount, method, reference, status, metadata, created_at, updated_at`

type paymentRepo struct {
	db Pool
}

func NewPaymentRepo(db Pool) PaymentRepository {
	return &paymentRepo{db: db}
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	payment := &models.Payment{}
	var status string
	var metadata []byte
	err := row.Scan(&payment.ID, &payment.InvoiceID, &payment.Amount, &payment.Method,
		&payment.Reference, &status, &metadata, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return nil, err
	}
	payment.Status = models.PaymentStatus(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &payment.Metadata); err != nil {
			return nil, fmt.Errorf("decode payment metadata: %w", err)
		}
	}
	return payment, nil
}

func (r *paymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	metadata, err := json.Marshal(payment.Metadata)
	if err != nil {
		return fmt.Errorf("encode payment metadata: %w", err)
	}

	query := `
		INSERT INTO payments (id, invoice_id, amount, method, reference, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	_, err = conn(ctx, r.db).Exec(ctx, query, payment.ID, payment.InvoiceID, payment.Amount,
		payment.Method, payment.Reference, string(payment.Status), metadata)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepo) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = $1`
	return scanPayment(conn(ctx, r.db).QueryRow(ctx, query, reference))
}

// GetByReferenceForUpdate locks the payment row until the surrounding transaction ends.
func (r *paymentRepo) GetByReferenceForUpdate(ctx context.Context, reference string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = $1 FOR UPDATE`
	return scanPayment(conn(ctx, r.db).QueryRow(ctx, query, reference))
}

func (r *paymentRepo) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = $1 ORDER BY created_at DESC`
	rows, err := conn(ctx, r.db).Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus, metadata models.PaymentMetadata) error {
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode payment metadata: %w", err)
	}
	query := `UPDATE payments SET status = $1, metadata = $2, updated_at = NOW() WHERE id = $3`
	_, err = conn(ctx, r.db).Exec(ctx, query, string(status), encoded, id)
	return err
}

func (r *paymentRepo) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata models.PaymentMetadata) error {
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode payment metadata: %w", err)
	}
	query := `UPDATE payments SET metadata = $1, updated_at = NOW() WHERE id = $2`
	_, err = conn(ctx, r.db).Exec(ctx, query, encoded, id)
	return err
}

// CancelPending cancels every pending attempt of the given method for an invoice.
func (r *paymentRepo) CancelPending(ctx context.Context, invoiceID uuid.UUID, method string) (int64, error) {
	query := `
		UPDATE payments
		SET status = 'cancelled', updated_at = NOW()
		WHERE invoice_id = $1 AND method = $2 AND status = 'pending'
	`
	tag, err := conn(ctx, r.db).Exec(ctx, query, invoiceID, method)
	if err != nil {
		return 0, fmt.Errorf("cancel pending payments: %w", err)
	}
	return tag.RowsAffected(), nil
}
