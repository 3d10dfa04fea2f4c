package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"momoinvoice/internal/models"

	"github.com/google/uuid"
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.Invoice, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	GetForUpdate(ctx context.Context, businessID, id uuid.UUID) (*models.Invoice, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, businessID uuid.UUID, filter models.InvoiceFilter) ([]*models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error
	ReplaceLineItems(ctx context.Context, invoiceID uuid.UUID, items []models.InvoiceLineItem) error
	ListLineItems(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceLineItem, error)
	NextSequentialNumber(ctx context.Context, businessID uuid.UUID) (int, error)
}

const invoiceColumns = `id, business_id, client_id, status, currency, issue_date, due_date,
		subtotal, tax_total, discount_total, total, invoice_number, sequential_number,
		payment_method_id, notes, payment_instructions, payable_to, last_shared_at, paid_at,
		created_at, updated_at`

type invoiceRepo struct {
	db Pool
}

func NewInvoiceRepo(db Pool) InvoiceRepository {
	return &invoiceRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	invoice := &models.Invoice{}
	var status string
	err := row.Scan(
		&invoice.ID, &invoice.BusinessID, &invoice.ClientID, &status, &invoice.Currency,
		&invoice.IssueDate, &invoice.DueDate, &invoice.Subtotal, &invoice.TaxTotal,
		&invoice.DiscountTotal, &invoice.Total, &invoice.InvoiceNumber, &invoice.SequentialNumber,
		&invoice.PaymentMethodID, &invoice.Notes, &invoice.PaymentInstructions, &invoice.PayableTo,
		&invoice.LastSharedAt, &invoice.PaidAt, &invoice.CreatedAt, &invoice.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	invoice.Status = models.NormalizeInvoiceStatus(models.InvoiceStatus(status))
	return invoice, nil
}

// Create inserts the invoice and its line items. Call it inside a transaction
// together with NextSequentialNumber.
func (r *invoiceRepo) Create(ctx context.Context, invoice *models.Invoice) error {
	query := `
		INSERT INTO invoices (id, business_id, client_id, status, currency, issue_date, due_date,
			subtotal, tax_total, discount_total, total, invoice_number, sequential_number,
			payment_method_id, notes, payment_instructions, payable_to, last_shared_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := conn(ctx, r.db).QueryRow(ctx, query,
		invoice.ID, invoice.BusinessID, invoice.ClientID, string(invoice.Status), invoice.Currency,
		invoice.IssueDate, invoice.DueDate, invoice.Subtotal, invoice.TaxTotal, invoice.DiscountTotal,
		invoice.Total, invoice.InvoiceNumber, invoice.SequentialNumber, invoice.PaymentMethodID,
		invoice.Notes, invoice.PaymentInstructions, invoice.PayableTo, invoice.LastSharedAt,
	).Scan(&invoice.CreatedAt, &invoice.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}

	return r.insertLineItems(ctx, invoice.ID, invoice.LineItems)
}

func (r *invoiceRepo) GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE business_id = $1 AND id = $2`
	invoice, err := scanInvoice(conn(ctx, r.db).QueryRow(ctx, query, businessID, id))
	if err != nil {
		return nil, err
	}
	if invoice.LineItems, err = r.ListLineItems(ctx, invoice.ID); err != nil {
		return nil, err
	}
	return invoice, nil
}

// FindByID loads an invoice without business scoping, for payer-facing flows.
func (r *invoiceRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return scanInvoice(conn(ctx, r.db).QueryRow(ctx, query, id))
}

// GetForUpdate locks the invoice row until the surrounding transaction ends.
func (r *invoiceRepo) GetForUpdate(ctx context.Context, businessID, id uuid.UUID) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE business_id = $1 AND id = $2 FOR UPDATE`
	invoice, err := scanInvoice(conn(ctx, r.db).QueryRow(ctx, query, businessID, id))
	if err != nil {
		return nil, err
	}
	if invoice.LineItems, err = r.ListLineItems(ctx, invoice.ID); err != nil {
		return nil, err
	}
	return invoice, nil
}

// LockByID locks the invoice row without loading line items.
func (r *invoiceRepo) LockByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`
	return scanInvoice(conn(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *invoiceRepo) List(ctx context.Context, businessID uuid.UUID, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	conditions := []string{"business_id = $1"}
	args := []any{businessID}

	asOf := filter.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	today := models.StartOfDay(asOf)

	if filter.Status != nil {
		switch *filter.Status {
		case models.InvoiceStatusOverdue:
			args = append(args, today)
			conditions = append(conditions, fmt.Sprintf("status IN ('sent', 'overdue') AND due_date < $%d", len(args)))
		case models.InvoiceStatusSent:
			args = append(args, today)
			conditions = append(conditions, fmt.Sprintf("status IN ('sent', 'overdue') AND (due_date IS NULL OR due_date >= $%d)", len(args)))
		default:
			args = append(args, string(*filter.Status))
			conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
		}
	}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)))
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM invoices
		WHERE %s
		ORDER BY sequential_number DESC
		LIMIT $%d OFFSET $%d
	`, invoiceColumns, strings.Join(conditions, " AND "), len(args)-1, len(args))

	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// Update persists every mutable column. invoice_number and sequential_number never change.
func (r *invoiceRepo) Update(ctx context.Context, invoice *models.Invoice) error {
	query := `
		UPDATE invoices
		SET client_id = $1, status = $2, currency = $3, issue_date = $4, due_date = $5,
			subtotal = $6, tax_total = $7, discount_total = $8, total = $9,
			payment_method_id = $10, notes = $11, payment_instructions = $12, payable_to = $13,
			last_shared_at = $14, paid_at = $15, updated_at = NOW()
		WHERE business_id = $16 AND id = $17
	`
	tag, err := conn(ctx, r.db).Exec(ctx, query,
		invoice.ClientID, string(invoice.Status), invoice.Currency, invoice.IssueDate, invoice.DueDate,
		invoice.Subtotal, invoice.TaxTotal, invoice.DiscountTotal, invoice.Total,
		invoice.PaymentMethodID, invoice.Notes, invoice.PaymentInstructions, invoice.PayableTo,
		invoice.LastSharedAt, invoice.PaidAt, invoice.BusinessID, invoice.ID,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update invoice %s: no rows affected", invoice.ID)
	}
	return nil
}

// MarkPaid settles the invoice unless it is already paid. The row should be locked by the caller.
func (r *invoiceRepo) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	query := `
		UPDATE invoices
		SET status = 'paid', paid_at = $1, updated_at = NOW()
		WHERE id = $2 AND status <> 'paid'
	`
	_, err := conn(ctx, r.db).Exec(ctx, query, paidAt, id)
	return err
}

func (r *invoiceRepo) ReplaceLineItems(ctx context.Context, invoiceID uuid.UUID, items []models.InvoiceLineItem) error {
	if _, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM invoice_line_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("delete line items: %w", err)
	}
	return r.insertLineItems(ctx, invoiceID, items)
}

func (r *invoiceRepo) insertLineItems(ctx context.Context, invoiceID uuid.UUID, items []models.InvoiceLineItem) error {
	query := `
		INSERT INTO invoice_line_items (id, invoice_id, description, quantity, unit_price, tax_rate, discount, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for i := range items {
		item := &items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.InvoiceID = invoiceID
		item.SortOrder = i
		if _, err := conn(ctx, r.db).Exec(ctx, query,
			item.ID, invoiceID, item.Description, item.Quantity, item.UnitPrice, item.TaxRate, item.Discount, item.SortOrder,
		); err != nil {
			return fmt.Errorf("insert line item %d: %w", i, err)
		}
	}
	return nil
}

func (r *invoiceRepo) ListLineItems(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceLineItem, error) {
	query := `
		SELECT id, invoice_id, description, quantity, unit_price, tax_rate, discount, sort_order
		FROM invoice_line_items
		WHERE invoice_id = $1
		ORDER BY sort_order
	`
	rows, err := conn(ctx, r.db).Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.InvoiceLineItem
	for rows.Next() {
		var item models.InvoiceLineItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &item.Quantity,
			&item.UnitPrice, &item.TaxRate, &item.Discount, &item.SortOrder); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NextSequentialNumber reserves the next invoice sequence for a business. The
// counter row stays locked until the caller's transaction ends, so concurrent
// creators for one business serialize here and a rollback releases the number.
func (r *invoiceRepo) NextSequentialNumber(ctx context.Context, businessID uuid.UUID) (int, error) {
	query := `
		INSERT INTO invoice_sequences (business_id, last_number, updated_at)
		VALUES ($1, (SELECT COALESCE(MAX(sequential_number), 0) + 1 FROM invoices WHERE business_id = $1), NOW())
		ON CONFLICT (business_id) DO UPDATE
		SET last_number = GREATEST(invoice_sequences.last_number,
				(SELECT COALESCE(MAX(sequential_number), 0) FROM invoices WHERE business_id = $1)) + 1,
			updated_at = NOW()
		RETURNING last_number
	`
	var next int
	if err := conn(ctx, r.db).QueryRow(ctx, query, businessID).Scan(&next); err != nil {
		return 0, fmt.Errorf("next sequential number: %w", err)
	}
	return next, nil
}
