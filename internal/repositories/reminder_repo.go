package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"momoinvoice/internal/models"

	"github.com/google/uuid"
)

// ErrDuplicateSend is returned by Append when the pair already has a sent entry.
var ErrDuplicateSend = errors.New("reminder already sent for invoice and template")

type ReminderRepository interface {
	ListCollectibleTargets(ctx context.Context, businessID uuid.UUID) ([]*models.ReminderTarget, error)
	GetTarget(ctx context.Context, businessID, invoiceID uuid.UUID) (*models.ReminderTarget, error)
	HasSent(ctx context.Context, invoiceID, templateID uuid.UUID) (bool, error)
	Append(ctx context.Context, entry *models.ReminderLogEntry) error
	ListHistory(ctx context.Context, businessID uuid.UUID, limit int) ([]*models.ReminderHistoryEntry, error)
}

type reminderRepo struct {
	db Pool
}

func NewReminderRepo(db Pool) ReminderRepository {
	return &reminderRepo{db: db}
}

const reminderTargetQuery = `
		SELECT i.id, i.business_id, i.invoice_number, i.status, i.currency, i.total, i.due_date,
			c.full_name, c.email, c.phone, c.whatsapp_number,
			b.name, b.email, b.phone
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		JOIN businesses b ON b.id = i.business_id
	`

func scanReminderTarget(row rowScanner) (*models.ReminderTarget, error) {
	target := &models.ReminderTarget{}
	var status string
	err := row.Scan(&target.InvoiceID, &target.BusinessID, &target.InvoiceNumber, &status,
		&target.Currency, &target.Total, &target.DueDate,
		&target.ClientName, &target.ClientEmail, &target.ClientPhone, &target.ClientWhatsapp,
		&target.BusinessName, &target.BusinessEmail, &target.BusinessPhone)
	if err != nil {
		return nil, err
	}
	target.Status = models.NormalizeInvoiceStatus(models.InvoiceStatus(status))
	return target, nil
}

// ListCollectibleTargets returns the business's unpaid sent invoices that have a due date.
func (r *reminderRepo) ListCollectibleTargets(ctx context.Context, businessID uuid.UUID) ([]*models.ReminderTarget, error) {
	query := reminderTargetQuery + `
		WHERE i.business_id = $1 AND i.status IN ('sent', 'overdue') AND i.due_date IS NOT NULL
		ORDER BY i.due_date, i.id
	`
	rows, err := conn(ctx, r.db).Query(ctx, query, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []*models.ReminderTarget
	for rows.Next() {
		target, err := scanReminderTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

func (r *reminderRepo) GetTarget(ctx context.Context, businessID, invoiceID uuid.UUID) (*models.ReminderTarget, error) {
	query := reminderTargetQuery + ` WHERE i.business_id = $1 AND i.id = $2`
	return scanReminderTarget(conn(ctx, r.db).QueryRow(ctx, query, businessID, invoiceID))
}

// HasSent reports whether a successful send exists for the pair. Failed entries are ignored.
func (r *reminderRepo) HasSent(ctx context.Context, invoiceID, templateID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reminders
			WHERE invoice_id = $1 AND template_id = $2 AND status = 'sent'
		)
	`
	var exists bool
	if err := conn(ctx, r.db).QueryRow(ctx, query, invoiceID, templateID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Append writes a log entry. The partial unique index on sent entries turns a
// second successful send for the same pair into ErrDuplicateSend.
func (r *reminderRepo) Append(ctx context.Context, entry *models.ReminderLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	var payload []byte
	if entry.Payload != (models.ReminderPayload{}) {
		encoded, err := json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("encode reminder payload: %w", err)
		}
		payload = encoded
	}

	query := `
		INSERT INTO reminders (id, invoice_id, template_id, channel, status, scheduled_at, sent_at, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING created_at
	`
	err := conn(ctx, r.db).QueryRow(ctx, query, entry.ID, entry.InvoiceID, entry.TemplateID,
		string(entry.Channel), string(entry.Status), entry.ScheduledAt, entry.SentAt, payload,
	).Scan(&entry.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicateSend
		}
		return fmt.Errorf("insert reminder log: %w", err)
	}
	return nil
}

func (r *reminderRepo) ListHistory(ctx context.Context, businessID uuid.UUID, limit int) ([]*models.ReminderHistoryEntry, error) {
	query := `
		SELECT r.id, r.invoice_id, r.template_id, r.channel, r.status, r.scheduled_at, r.sent_at,
			r.payload, r.created_at, i.invoice_number, t.label
		FROM reminders r
		JOIN invoices i ON i.id = r.invoice_id
		JOIN reminder_templates t ON t.id = r.template_id
		WHERE i.business_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2
	`
	rows, err := conn(ctx, r.db).Query(ctx, query, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*models.ReminderHistoryEntry
	for rows.Next() {
		entry := &models.ReminderHistoryEntry{}
		var channel, status string
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.InvoiceID, &entry.TemplateID, &channel, &status,
			&entry.ScheduledAt, &entry.SentAt, &payload, &entry.CreatedAt,
			&entry.InvoiceNumber, &entry.TemplateLabel); err != nil {
			return nil, err
		}
		entry.Channel = models.ReminderChannel(channel)
		entry.Status = models.ReminderStatus(status)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Payload); err != nil {
				return nil, fmt.Errorf("decode reminder payload: %w", err)
			}
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}
