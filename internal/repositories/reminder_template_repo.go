package repositories

import (
	"context"
	"fmt"

	"momoinvoice/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ReminderTemplateRepository interface {
	Create(ctx context.Context, template *models.ReminderTemplate) error
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.ReminderTemplate, error)
	List(ctx context.Context, businessID uuid.UUID) ([]*models.ReminderTemplate, error)
	// ListEnabled returns enabled templates for one business, or for all businesses when businessID is nil.
	ListEnabled(ctx context.Context, businessID *uuid.UUID) ([]*models.ReminderTemplate, error)
	Update(ctx context.Context, template *models.ReminderTemplate) error
	Delete(ctx context.Context, businessID, id uuid.UUID) error
}

const reminderTemplateColumns = `id, business_id, label, offset_days, channel, enabled, created_at, updated_at`

type reminderTemplateRepo struct {
	db Pool
}

func NewReminderTemplateRepo(db Pool) ReminderTemplateRepository {
	return &reminderTemplateRepo{db: db}
}

func scanReminderTemplate(row rowScanner) (*models.ReminderTemplate, error) {
	template := &models.ReminderTemplate{}
	var channel string
	if err := row.Scan(&template.ID, &template.BusinessID, &template.Label, &template.OffsetDays,
		&channel, &template.Enabled, &template.CreatedAt, &template.UpdatedAt); err != nil {
		return nil, err
	}
	template.Channel = models.ReminderChannel(channel)
	return template, nil
}

func collectTemplates(rows pgx.Rows) ([]*models.ReminderTemplate, error) {
	defer rows.Close()

	var templates []*models.ReminderTemplate
	for rows.Next() {
		template, err := scanReminderTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}
	return templates, rows.Err()
}

func (r *reminderTemplateRepo) Create(ctx context.Context, template *models.ReminderTemplate) error {
	query := `
		INSERT INTO reminder_templates (id, business_id, label, offset_days, channel, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := conn(ctx, r.db).QueryRow(ctx, query, template.ID, template.BusinessID, template.Label,
		template.OffsetDays, string(template.Channel), template.Enabled,
	).Scan(&template.CreatedAt, &template.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert reminder template: %w", err)
	}
	return nil
}

func (r *reminderTemplateRepo) GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.ReminderTemplate, error) {
	query := `SELECT ` + reminderTemplateColumns + ` FROM reminder_templates WHERE business_id = $1 AND id = $2`
	return scanReminderTemplate(conn(ctx, r.db).QueryRow(ctx, query, businessID, id))
}

func (r *reminderTemplateRepo) List(ctx context.Context, businessID uuid.UUID) ([]*models.ReminderTemplate, error) {
	query := `SELECT ` + reminderTemplateColumns + ` FROM reminder_templates WHERE business_id = $1 ORDER BY offset_days, label`
	rows, err := conn(ctx, r.db).Query(ctx, query, businessID)
	if err != nil {
		return nil, err
	}
	return collectTemplates(rows)
}

func (r *reminderTemplateRepo) ListEnabled(ctx context.Context, businessID *uuid.UUID) ([]*models.ReminderTemplate, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if businessID != nil {
		query := `SELECT ` + reminderTemplateColumns + ` FROM reminder_templates WHERE enabled = true AND business_id = $1 ORDER BY offset_days, id`
		rows, err = conn(ctx, r.db).Query(ctx, query, *businessID)
	} else {
		query := `SELECT ` + reminderTemplateColumns + ` FROM reminder_templates WHERE enabled = true ORDER BY business_id, offset_days, id`
		rows, err = conn(ctx, r.db).Query(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	return collectTemplates(rows)
}

func (r *reminderTemplateRepo) Update(ctx context.Context, template *models.ReminderTemplate) error {
	query := `
		UPDATE reminder_templates
		SET label = $1, offset_days = $2, channel = $3, enabled = $4, updated_at = NOW()
		WHERE business_id = $5 AND id = $6
	`
	tag, err := conn(ctx, r.db).Exec(ctx, query, template.Label, template.OffsetDays,
		string(template.Channel), template.Enabled, template.BusinessID, template.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *reminderTemplateRepo) Delete(ctx context.Context, businessID, id uuid.UUID) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM reminder_templates WHERE business_id = $1 AND id = $2`, businessID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
