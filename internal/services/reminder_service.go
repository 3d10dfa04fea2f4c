package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"momoinvoice/internal/common"
	"momoinvoice/internal/logger"
	"momoinvoice/internal/models"
	"momoinvoice/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// ReminderServiceInterface schedules, sends and records payment reminders
type ReminderServiceInterface interface {
	RunDue(ctx context.Context, opts RunOptions) (*models.ReminderRunResult, error)
	SendOne(ctx context.Context, businessID, invoiceID, templateID uuid.UUID, test bool) (*models.ReminderResult, error)

	CreateTemplate(ctx context.Context, businessID uuid.UUID, input TemplateInput) (*models.ReminderTemplate, error)
	ListTemplates(ctx context.Context, businessID uuid.UUID) ([]*models.ReminderTemplate, error)
	UpdateTemplate(ctx context.Context, businessID, templateID uuid.UUID, patch TemplatePatch) (*models.ReminderTemplate, error)
	DeleteTemplate(ctx context.Context, businessID, templateID uuid.UUID) error

	History(ctx context.Context, businessID uuid.UUID, limit int) ([]*models.ReminderHistoryEntry, error)
}

// RunOptions scopes a reminder run. A nil BusinessID covers every business.
// Test renders and validates each due reminder without dispatching or logging it.
type RunOptions struct {
	BusinessID *uuid.UUID
	Test       bool
}

// PairLocker guards one (invoice, template) pair across processes.
type PairLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

type TemplateInput struct {
	Label      string                 `json:"label"`
	OffsetDays *int                   `json:"offset_days"`
	Channel    models.ReminderChannel `json:"channel"`
	Enabled    *bool                  `json:"enabled,omitempty"`
}

type TemplatePatch struct {
	Label      *string                 `json:"label,omitempty"`
	OffsetDays *int                    `json:"offset_days,omitempty"`
	Channel    *models.ReminderChannel `json:"channel,omitempty"`
	Enabled    *bool                   `json:"enabled,omitempty"`
}

const (
	maxTemplateLabelLength = 100
	maxOffsetDays          = 365
	defaultHistoryLimit    = 20
	maxHistoryLimit        = 100
)

type reminderService struct {
	templateRepo repositories.ReminderTemplateRepository
	reminderRepo repositories.ReminderRepository
	notifier     NotificationService
	locker       PairLocker
	lockTTL      time.Duration
	logger       zerolog.Logger
	now          func() time.Time
}

// NewReminderService creates a new reminder service. locker may be nil.
func NewReminderService(
	templateRepo repositories.ReminderTemplateRepository,
	reminderRepo repositories.ReminderRepository,
	notifier NotificationService,
	locker PairLocker,
	lockTTL time.Duration,
) ReminderServiceInterface {
	return &reminderService{
		templateRepo: templateRepo,
		reminderRepo: reminderRepo,
		notifier:     notifier,
		locker:       locker,
		lockTTL:      lockTTL,
		logger:       logger.WithComponent("reminder_service"),
		now:          time.Now,
	}
}

// RunDue sends every due, not yet sent reminder. Failures are isolated per
// pair and reported in the result; only a template load failure aborts the run.
func (s *reminderService) RunDue(ctx context.Context, opts RunOptions) (*models.ReminderRunResult, error) {
	result := &models.ReminderRunResult{Results: []models.ReminderResult{}}

	templates, err := s.templateRepo.ListEnabled(ctx, opts.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder templates: %w", err)
	}
	if len(templates) == 0 {
		return result, nil
	}

	byBusiness := lo.GroupBy(templates, func(t *models.ReminderTemplate) uuid.UUID {
		return t.BusinessID
	})
	businessIDs := lo.Keys(byBusiness)
	sort.Slice(businessIDs, func(i, j int) bool {
		return businessIDs[i].String() < businessIDs[j].String()
	})

	now := s.now()
	for _, businessID := range businessIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		targets, err := s.reminderRepo.ListCollectibleTargets(ctx, businessID)
		if err != nil {
			s.logger.Error().Err(err).
				Str("business_id", businessID.String()).
				Msg("failed to load reminder targets")
			continue
		}

		for _, target := range targets {
			if target.DueDate == nil {
				continue
			}
			for _, tmpl := range byBusiness[businessID] {
				scheduledAt := tmpl.ScheduledAt(*target.DueDate)
				if scheduledAt.After(now) {
					continue
				}
				res := s.dispatch(ctx, target, tmpl, scheduledAt, opts.Test)
				if res == nil || res.Skipped {
					continue
				}
				result.Add(*res)
			}
		}
	}

	s.logger.Info().
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Bool("test", opts.Test).
		Msg("reminder run finished")
	return result, nil
}

// SendOne sends a single template for a single invoice regardless of its
// scheduled time. A pair that was already sent successfully is skipped.
func (s *reminderService) SendOne(ctx context.Context, businessID, invoiceID, templateID uuid.UUID, test bool) (*models.ReminderResult, error) {
	tmpl, err := s.templateRepo.GetByID(ctx, businessID, templateID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, common.NewNotFoundError("Reminder template")
		}
		return nil, fmt.Errorf("failed to load reminder template: %w", err)
	}
	if !tmpl.Enabled {
		return nil, common.NewNotFoundError("Reminder template")
	}

	target, err := s.reminderRepo.GetTarget(ctx, businessID, invoiceID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, common.NewNotFoundError("Invoice")
		}
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if target.Status != models.InvoiceStatusSent {
		return nil, common.NewInvalidStateError("Reminders can only be sent for unpaid invoices that have been shared.")
	}

	scheduledAt := s.now().UTC()
	if target.DueDate != nil {
		scheduledAt = tmpl.ScheduledAt(*target.DueDate)
	}

	res := s.dispatch(ctx, target, tmpl, scheduledAt, test)
	if res == nil {
		res = &models.ReminderResult{
			InvoiceID:   target.InvoiceID,
			TemplateID:  tmpl.ID,
			Channel:     tmpl.Channel,
			Status:      models.ReminderStatusSent,
			ScheduledAt: scheduledAt,
			Test:        test,
			Skipped:     true,
		}
	}
	return res, nil
}

// errSentNotRecorded prefixes the result error of a delivered reminder whose
// log entry could not be written.
const errSentNotRecorded = "reminder sent but not recorded"

func pairLockKey(invoiceID, templateID uuid.UUID) string {
	return fmt.Sprintf("reminder:%s:%s", invoiceID, templateID)
}

// dispatch sends one pair and records the outcome. It returns nil when the
// pair is already sent or being sent by another worker.
func (s *reminderService) dispatch(ctx context.Context, target *models.ReminderTarget, tmpl *models.ReminderTemplate, scheduledAt time.Time, test bool) *models.ReminderResult {
	log := s.logger.With().
		Str("invoice_id", target.InvoiceID.String()).
		Str("template_id", tmpl.ID.String()).
		Str("channel", string(tmpl.Channel)).
		Logger()

	if s.locker != nil && !test {
		key := pairLockKey(target.InvoiceID, tmpl.ID)
		token, ok, err := s.locker.AcquireLock(ctx, key, s.lockTTL)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("pair lock unavailable, relying on database guard")
		case !ok:
			log.Debug().Msg("pair is being sent by another worker")
			return nil
		default:
			defer func() {
				if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn().Err(err).Msg("failed to release pair lock")
				}
			}()
		}
	}

	res := &models.ReminderResult{
		InvoiceID:   target.InvoiceID,
		TemplateID:  tmpl.ID,
		Channel:     tmpl.Channel,
		ScheduledAt: scheduledAt,
		Test:        test,
	}

	sent, err := s.reminderRepo.HasSent(ctx, target.InvoiceID, tmpl.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to check reminder log")
		res.Status = models.ReminderStatusFailed
		res.Error = "failed to check reminder history"
		return res
	}
	if sent {
		return nil
	}

	notification, sendErr := s.notifier.SendReminder(ctx, target, tmpl, test)
	if sendErr != nil {
		res.Status = models.ReminderStatusFailed
		res.Error = sendErr.Error()
		log.Warn().Err(sendErr).Msg("reminder send failed")
	} else {
		res.Status = models.ReminderStatusSent
		res.MessageID = notification.MessageID
	}

	if test {
		return res
	}

	entry := &models.ReminderLogEntry{
		InvoiceID:   target.InvoiceID,
		TemplateID:  tmpl.ID,
		Channel:     tmpl.Channel,
		Status:      res.Status,
		ScheduledAt: scheduledAt,
		Payload: models.ReminderPayload{
			Error:     res.Error,
			MessageID: res.MessageID,
		},
	}
	if res.Status == models.ReminderStatusSent {
		sentAt := s.now().UTC()
		entry.SentAt = &sentAt
	}

	err = s.reminderRepo.Append(ctx, entry)
	if err != nil && !errors.Is(err, repositories.ErrDuplicateSend) {
		log.Warn().Err(err).Msg("failed to record reminder, retrying once")
		err = s.reminderRepo.Append(ctx, entry)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateSend) {
			log.Warn().Msg("another worker recorded this reminder first")
			return nil
		}
		if res.Status == models.ReminderStatusSent {
			log.Error().Err(err).Str("message_id", res.MessageID).
				Msg("reminder delivered but not recorded, pair may be sent again")
			res.Error = fmt.Sprintf("%s: %v", errSentNotRecorded, err)
			return res
		}
		log.Error().Err(err).Msg("failed to record reminder failure")
		return res
	}
	res.LogID = &entry.ID
	return res
}

func validateTemplate(tmpl *models.ReminderTemplate) error {
	details := map[string]string{}
	if tmpl.Label == "" {
		details["label"] = "label is required"
	} else if len(tmpl.Label) > maxTemplateLabelLength {
		details["label"] = fmt.Sprintf("label cannot exceed %d characters", maxTemplateLabelLength)
	}
	if tmpl.OffsetDays < -maxOffsetDays || tmpl.OffsetDays > maxOffsetDays {
		details["offset_days"] = fmt.Sprintf("offset must be between -%d and %d days", maxOffsetDays, maxOffsetDays)
	}
	if !tmpl.Channel.Valid() {
		details["channel"] = "channel must be one of email, sms, whatsapp"
	}
	if len(details) > 0 {
		return common.NewValidationErrors(details)
	}
	return nil
}

func (s *reminderService) CreateTemplate(ctx context.Context, businessID uuid.UUID, input TemplateInput) (*models.ReminderTemplate, error) {
	if input.OffsetDays == nil {
		return nil, common.NewValidationError("offset_days", "offset_days is required")
	}

	tmpl := &models.ReminderTemplate{
		ID:         uuid.New(),
		BusinessID: businessID,
		Label:      strings.TrimSpace(input.Label),
		OffsetDays: *input.OffsetDays,
		Channel:    models.ReminderChannel(strings.ToLower(string(input.Channel))),
		Enabled:    input.Enabled == nil || *input.Enabled,
	}
	if err := validateTemplate(tmpl); err != nil {
		return nil, err
	}

	if err := s.templateRepo.Create(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("failed to create reminder template: %w", err)
	}
	return tmpl, nil
}

func (s *reminderService) ListTemplates(ctx context.Context, businessID uuid.UUID) ([]*models.ReminderTemplate, error) {
	templates, err := s.templateRepo.List(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder templates: %w", err)
	}
	return templates, nil
}

func (s *reminderService) UpdateTemplate(ctx context.Context, businessID, templateID uuid.UUID, patch TemplatePatch) (*models.ReminderTemplate, error) {
	tmpl, err := s.templateRepo.GetByID(ctx, businessID, templateID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, common.NewNotFoundError("Reminder template")
		}
		return nil, fmt.Errorf("failed to load reminder template: %w", err)
	}

	if patch.Label != nil {
		tmpl.Label = strings.TrimSpace(*patch.Label)
	}
	if patch.OffsetDays != nil {
		tmpl.OffsetDays = *patch.OffsetDays
	}
	if patch.Channel != nil {
		tmpl.Channel = models.ReminderChannel(strings.ToLower(string(*patch.Channel)))
	}
	if patch.Enabled != nil {
		tmpl.Enabled = *patch.Enabled
	}
	if err := validateTemplate(tmpl); err != nil {
		return nil, err
	}

	if err := s.templateRepo.Update(ctx, tmpl); err != nil {
		if repositories.IsNotFound(err) {
			return nil, common.NewNotFoundError("Reminder template")
		}
		return nil, fmt.Errorf("failed to update reminder template: %w", err)
	}
	return tmpl, nil
}

func (s *reminderService) DeleteTemplate(ctx context.Context, businessID, templateID uuid.UUID) error {
	if err := s.templateRepo.Delete(ctx, businessID, templateID); err != nil {
		if repositories.IsNotFound(err) {
			return common.NewNotFoundError("Reminder template")
		}
		return fmt.Errorf("failed to delete reminder template: %w", err)
	}
	return nil
}

func (s *reminderService) History(ctx context.Context, businessID uuid.UUID, limit int) ([]*models.ReminderHistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	history, err := s.reminderRepo.ListHistory(ctx, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder history: %w", err)
	}
	return history, nil
}
