package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"momoinvoice/internal/common"
	"momoinvoice/internal/config"
	"momoinvoice/internal/logger"
	"momoinvoice/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// NotificationService delivers reminders over the configured channels
type NotificationService interface {
	SendReminder(ctx context.Context, target *models.ReminderTarget, tmpl *models.ReminderTemplate, test bool) (*NotificationResult, error)
}

type NotificationResult struct {
	Channel   models.ReminderChannel `json:"channel"`
	Recipient string                 `json:"recipient"`
	Subject   string                 `json:"subject,omitempty"`
	MessageID string                 `json:"message_id,omitempty"`
	Test      bool                   `json:"test,omitempty"`
}

// outboundMessage is one rendered message ready for a provider.
type outboundMessage struct {
	To      string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
	Tags    map[string]string
}

// channelSender dispatches a rendered message and returns the provider message id.
type channelSender interface {
	Send(ctx context.Context, msg outboundMessage) (string, error)
}

var (
	errNoEmail    = errors.New("client has no email address")
	errNoPhone    = errors.New("client has no phone number")
	errNoWhatsApp = errors.New("client has no WhatsApp number")
)

type notificationService struct {
	appURL  string
	senders map[models.ReminderChannel]channelSender
	logger  zerolog.Logger
}

// NewNotificationService wires the email, SMS and WhatsApp providers
func NewNotificationService(cfg config.NotificationConfig, appURL string) NotificationService {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return newNotificationService(appURL, map[models.ReminderChannel]channelSender{
		models.ReminderChannelEmail: &resendSender{
			apiKey:  cfg.ResendAPIKey,
			baseURL: cfg.ResendBaseURL,
			from:    cfg.FromEmail,
			http:    httpClient,
		},
		models.ReminderChannelSMS: &webhookSender{
			channel: models.ReminderChannelSMS,
			url:     cfg.SMSAPIURL,
			token:   cfg.SMSAPIToken,
			http:    httpClient,
		},
		models.ReminderChannelWhatsApp: &webhookSender{
			channel: models.ReminderChannelWhatsApp,
			url:     cfg.WhatsAppAPIURL,
			token:   cfg.WhatsAppToken,
			http:    httpClient,
		},
	})
}

func newNotificationService(appURL string, senders map[models.ReminderChannel]channelSender) *notificationService {
	return &notificationService{
		appURL:  strings.TrimRight(appURL, "/"),
		senders: senders,
		logger:  logger.WithComponent("notification_service"),
	}
}

// SendReminder renders and sends one reminder. In test mode the message is
// rendered and validated but never handed to a provider.
func (s *notificationService) SendReminder(ctx context.Context, target *models.ReminderTarget, tmpl *models.ReminderTemplate, test bool) (*NotificationResult, error) {
	channel := tmpl.Channel
	sender, ok := s.senders[channel]
	if !ok {
		return nil, common.NewNotificationError(string(channel), fmt.Errorf("unknown channel: %s", channel))
	}

	data := s.reminderData(target, tmpl, test)
	msg := outboundMessage{
		ReplyTo: common.SafeString(target.BusinessEmail),
		Tags: map[string]string{
			"category":   "payment-reminder",
			"invoice-id": target.InvoiceID.String(),
		},
	}

	switch channel {
	case models.ReminderChannelEmail:
		msg.To = strings.TrimSpace(common.SafeString(target.ClientEmail))
		if msg.To == "" {
			return nil, common.NewNotificationError(string(channel), errNoEmail)
		}
		msg.Subject = ReminderSubject(target.InvoiceNumber, tmpl.OffsetDays)
		html, err := renderHTML(reminderEmailTemplate, data)
		if err != nil {
			return nil, err
		}
		msg.HTML = html
	case models.ReminderChannelSMS:
		msg.To = strings.TrimSpace(common.SafeString(target.ClientPhone))
		if msg.To == "" {
			return nil, common.NewNotificationError(string(channel), errNoPhone)
		}
	case models.ReminderChannelWhatsApp:
		msg.To = strings.TrimSpace(common.FirstNonEmpty(common.SafeString(target.ClientWhatsapp), common.SafeString(target.ClientPhone)))
		if msg.To == "" {
			return nil, common.NewNotificationError(string(channel), errNoWhatsApp)
		}
	}
	if msg.Text == "" {
		text, err := renderText(reminderTextTemplate, data)
		if err != nil {
			return nil, err
		}
		msg.Text = text
	}

	result := &NotificationResult{Channel: channel, Recipient: msg.To, Subject: msg.Subject, Test: test}
	if test {
		s.logger.Info().
			Str("channel", string(channel)).
			Str("invoice_id", target.InvoiceID.String()).
			Msg("test mode: reminder rendered, not sent")
		return result, nil
	}

	messageID, err := sender.Send(ctx, msg)
	if err != nil {
		return nil, common.NewNotificationError(string(channel), err)
	}
	result.MessageID = messageID
	return result, nil
}

// ReminderSubject is the email subject, flagged when the reminder fires after the due date.
func ReminderSubject(invoiceNumber string, offsetDays int) string {
	subject := fmt.Sprintf("Payment Reminder - Invoice #%s", invoiceNumber)
	if offsetDays > 0 {
		return "⚠️ OVERDUE: " + subject
	}
	return subject
}

// DaysText phrases the template offset relative to the due date.
func DaysText(offsetDays int) string {
	switch {
	case offsetDays == 0:
		return "is due today"
	case offsetDays < 0:
		return fmt.Sprintf("is due in %s", pluralDays(-offsetDays))
	default:
		return fmt.Sprintf("is %s overdue", pluralDays(offsetDays))
	}
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

// FormatAmount renders a total with the currency marker used on reminders.
func FormatAmount(currency string, amount decimal.Decimal) string {
	if currency == "" || currency == models.DefaultCurrency {
		return "GH₵ " + amount.StringFixed(2)
	}
	return currency + " " + amount.StringFixed(2)
}

type reminderData struct {
	Test          bool
	Label         string
	BusinessName  string
	BusinessEmail string
	BusinessPhone string
	ClientName    string
	InvoiceNumber string
	DaysText      string
	DueDate       string
	StatusLabel   string
	Overdue       bool
	Amount        string
	InvoiceURL    string
}

func (s *notificationService) reminderData(target *models.ReminderTarget, tmpl *models.ReminderTemplate, test bool) reminderData {
	statusLabel := "DUE SOON"
	switch {
	case tmpl.OffsetDays > 0:
		statusLabel = "OVERDUE"
	case tmpl.OffsetDays == 0:
		statusLabel = "DUE TODAY"
	}

	var dueDate string
	if target.DueDate != nil {
		dueDate = target.DueDate.Format("2 January 2006")
	}

	clientName := strings.TrimSpace(target.ClientName)
	if clientName == "" {
		clientName = "Valued Customer"
	}

	return reminderData{
		Test:          test,
		Label:         tmpl.Label,
		BusinessName:  target.BusinessName,
		BusinessEmail: common.SafeString(target.BusinessEmail),
		BusinessPhone: common.SafeString(target.BusinessPhone),
		ClientName:    clientName,
		InvoiceNumber: target.InvoiceNumber,
		DaysText:      DaysText(tmpl.OffsetDays),
		DueDate:       dueDate,
		StatusLabel:   statusLabel,
		Overdue:       tmpl.OffsetDays > 0,
		Amount:        FormatAmount(target.Currency, target.Total),
		InvoiceURL:    fmt.Sprintf("%s/i/%s", s.appURL, target.InvoiceID),
	}
}

var reminderEmailTemplate = htmltemplate.Must(htmltemplate.New("reminder_email").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Payment Reminder</title>
</head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  {{if .Test}}<div style="background: #dbeafe; color: #1e40af; padding: 12px; text-align: center; font-weight: 600;">TEST MODE - This is a test email</div>{{end}}
  <div style="background: #ea580c; color: white; padding: 32px; text-align: center;">
    <h1 style="margin: 0;">{{.Label}}</h1>
    <p style="margin: 8px 0 0;">From {{.BusinessName}}</p>
  </div>
  <div style="padding: 32px;">
    <p>Hello {{.ClientName}},</p>
    <p>This is a friendly reminder that your invoice <strong>#{{.InvoiceNumber}}</strong> {{.DaysText}}.</p>
    <table style="width: 100%; border-collapse: collapse; margin: 24px 0;">
      <tr><td>Invoice Number</td><td align="right">#{{.InvoiceNumber}}</td></tr>
      <tr><td>Due Date</td><td align="right">{{.DueDate}}</td></tr>
      <tr><td>Status</td><td align="right" style="color: {{if .Overdue}}#dc2626{{else}}#ea580c{{end}};">{{.StatusLabel}}</td></tr>
      <tr><td><strong>Amount Due</strong></td><td align="right"><strong>{{.Amount}}</strong></td></tr>
    </table>
    <p style="text-align: center;"><a href="{{.InvoiceURL}}" style="padding: 14px 32px; background: #ea580c; color: white; text-decoration: none; border-radius: 8px;">View &amp; Pay Invoice</a></p>
    <p style="color: #6b7280; font-size: 14px;">If you've already made payment or have any questions, please contact us.</p>
    <p>Thank you for your business!<br><strong>{{.BusinessName}}</strong></p>
  </div>
  <div style="padding: 24px; text-align: center; font-size: 13px; color: #6b7280;">
    {{with .BusinessEmail}}{{.}}{{end}}{{if and .BusinessEmail .BusinessPhone}} | {{end}}{{with .BusinessPhone}}{{.}}{{end}}
  </div>
</body>
</html>`))

var reminderTextTemplate = template.Must(template.New("reminder_text").Parse(
	`{{if .Test}}[TEST] {{end}}Hello {{.ClientName}}, invoice #{{.InvoiceNumber}} from {{.BusinessName}} {{.DaysText}}. Amount due: {{.Amount}}. Pay here: {{.InvoiceURL}}`))

func renderHTML(t *htmltemplate.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func renderText(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// resendSender sends email through the Resend HTTP API.
type resendSender struct {
	apiKey  string
	baseURL string
	from    string
	http    *http.Client
}

type resendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type resendEmailRequest struct {
	From    string      `json:"from"`
	To      []string    `json:"to"`
	Subject string      `json:"subject"`
	HTML    string      `json:"html"`
	Text    string      `json:"text,omitempty"`
	ReplyTo string      `json:"reply_to,omitempty"`
	Tags    []resendTag `json:"tags,omitempty"`
}

func (r *resendSender) Send(ctx context.Context, msg outboundMessage) (string, error) {
	if r.apiKey == "" {
		return "", errors.New("email provider not configured")
	}

	req := resendEmailRequest{
		From:    r.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	}
	for name, value := range msg.Tags {
		req.Tags = append(req.Tags, resendTag{Name: name, Value: value})
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, r.http, r.baseURL+"/emails", r.apiKey, req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// webhookSender posts text messages to an HTTP messaging provider.
type webhookSender struct {
	channel models.ReminderChannel
	url     string
	token   string
	http    *http.Client
}

func (w *webhookSender) Send(ctx context.Context, msg outboundMessage) (string, error) {
	if w.url == "" {
		return "", fmt.Errorf("%s provider not configured", w.channel)
	}

	payload := map[string]any{
		"channel": string(w.channel),
		"to":      msg.To,
		"message": msg.Text,
		"tags":    msg.Tags,
	}
	var resp struct {
		ID        string `json:"id"`
		MessageID string `json:"message_id"`
	}
	if err := postJSON(ctx, w.http, w.url, w.token, payload, &resp); err != nil {
		return "", err
	}
	return common.FirstNonEmpty(resp.MessageID, resp.ID), nil
}

func postJSON(ctx context.Context, client *http.Client, url, token string, body, out any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var providerErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &providerErr)
		return fmt.Errorf("provider returned status %d after %s: %s", resp.StatusCode, time.Since(start).Round(time.Millisecond), providerErr.Message)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode provider response: %w", err)
		}
	}
	return nil
}
