package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"momoinvoice/internal/common"
	"momoinvoice/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []outboundMessage
	id   string
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg outboundMessage) (string, error) {
	r.sent = append(r.sent, msg)
	return r.id, r.err
}

func reminderTarget() *models.ReminderTarget {
	due := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	return &models.ReminderTarget{
		InvoiceID:     uuid.MustParse("6f1c2a7e-3b4d-4e5f-8a9b-0c1d2e3f4a5b"),
		BusinessID:    uuid.New(),
		InvoiceNumber: "ACM-2024-001",
		Status:        models.InvoiceStatusSent,
		Currency:      "GHS",
		Total:         dec("220"),
		DueDate:       &due,
		ClientName:    "Ama Mensah",
		ClientEmail:   strPtr("ama@example.com"),
		ClientPhone:   strPtr("+233240000000"),
		BusinessName:  "Acme Studio",
		BusinessEmail: strPtr("hello@acme.test"),
	}
}

func newTestNotifier() (*notificationService, *recordingSender, *recordingSender, *recordingSender) {
	email := &recordingSender{id: "email-1"}
	sms := &recordingSender{id: "sms-1"}
	whatsapp := &recordingSender{id: "wa-1"}
	svc := newNotificationService("https://app.example.com/", map[models.ReminderChannel]channelSender{
		models.ReminderChannelEmail:    email,
		models.ReminderChannelSMS:      sms,
		models.ReminderChannelWhatsApp: whatsapp,
	})
	return svc, email, sms, whatsapp
}

func TestSendReminder_Email(t *testing.T) {
	svc, email, _, _ := newTestNotifier()
	tmpl := &models.ReminderTemplate{Label: "Overdue notice", OffsetDays: 3, Channel: models.ReminderChannelEmail}

	result, err := svc.SendReminder(context.Background(), reminderTarget(), tmpl, false)

	require.NoError(t, err)
	assert.Equal(t, "email-1", result.MessageID)
	assert.Equal(t, "ama@example.com", result.Recipient)
	require.Len(t, email.sent, 1)

	msg := email.sent[0]
	assert.Equal(t, "⚠️ OVERDUE: Payment Reminder - Invoice #ACM-2024-001", msg.Subject)
	assert.Equal(t, "hello@acme.test", msg.ReplyTo)
	assert.Contains(t, msg.HTML, "Hello Ama Mensah")
	assert.Contains(t, msg.HTML, "is 3 days overdue")
	assert.Contains(t, msg.HTML, "10 March 2024")
	assert.Contains(t, msg.HTML, "GH₵ 220.00")
	assert.Contains(t, msg.HTML, "https://app.example.com/i/6f1c2a7e-3b4d-4e5f-8a9b-0c1d2e3f4a5b")
	assert.NotContains(t, msg.HTML, "TEST MODE")
	assert.Equal(t, "payment-reminder", msg.Tags["category"])
}

func TestSendReminder_EscapesHTML(t *testing.T) {
	svc, email, _, _ := newTestNotifier()
	target := reminderTarget()
	target.ClientName = "<script>alert(1)</script>"
	tmpl := &models.ReminderTemplate{Label: "Heads up", OffsetDays: -3, Channel: models.ReminderChannelEmail}

	_, err := svc.SendReminder(context.Background(), target, tmpl, false)

	require.NoError(t, err)
	assert.NotContains(t, email.sent[0].HTML, "<script>")
	assert.Equal(t, "Payment Reminder - Invoice #ACM-2024-001", email.sent[0].Subject)
}

func TestSendReminder_TestModeDoesNotSend(t *testing.T) {
	svc, email, _, _ := newTestNotifier()
	tmpl := &models.ReminderTemplate{Label: "Due today", OffsetDays: 0, Channel: models.ReminderChannelEmail}

	result, err := svc.SendReminder(context.Background(), reminderTarget(), tmpl, true)

	require.NoError(t, err)
	assert.True(t, result.Test)
	assert.Empty(t, result.MessageID)
	assert.Empty(t, email.sent)
}

func TestSendReminder_SMSAndWhatsApp(t *testing.T) {
	svc, _, sms, whatsapp := newTestNotifier()
	target := reminderTarget()
	target.ClientWhatsapp = strPtr("+233200000000")

	_, err := svc.SendReminder(context.Background(), target, &models.ReminderTemplate{OffsetDays: -1, Channel: models.ReminderChannelSMS}, false)
	require.NoError(t, err)
	_, err = svc.SendReminder(context.Background(), target, &models.ReminderTemplate{OffsetDays: -1, Channel: models.ReminderChannelWhatsApp}, false)
	require.NoError(t, err)

	require.Len(t, sms.sent, 1)
	assert.Equal(t, "+233240000000", sms.sent[0].To)
	assert.Contains(t, sms.sent[0].Text, "is due in 1 day")
	assert.Contains(t, sms.sent[0].Text, "https://app.example.com/i/")

	require.Len(t, whatsapp.sent, 1)
	assert.Equal(t, "+233200000000", whatsapp.sent[0].To)
}

func TestSendReminder_MissingContact(t *testing.T) {
	tests := []struct {
		name    string
		channel models.ReminderChannel
		mutate  func(*models.ReminderTarget)
		want    error
	}{
		{"email", models.ReminderChannelEmail, func(t *models.ReminderTarget) { t.ClientEmail = nil }, errNoEmail},
		{"sms", models.ReminderChannelSMS, func(t *models.ReminderTarget) { t.ClientPhone = strPtr(" ") }, errNoPhone},
		{"whatsapp", models.ReminderChannelWhatsApp, func(t *models.ReminderTarget) { t.ClientPhone = nil }, errNoWhatsApp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, _ := newTestNotifier()
			target := reminderTarget()
			tt.mutate(target)

			_, err := svc.SendReminder(context.Background(), target, &models.ReminderTemplate{Channel: tt.channel}, false)

			assert.True(t, errors.Is(err, common.ErrNotification))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSendReminder_UnknownChannel(t *testing.T) {
	svc, _, _, _ := newTestNotifier()

	_, err := svc.SendReminder(context.Background(), reminderTarget(), &models.ReminderTemplate{Channel: "pigeon"}, false)

	assert.True(t, errors.Is(err, common.ErrNotification))
}

func TestSendReminder_ProviderFailure(t *testing.T) {
	svc, email, _, _ := newTestNotifier()
	email.err = errors.New("rate limited")

	_, err := svc.SendReminder(context.Background(), reminderTarget(), &models.ReminderTemplate{Channel: models.ReminderChannelEmail}, false)

	assert.True(t, errors.Is(err, common.ErrNotification))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestDaysText(t *testing.T) {
	assert.Equal(t, "is due today", DaysText(0))
	assert.Equal(t, "is due in 1 day", DaysText(-1))
	assert.Equal(t, "is due in 7 days", DaysText(-7))
	assert.Equal(t, "is 1 day overdue", DaysText(1))
	assert.Equal(t, "is 14 days overdue", DaysText(14))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "GH₵ 220.00", FormatAmount("GHS", dec("220")))
	assert.Equal(t, "GH₵ 0.50", FormatAmount("", dec("0.5")))
	assert.Equal(t, "NGN 1500.25", FormatAmount("NGN", dec("1500.25")))
}

func TestResendSender(t *testing.T) {
	var received resendEmailRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"id":"msg_123"}`))
	}))
	defer server.Close()

	sender := &resendSender{apiKey: "re_test", baseURL: server.URL, from: "Billing <billing@momoinvoice.app>", http: server.Client()}
	id, err := sender.Send(context.Background(), outboundMessage{To: "ama@example.com", Subject: "Hi", HTML: "<p>Hi</p>"})

	require.NoError(t, err)
	assert.Equal(t, "msg_123", id)
	assert.Equal(t, []string{"ama@example.com"}, received.To)
	assert.Equal(t, "Billing <billing@momoinvoice.app>", received.From)
}

func TestResendSender_NotConfigured(t *testing.T) {
	sender := &resendSender{http: http.DefaultClient}

	_, err := sender.Send(context.Background(), outboundMessage{To: "a@b.c"})

	assert.EqualError(t, err, "email provider not configured")
}

func TestWebhookSender(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"message_id":"sms_9"}`))
	}))
	defer server.Close()

	sender := &webhookSender{channel: models.ReminderChannelSMS, url: server.URL, http: server.Client()}
	id, err := sender.Send(context.Background(), outboundMessage{To: "+233240000000", Text: "Pay now"})

	require.NoError(t, err)
	assert.Equal(t, "sms_9", id)
	assert.Equal(t, "sms", received["channel"])
	assert.Equal(t, "Pay now", received["message"])
}

func TestWebhookSender_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid number"}`))
	}))
	defer server.Close()

	sender := &webhookSender{channel: models.ReminderChannelWhatsApp, url: server.URL, http: server.Client()}
	_, err := sender.Send(context.Background(), outboundMessage{To: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid number")
}
