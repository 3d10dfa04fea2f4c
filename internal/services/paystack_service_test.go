package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"momoinvoice/internal/common"
	"momoinvoice/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(key, body string) string {
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestPaystack(baseURL string) PaymentGateway {
	return NewPaystackService(config.PaystackConfig{
		SecretKey: "sk_test_123",
		BaseURL:   baseURL,
		Timeout:   5 * time.Second,
	})
}

func TestPaystack_InitializeTransaction(t *testing.T) {
	var received InitializeTransactionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/xyz","access_code":"xyz","reference":"ACM-2024-001-AB12CD34"}}`))
	}))
	defer server.Close()

	gateway := newTestPaystack(server.URL)
	resp, err := gateway.InitializeTransaction(context.Background(), InitializeTransactionRequest{
		Reference: "ACM-2024-001-AB12CD34",
		Email:     "ama@example.com",
		Amount:    22050,
		Currency:  "GHS",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/xyz", resp.AuthorizationURL)
	assert.Equal(t, "xyz", resp.AccessCode)
	assert.Equal(t, "ACM-2024-001-AB12CD34", resp.Reference)
	assert.Equal(t, int64(22050), received.Amount)
	assert.Equal(t, "ama@example.com", received.Email)
}

func TestPaystack_InitializeTransactionRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	}))
	defer server.Close()

	_, err := newTestPaystack(server.URL).InitializeTransaction(context.Background(), InitializeTransactionRequest{Reference: "R"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrGateway))
	assert.Contains(t, err.Error(), "Invalid key")
}

func TestPaystack_InitializeTransactionNonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer server.Close()

	_, err := newTestPaystack(server.URL).InitializeTransaction(context.Background(), InitializeTransactionRequest{Reference: "R"})

	assert.True(t, errors.Is(err, common.ErrGateway))
}

func TestPaystack_InitializeTransactionNotConfigured(t *testing.T) {
	gateway := NewPaystackService(config.PaystackConfig{BaseURL: "http://unused"})

	_, err := gateway.InitializeTransaction(context.Background(), InitializeTransactionRequest{})

	assert.ErrorIs(t, err, errGatewayNotConfigured)
	assert.False(t, errors.Is(err, common.ErrGateway))
}

func TestPaystack_VerifySignature(t *testing.T) {
	body := `{"event":"charge.success","data":{"reference":"R1"}}`
	gateway := NewPaystackService(config.PaystackConfig{SecretKey: "sk_test_123"})

	valid := sign("sk_test_123", body)

	tests := []struct {
		name      string
		body      string
		signature string
		want      bool
	}{
		{"valid", body, valid, true},
		{"valid with whitespace", body, "  " + valid + "\n", true},
		{"tampered body", body + " ", valid, false},
		{"wrong key", body, sign("other", body), false},
		{"not hex", body, "zz-not-hex", false},
		{"missing", body, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gateway.VerifySignature([]byte(tt.body), tt.signature)
			assert.Equal(t, tt.want, got.Valid)
		})
	}
}

func TestPaystack_VerifySignatureUsesWebhookSecret(t *testing.T) {
	body := `{"event":"charge.success"}`
	gateway := NewPaystackService(config.PaystackConfig{SecretKey: "sk_test_123", WebhookSecret: "whsec_1"})

	assert.True(t, gateway.VerifySignature([]byte(body), sign("whsec_1", body)).Valid)
	assert.False(t, gateway.VerifySignature([]byte(body), sign("sk_test_123", body)).Valid)
}

func TestPaystack_VerifySignatureWithoutKey(t *testing.T) {
	body := `{}`
	gateway := NewPaystackService(config.PaystackConfig{})

	assert.False(t, gateway.VerifySignature([]byte(body), sign("", body)).Valid)
}

func TestParseGatewayEvent(t *testing.T) {
	t.Run("trims reference and keeps raw data", func(t *testing.T) {
		event, err := ParseGatewayEvent([]byte(`{"event":"charge.success","data":{"reference":"  R1 ","amount":500,"paidAt":"2024-03-14T09:15:00.000Z"}}`))

		require.NoError(t, err)
		assert.Equal(t, "charge.success", event.Event)
		assert.Equal(t, "R1", event.Data.Reference)
		assert.Equal(t, int64(500), event.Data.Amount)
		require.NotNil(t, event.Data.PaidAtTime())
		assert.Equal(t, 2024, event.Data.PaidAtTime().Year())
		assert.JSONEq(t, `{"reference":"  R1 ","amount":500,"paidAt":"2024-03-14T09:15:00.000Z"}`, string(event.RawData))
	})

	t.Run("missing data", func(t *testing.T) {
		event, err := ParseGatewayEvent([]byte(`{"event":"charge.success"}`))

		require.NoError(t, err)
		assert.Empty(t, event.Data.Reference)
	})

	t.Run("tolerates unexpected field types", func(t *testing.T) {
		body := `{"event":"refund.processed","data":{"status":"processed","amount":"10000","reference":"INV-2024-001-ab12cd34","refund":{"id":77},"currency":null,"channel":["mobile_money"]}}`
		event, err := ParseGatewayEvent([]byte(body))

		require.NoError(t, err)
		assert.Equal(t, "refund.processed", event.Event)
		assert.Equal(t, "INV-2024-001-ab12cd34", event.Data.Reference)
		assert.Equal(t, "processed", event.Data.Status)
		assert.Equal(t, int64(10000), event.Data.Amount)
		assert.Empty(t, event.Data.Currency)
		assert.Empty(t, event.Data.Channel)
		assert.Contains(t, string(event.RawData), `"refund":{"id":77}`)
	})

	t.Run("numeric reference and fractional amount", func(t *testing.T) {
		event, err := ParseGatewayEvent([]byte(`{"event":"charge.success","data":{"reference":12345,"amount":500.0}}`))

		require.NoError(t, err)
		assert.Equal(t, "12345", event.Data.Reference)
		assert.Equal(t, int64(500), event.Data.Amount)
	})

	t.Run("data that is not an object", func(t *testing.T) {
		event, err := ParseGatewayEvent([]byte(`{"event":"subscription.create","data":["x"]}`))

		require.NoError(t, err)
		assert.Empty(t, event.Data.Reference)
		assert.JSONEq(t, `["x"]`, string(event.RawData))
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseGatewayEvent([]byte(`not json`))

		assert.True(t, errors.Is(err, common.ErrValidation))
	})

	t.Run("json that is not an object", func(t *testing.T) {
		_, err := ParseGatewayEvent([]byte(`null`))

		assert.True(t, errors.Is(err, common.ErrValidation))
	})
}
