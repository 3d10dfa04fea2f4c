package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"momoinvoice/internal/common"
	"momoinvoice/internal/config"
	"momoinvoice/internal/models"

	"github.com/shopspring/decimal"
)

// PaymentGateway handles the hosted checkout provider
type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, req InitializeTransactionRequest) (*InitializeTransactionResponse, error)
	VerifySignature(rawBody []byte, signature string) SignatureVerification
}

// InitializeTransactionRequest amounts are in minor currency units.
type InitializeTransactionRequest struct {
	Reference   string         `json:"reference"`
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Subaccount  string         `json:"subaccount,omitempty"`
	SplitCode   string         `json:"split_code,omitempty"`
	Bearer      string         `json:"bearer,omitempty"`
}

type InitializeTransactionResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// SignatureVerification is the result of checking a webhook signature.
type SignatureVerification struct {
	Valid             bool
	ComputedSignature string
}

var errGatewayNotConfigured = errors.New("paystack secret key not configured")

type paystackService struct {
	secretKey  string
	signingKey string
	baseURL    string
	http       *http.Client
}

// NewPaystackService creates a new Paystack gateway client
func NewPaystackService(cfg config.PaystackConfig) PaymentGateway {
	return &paystackService{
		secretKey:  cfg.SecretKey,
		signingKey: cfg.WebhookSigningKey(),
		baseURL:    cfg.BaseURL,
		http:       &http.Client{Timeout: cfg.Timeout},
	}
}

// InitializeTransaction opens a hosted checkout session
func (s *paystackService) InitializeTransaction(ctx context.Context, req InitializeTransactionRequest) (*InitializeTransactionResponse, error) {
	if s.secretKey == "" {
		return nil, errGatewayNotConfigured
	}

	data, err := s.makeRequest(ctx, http.MethodPost, "/transaction/initialize", req)
	if err != nil {
		return nil, common.NewGatewayError("initialize transaction", err)
	}

	var resp InitializeTransactionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, common.NewGatewayError("initialize transaction", fmt.Errorf("decode response: %w", err))
	}
	if resp.AuthorizationURL == "" || resp.Reference == "" {
		return nil, common.NewGatewayError("initialize transaction", errors.New("response is missing authorization url or reference"))
	}
	return &resp, nil
}

// VerifySignature compares the hex HMAC-SHA512 of the raw body with the signature header
func (s *paystackService) VerifySignature(rawBody []byte, signature string) SignatureVerification {
	signature = strings.TrimSpace(signature)
	if s.signingKey == "" || signature == "" {
		return SignatureVerification{}
	}

	mac := hmac.New(sha512.New, []byte(s.signingKey))
	mac.Write(rawBody)
	computed := mac.Sum(nil)
	computedHex := hex.EncodeToString(computed)

	incoming, err := hex.DecodeString(signature)
	if err != nil {
		return SignatureVerification{ComputedSignature: computedHex}
	}
	return SignatureVerification{
		Valid:             hmac.Equal(computed, incoming),
		ComputedSignature: computedHex,
	}
}

func (s *paystackService) makeRequest(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest || !envelope.Status || len(envelope.Data) == 0 {
		return nil, fmt.Errorf("provider rejected request (status %d): %s", resp.StatusCode, envelope.Message)
	}
	return envelope.Data, nil
}

// ParseGatewayEvent decodes a webhook body, keeping the raw data object. Only
// a body that is not a JSON object is rejected; fields of an unexpected type
// inside "data" are left empty so the delivery can still be acknowledged.
func ParseGatewayEvent(rawBody []byte) (*models.GatewayEvent, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(rawBody, &envelope); err != nil || envelope == nil {
		return nil, common.NewValidationError("body", "Invalid JSON payload")
	}

	event := &models.GatewayEvent{Event: strings.TrimSpace(jsonText(envelope["event"]))}
	if data := envelope["data"]; len(data) > 0 && string(data) != "null" {
		event.RawData = data
		event.Data = decodeEventData(data)
	}
	return event, nil
}

func decodeEventData(raw json.RawMessage) models.GatewayEventData {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.GatewayEventData{}
	}
	return models.GatewayEventData{
		Reference:       strings.TrimSpace(jsonText(fields["reference"])),
		Status:          jsonText(fields["status"]),
		Amount:          jsonMinorUnits(fields["amount"]),
		Currency:        jsonText(fields["currency"]),
		Channel:         jsonText(fields["channel"]),
		GatewayResponse: jsonText(fields["gateway_response"]),
		PaidAt:          jsonText(fields["paid_at"]),
		PaidAtCamel:     jsonText(fields["paidAt"]),
	}
}

// jsonText reads a JSON string or number as text. Anything else is empty.
func jsonText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// jsonMinorUnits accepts the amount as a number or a numeric string.
func jsonMinorUnits(raw json.RawMessage) int64 {
	amount, err := decimal.NewFromString(strings.TrimSpace(jsonText(raw)))
	if err != nil {
		return 0
	}
	return amount.IntPart()
}
