package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", NewValidationError("total", "must be positive"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", NewNotFoundError("Invoice"), http.StatusNotFound, "NOT_FOUND"},
		{"invalid state", NewInvalidStateError("invoice is paid"), http.StatusConflict, "INVALID_STATE"},
		{"authentication", NewAuthenticationError("missing token"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"signature", NewSignatureError("bad signature"), http.StatusUnauthorized, "INVALID_SIGNATURE"},
		{"authorization", NewAuthorizationError("no business"), http.StatusForbidden, "FORBIDDEN"},
		{"gateway", NewGatewayError("initialize", errors.New("timeout")), http.StatusBadGateway, "GATEWAY_ERROR"},
		{"notification", NewNotificationError("sms", errors.New("rejected")), http.StatusBadGateway, "NOTIFICATION_ERROR"},
		{"wrapped", fmt.Errorf("load: %w", NewNotFoundError("Client")), http.StatusNotFound, "NOT_FOUND"},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError, "SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, HTTPStatus(tt.err))
			assert.Equal(t, tt.wantCode, ErrorCode(tt.err))
		})
	}
}

func TestError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewGatewayError("initialize transaction", cause)

	assert.Equal(t, "initialize transaction: payment gateway request failed: connection reset", err.Error())
	assert.ErrorIs(t, err, ErrGateway)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestSendError(t *testing.T) {
	e := echo.New()

	t.Run("taxonomy error keeps details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

		require.NoError(t, SendError(c, NewValidationErrors(map[string]string{"client_id": "client_id is required"})))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
		assert.Equal(t, "client_id is required", body.Error.Details["client_id"])
	})

	t.Run("unknown error is not leaked", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

		require.NoError(t, SendError(c, errors.New("pq: relation \"invoices\" does not exist")))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "relation")
	})
}

func TestValidateUUID(t *testing.T) {
	_, err := ValidateUUID("", "invoice_id")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ValidateUUID("not-a-uuid", "invoice_id")
	assert.ErrorIs(t, err, ErrValidation)

	id, err := ValidateUUID(" 6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f ", "invoice_id")
	assert.NoError(t, err)
	assert.Equal(t, "6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f", id.String())
}

func TestParseDate(t *testing.T) {
	date, err := ParseDate("2024-03-15", "due_date")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), date)

	date, err = ParseDate("2024-03-15T23:30:00+02:00", "due_date")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), date)

	_, err = ParseDate("15/03/2024", "due_date")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidatePaginationParams(t *testing.T) {
	limit, offset, err := ValidatePaginationParams(0, -5)
	require.NoError(t, err)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)

	limit, _, err = ValidatePaginationParams(500, 0)
	require.NoError(t, err)
	assert.Equal(t, 200, limit)

	_, _, err = ValidatePaginationParams(10, 2000000)
	assert.Error(t, err)
}

func TestOptional(t *testing.T) {
	var patch struct {
		DueDate Optional[string] `json:"due_date"`
		Notes   Optional[string] `json:"notes"`
		Other   Optional[string] `json:"other"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"due_date": null, "notes": "net 30"}`), &patch))

	assert.True(t, patch.DueDate.Set)
	assert.Nil(t, patch.DueDate.Value)
	assert.True(t, patch.Notes.Set)
	assert.Equal(t, "net 30", *patch.Notes.Value)
	assert.False(t, patch.Other.Set)

	assert.Equal(t, Optional[int]{Set: true}, Null[int]())
	assert.Equal(t, 3, *Some(3).Value)
}
