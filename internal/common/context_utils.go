package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey     contextKey = "user_id"
	BusinessIDKey contextKey = "business_id"
)

// DateLayout is the wire format for calendar dates (issue and due dates).
const DateLayout = "2006-01-02"

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendError writes err using the status and code of its kind.
// Errors outside the taxonomy are reported as a generic server error.
func SendError(c echo.Context, err error) error {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return SendServerError(c, "The request could not be completed")
	}

	message := appErr.Message
	if message == "" {
		message = appErr.Kind.Error()
	}
	return c.JSON(HTTPStatus(err), CreateErrorResponse(ErrorCode(err), message, appErr.Details))
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{
		field: message,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", "Validation failed", details))
}

// SendClientError sends a client error response
func SendClientError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("CLIENT_ERROR", message, nil))
}

// SendServerError sends a server error response
func SendServerError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", message, nil))
}

// SendNotFoundError sends a not found error response
func SendNotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", fmt.Sprintf("%s not found", resource), nil))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", "Unauthorized access", nil))
}

// ValidateUUID validates a UUID path or body parameter
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, NewValidationError(fieldName, fmt.Sprintf("%s is required", fieldName))
	}

	if len(idStr) != 36 {
		return uuid.Nil, NewValidationError(fieldName, fmt.Sprintf("%s must be exactly 36 characters (including hyphens)", fieldName))
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, NewValidationError(fieldName, fmt.Sprintf("%s is not a valid UUID", fieldName))
	}

	return id, nil
}

// ParseDate parses a YYYY-MM-DD date; RFC3339 timestamps are accepted and truncated to the day.
func ParseDate(value, fieldName string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, NewValidationError(fieldName, fmt.Sprintf("%s is required", fieldName))
	}

	if date, err := time.Parse(DateLayout, value); err == nil {
		return date, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		y, m, d := ts.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}

	return time.Time{}, NewValidationError(fieldName, fmt.Sprintf("%s must be in YYYY-MM-DD format", fieldName))
}

// NormalizeOptionalString trims s and turns blank input into nil.
func NormalizeOptionalString(s *string, fieldName string, maxLength int) (*string, error) {
	if s == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil, nil
	}
	if len(trimmed) > maxLength {
		return nil, NewValidationError(fieldName, fmt.Sprintf("%s cannot exceed %d characters", fieldName, maxLength))
	}
	return &trimmed, nil
}

// SafeString safely handles string pointer operations
func SafeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetBusinessIDFromContext extracts the business ID resolved by the auth middleware
func GetBusinessIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	businessID, ok := ctx.Value(BusinessIDKey).(uuid.UUID)
	return businessID, ok && businessID != uuid.Nil
}

// ValidatePaginationParams validates pagination parameters
func ValidatePaginationParams(limit, offset int) (int, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	if offset < 0 {
		offset = 0
	}
	if offset > 1000000 {
		return 0, 0, NewValidationError("offset", "offset cannot exceed 1,000,000")
	}

	return limit, offset, nil
}
