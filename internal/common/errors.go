package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Use errors.Is(err, common.ErrInvalidState) to branch on them.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("invalid state")
	ErrAuthentication = errors.New("authentication failed")
	ErrAuthorization  = errors.New("not authorized")
	ErrGateway        = errors.New("payment gateway error")
	ErrSignature      = errors.New("invalid signature")
	ErrNotification   = errors.New("notification failed")
)

// Error carries a kind plus the detail a caller needs to correct the request.
type Error struct {
	Kind    error
	Op      string
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// NewValidationError reports a single bad field.
func NewValidationError(field, message string) *Error {
	return &Error{
		Kind:    ErrValidation,
		Message: message,
		Details: map[string]string{field: message},
	}
}

// NewValidationErrors reports several bad fields at once.
func NewValidationErrors(details map[string]string) *Error {
	return &Error{Kind: ErrValidation, Message: "Validation failed", Details: details}
}

func NewNotFoundError(resource string) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func NewInvalidStateError(message string) *Error {
	return &Error{Kind: ErrInvalidState, Message: message}
}

func NewAuthenticationError(message string) *Error {
	return &Error{Kind: ErrAuthentication, Message: message}
}

func NewAuthorizationError(message string) *Error {
	return &Error{Kind: ErrAuthorization, Message: message}
}

func NewGatewayError(op string, err error) *Error {
	return &Error{Kind: ErrGateway, Op: op, Message: "payment gateway request failed", Err: err}
}

func NewSignatureError(message string) *Error {
	return &Error{Kind: ErrSignature, Message: message}
}

func NewNotificationError(channel string, err error) *Error {
	return &Error{Kind: ErrNotification, Op: channel, Message: "notification send failed", Err: err}
}

// HTTPStatus maps an error kind to the status code returned to API callers.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrAuthentication), errors.Is(err, ErrSignature):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, ErrGateway), errors.Is(err, ErrNotification):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode is the machine readable code placed in the response envelope.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrAuthentication):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrSignature):
		return "INVALID_SIGNATURE"
	case errors.Is(err, ErrAuthorization):
		return "FORBIDDEN"
	case errors.Is(err, ErrGateway):
		return "GATEWAY_ERROR"
	case errors.Is(err, ErrNotification):
		return "NOTIFICATION_ERROR"
	default:
		return "SERVER_ERROR"
	}
}
