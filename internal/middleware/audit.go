package middleware

import (
	"net/http"

	"momoinvoice/internal/common"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// AuditMiddleware records every state-changing request made on behalf of a business
type AuditMiddleware struct {
	logger zerolog.Logger
}

// NewAuditMiddleware creates a new audit middleware instance
func NewAuditMiddleware(log zerolog.Logger) *AuditMiddleware {
	return &AuditMiddleware{logger: log}
}

// AuditRequest logs mutating requests after they complete. It must run after
// BusinessContext; reads are not audited.
func (m *AuditMiddleware) AuditRequest() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			if !isMutation(c.Request().Method) {
				return err
			}

			ctx := c.Request().Context()
			businessID, ok := common.GetBusinessIDFromContext(ctx)
			if !ok {
				return err
			}
			userID, _ := common.GetUserIDFromContext(ctx)

			status := c.Response().Status
			event := m.logger.Info()
			if err != nil || status >= http.StatusBadRequest {
				event = m.logger.Warn().Err(err)
			}

			event.
				Str("business_id", businessID.String()).
				Str("user_id", userID).
				Str("action", c.Request().Method+" "+c.Path()).
				Str("resource_id", c.Param("id")).
				Int("status", status).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("audit")

			return err
		}
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
