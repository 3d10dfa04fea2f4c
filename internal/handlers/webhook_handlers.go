package handlers

import (
	"io"
	"net/http"

	"momoinvoice/internal/common"
	"momoinvoice/internal/logger"
	"momoinvoice/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// PaystackSignatureHeader carries the hex HMAC-SHA512 of the raw body.
const PaystackSignatureHeader = "x-paystack-signature"

// maxWebhookBody bounds how much of a delivery is read.
const maxWebhookBody = 1 << 20

// WebhookHandlers handles HTTP requests for webhooks
type WebhookHandlers struct {
	paymentService services.PaymentServiceInterface
	logger         zerolog.Logger
}

// NewWebhookHandlers creates a new webhook handlers instance
func NewWebhookHandlers(paymentService services.PaymentServiceInterface) *WebhookHandlers {
	return &WebhookHandlers{
		paymentService: paymentService,
		logger:         logger.WithComponent("webhooks"),
	}
}

type webhookAck struct {
	Acknowledged bool `json:"acknowledged"`
	*services.WebhookOutcome
}

// PaystackWebhook handles POST /webhooks/paystack. The body is passed on
// unparsed so the signature is checked against the exact bytes received.
//
//	@Summary	Receive a Paystack event
//	@Tags		webhooks
//	@Accept		json
//	@Produce	json
//	@Param		x-paystack-signature	header		string	true	"HMAC-SHA512 of the body"
//	@Success	202						{object}	webhookAck
//	@Failure	400						{object}	common.ErrorResponse
//	@Failure	401						{object}	common.ErrorResponse
//	@Router		/webhooks/paystack [post]
func (h *WebhookHandlers) PaystackWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return common.SendClientError(c, "Failed to read request body")
	}

	signature := c.Request().Header.Get(PaystackSignatureHeader)

	outcome, err := h.paymentService.HandleWebhook(c.Request().Context(), body, signature)
	if err != nil {
		if common.HTTPStatus(err) >= http.StatusInternalServerError {
			h.logger.Error().Err(err).Msg("failed to apply webhook")
		}
		return common.SendError(c, err)
	}

	h.logger.Info().
		Str("event", outcome.Event).
		Str("reference", outcome.Reference).
		Str("action", string(outcome.Action)).
		Msg("webhook processed")

	return c.JSON(http.StatusAccepted, webhookAck{Acknowledged: true, WebhookOutcome: outcome})
}
