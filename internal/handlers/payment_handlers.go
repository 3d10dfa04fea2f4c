package handlers

import (
	"net/http"

	"momoinvoice/internal/common"
	"momoinvoice/internal/services"

	"github.com/labstack/echo/v4"
)

// PaymentHandlers starts gateway checkouts for invoices
type PaymentHandlers struct {
	paymentService services.PaymentServiceInterface
}

// NewPaymentHandlers creates a new payment handlers instance
func NewPaymentHandlers(paymentService services.PaymentServiceInterface) *PaymentHandlers {
	return &PaymentHandlers{paymentService: paymentService}
}

// Checkout handles POST /v1/invoices/:id/checkout
//
//	@Summary	Start a hosted checkout for an invoice
//	@Tags		payments
//	@Produce	json
//	@Param		id	path		string	true	"Invoice ID"
//	@Success	201	{object}	services.CheckoutSession
//	@Failure	409	{object}	common.ErrorResponse
//	@Failure	502	{object}	common.ErrorResponse
//	@Security	BearerAuth
//	@Router		/v1/invoices/{id}/checkout [post]
func (h *PaymentHandlers) Checkout(c echo.Context) error {
	businessID, invoiceID, err := businessAndInvoiceID(c)
	if err != nil {
		return common.SendError(c, err)
	}

	session, err := h.paymentService.InitializeCheckout(c.Request().Context(), businessID, invoiceID)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

// PublicCheckout handles POST /public/invoices/:id/checkout, used by payers
// following a shared invoice link.
//
//	@Summary	Start a checkout from a shared invoice link
//	@Tags		payments
//	@Produce	json
//	@Param		id	path		string	true	"Invoice ID"
//	@Success	201	{object}	services.CheckoutSession
//	@Failure	404	{object}	common.ErrorResponse
//	@Failure	429	{object}	common.ErrorResponse
//	@Router		/public/invoices/{id}/checkout [post]
func (h *PaymentHandlers) PublicCheckout(c echo.Context) error {
	invoiceID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	session, err := h.paymentService.InitializePublicCheckout(c.Request().Context(), invoiceID)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}
