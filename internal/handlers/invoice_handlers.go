package handlers

import (
	"net/http"
	"strconv"
	"time"

	"momoinvoice/internal/common"
	"momoinvoice/internal/models"
	"momoinvoice/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// InvoiceHandlers handles HTTP requests for invoices
type InvoiceHandlers struct {
	invoiceService services.InvoiceServiceInterface
}

// NewInvoiceHandlers creates a new invoice handlers instance
func NewInvoiceHandlers(invoiceService services.InvoiceServiceInterface) *InvoiceHandlers {
	return &InvoiceHandlers{invoiceService: invoiceService}
}

// RegisterRoutes mounts the invoice endpoints on an authenticated group.
func (h *InvoiceHandlers) RegisterRoutes(g *echo.Group) {
	g.POST("/invoices", h.CreateInvoice)
	g.GET("/invoices", h.ListInvoices)
	g.GET("/invoices/:id", h.GetInvoice)
	g.PUT("/invoices/:id/line-items", h.UpdateLineItems)
	g.PATCH("/invoices/:id", h.UpdateMetadata)
	g.POST("/invoices/:id/share", h.MarkShared)
	g.POST("/invoices/:id/mark-paid", h.MarkPaid)
}

// businessAndInvoiceID resolves the caller's business and the :id path parameter.
func businessAndInvoiceID(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	businessID, ok := common.GetBusinessIDFromContext(c.Request().Context())
	if !ok {
		return uuid.Nil, uuid.Nil, common.NewAuthenticationError("Authentication required")
	}
	invoiceID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return businessID, invoiceID, nil
}

// CreateInvoice handles POST /v1/invoices
//
//	@Summary	Create an invoice
//	@Tags		invoices
//	@Accept		json
//	@Produce	json
//	@Param		invoice	body		services.CreateInvoiceInput	true	"Invoice"
//	@Success	201		{object}	models.Invoice
//	@Failure	400		{object}	common.ErrorResponse
//	@Security	BearerAuth
//	@Router		/v1/invoices [post]
func (h *InvoiceHandlers) CreateInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req services.CreateInvoiceInput
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	invoice, err := h.invoiceService.CreateInvoice(ctx, businessID, req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, invoice)
}

// ListInvoices handles GET /v1/invoices
//
//	@Summary	List invoices
//	@Tags		invoices
//	@Produce	json
//	@Param		status		query	string	false	"draft, sent, paid or overdue"
//	@Param		client_id	query	string	false	"Client ID"
//	@Param		limit		query	int		false	"Page size"
//	@Param		offset		query	int		false	"Offset"
//	@Success	200			{object}	map[string]interface{}
//	@Security	BearerAuth
//	@Router		/v1/invoices [get]
func (h *InvoiceHandlers) ListInvoices(c echo.Context) error {
	ctx := c.Request().Context()

	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var filter models.InvoiceFilter
	if status := c.QueryParam("status"); status != "" {
		s := models.InvoiceStatus(status)
		switch s {
		case models.InvoiceStatusDraft, models.InvoiceStatusSent, models.InvoiceStatusPaid, models.InvoiceStatusOverdue:
			filter.Status = &s
		default:
			return common.SendValidationError(c, "status", "status must be one of draft, sent, paid, overdue")
		}
	}
	if clientParam := c.QueryParam("client_id"); clientParam != "" {
		clientID, err := common.ValidateUUID(clientParam, "client_id")
		if err != nil {
			return common.SendError(c, err)
		}
		filter.ClientID = &clientID
	}
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil {
			filter.Limit = l
		}
	}
	if offsetParam := c.QueryParam("offset"); offsetParam != "" {
		if o, err := strconv.Atoi(offsetParam); err == nil {
			filter.Offset = o
		}
	}

	invoices, err := h.invoiceService.ListInvoices(ctx, businessID, filter)
	if err != nil {
		return common.SendError(c, err)
	}

	limit, offset, _ := common.ValidatePaginationParams(filter.Limit, filter.Offset)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetInvoice handles GET /v1/invoices/:id
//
//	@Summary	Get an invoice with its display status and payments
//	@Tags		invoices
//	@Produce	json
//	@Param		id	path		string	true	"Invoice ID"
//	@Success	200	{object}	services.InvoiceView
//	@Failure	404	{object}	common.ErrorResponse
//	@Security	BearerAuth
//	@Router		/v1/invoices/{id} [get]
func (h *InvoiceHandlers) GetInvoice(c echo.Context) error {
	businessID, invoiceID, err := businessAndInvoiceID(c)
	if err != nil {
		return common.SendError(c, err)
	}

	view, err := h.invoiceService.GetInvoice(c.Request().Context(), businessID, invoiceID)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

type lineItemsRequest struct {
	LineItems []services.LineItemInput `json:"line_items"`
}

// UpdateLineItems handles PUT /v1/invoices/:id/line-items
//
//	@Summary	Replace line items and recompute totals
//	@Tags		invoices
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Invoice ID"
//	@Param		items	body		lineItemsRequest	true	"Line items"
//	@Success	200		{object}	models.Invoice
//	@Failure	409		{object}	common.ErrorResponse
//	@Security	BearerAuth
//	@Router		/v1/invoices/{id}/line-items [put]
func (h *InvoiceHandlers) UpdateLineItems(c echo.Context) error {
	businessID, invoiceID, err := businessAndInvoiceID(c)
	if err != nil {
		return common.SendError(c, err)
	}

	var req lineItemsRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	invoice, err := h.invoiceService.UpdateLineItems(c.Request().Context(), businessID, invoiceID, req.LineItems)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, invoice)
}

// UpdateMetadata handles PATCH /v1/invoices/:id
//
//	@Summary	Update invoice metadata
//	@Tags		invoices
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"Invoice ID"
//	@Param		patch	body		services.MetadataPatch	true	"Fields to change"
//	@Success	200		{object}	models.Invoice
//	@Security	BearerAuth
//	@Router		/v1/invoices/{id} [patch]
func (h *InvoiceHandlers) UpdateMetadata(c echo.Context) error {
	businessID, invoiceID, err := businessAndInvoiceID(c)
	if err != nil {
		return common.SendError(c, err)
	}

	var patch services.MetadataPatch
	if err := c.Bind(&patch); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	invoice, err := h.invoiceService.UpdateMetadata(c.Request().Context(), businessID, invoiceID, patch)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, invoice)
}

// MarkShared handles POST /v1/invoices/:id/share
//
//	@Summary	Record that the invoice was shared with the client
//	@Tags		invoices
//	@Produce	json
//	@Param		id	path		string	true	"Invoice ID"
//	@Success	200	{object}	models.Invoice
//	@Security	BearerAuth
//	@Router		/v1/invoices/{id}/share [post]
func (h *InvoiceHandlers) MarkShared(c echo.Context) error {
	businessID, invoiceID, err := businessAndInvoiceID(c)
	if err != nil {
		return common.SendError(c, err)
	}

	invoice, err := h.invoiceService.MarkShared(c.Request().Context(), businessID, invoiceID)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, invoice)
}

type markPaidRequest struct {
	PaidAt *string `json:"paid_at,omitempty"`
}

// MarkPaid handles POST /v1/invoices/:id/mark-paid
//
//	@Summary	Mark a sent invoice as paid outside the gateway
//	@Tags		invoices
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string			true	"Invoice ID"
//	@Param		body	body		markPaidRequest	false	"Payment time"
//	@Success	200		{object}	models.Invoice
//	@Failure	409		{object}	common.ErrorResponse
//	@Security	BearerAuth
//	@Router		/v1/invoices/{id}/mark-paid [post]
func (h *InvoiceHandlers) MarkPaid(c echo.Context) error {
	businessID, invoiceID, err := businessAndInvoiceID(c)
	if err != nil {
		return common.SendError(c, err)
	}

	var req markPaidRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return common.SendClientError(c, "Invalid request format")
		}
	}

	var paidAt *time.Time
	if req.PaidAt != nil && *req.PaidAt != "" {
		t, err := time.Parse(time.RFC3339, *req.PaidAt)
		if err != nil {
			if t, err = common.ParseDate(*req.PaidAt, "paid_at"); err != nil {
				return common.SendError(c, err)
			}
		}
		paidAt = &t
	}

	invoice, err := h.invoiceService.MarkPaid(c.Request().Context(), businessID, invoiceID, paidAt)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, invoice)
}
