package handlers

import (
	"net/http"
	"strconv"

	"momoinvoice/internal/common"
	"momoinvoice/internal/models"
	"momoinvoice/internal/services"

	"github.com/labstack/echo/v4"
)

// ReminderHandlers manages reminder templates and triggers reminder runs
type ReminderHandlers struct {
	reminderService services.ReminderServiceInterface
}

// NewReminderHandlers creates a new reminder handlers instance
func NewReminderHandlers(reminderService services.ReminderServiceInterface) *ReminderHandlers {
	return &ReminderHandlers{reminderService: reminderService}
}

// RegisterRoutes mounts the reminder endpoints on an authenticated group.
func (h *ReminderHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("/reminders/templates", h.ListTemplates)
	g.POST("/reminders/templates", h.CreateTemplate)
	g.PUT("/reminders/templates/:id", h.UpdateTemplate)
	g.DELETE("/reminders/templates/:id", h.DeleteTemplate)
	g.GET("/reminders/history", h.History)
	g.POST("/reminders/send", h.Send)
}

// ListTemplates handles GET /v1/reminders/templates
//
//	@Summary	List reminder templates
//	@Tags		reminders
//	@Produce	json
//	@Success	200	{array}	models.ReminderTemplate
//	@Security	BearerAuth
//	@Router		/v1/reminders/templates [get]
func (h *ReminderHandlers) ListTemplates(c echo.Context) error {
	ctx := c.Request().Context()

	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	templates, err := h.reminderService.ListTemplates(ctx, businessID)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, templates)
}

// CreateTemplate handles POST /v1/reminders/templates
//
//	@Summary	Create a reminder template
//	@Tags		reminders
//	@Accept		json
//	@Produce	json
//	@Param		template	body		services.TemplateInput	true	"Template"
//	@Success	201			{object}	models.ReminderTemplate
//	@Failure	400			{object}	common.ErrorResponse
//	@Security	BearerAuth
//	@Router		/v1/reminders/templates [post]
func (h *ReminderHandlers) CreateTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req services.TemplateInput
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	tmpl, err := h.reminderService.CreateTemplate(ctx, businessID, req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, tmpl)
}

// UpdateTemplate handles PUT /v1/reminders/templates/:id
//
//	@Summary	Update a reminder template
//	@Tags		reminders
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"Template ID"
//	@Param		patch	body		services.TemplatePatch	true	"Fields to change"
//	@Success	200		{object}	models.ReminderTemplate
//	@Security	BearerAuth
//	@Router		/v1/reminders/templates/{id} [put]
func (h *ReminderHandlers) UpdateTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	templateID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	var patch services.TemplatePatch
	if err := c.Bind(&patch); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	tmpl, err := h.reminderService.UpdateTemplate(ctx, businessID, templateID, patch)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, tmpl)
}

// DeleteTemplate handles DELETE /v1/reminders/templates/:id
//
//	@Summary	Delete a reminder template
//	@Tags		reminders
//	@Param		id	path	string	true	"Template ID"
//	@Success	204
//	@Security	BearerAuth
//	@Router		/v1/reminders/templates/{id} [delete]
func (h *ReminderHandlers) DeleteTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	templateID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	if err := h.reminderService.DeleteTemplate(ctx, businessID, templateID); err != nil {
		return common.SendError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// History handles GET /v1/reminders/history
//
//	@Summary	Recent reminder sends
//	@Tags		reminders
//	@Produce	json
//	@Param		limit	query	int	false	"Entries to return (default 20, max 100)"
//	@Success	200		{array}	models.ReminderHistoryEntry
//	@Security	BearerAuth
//	@Router		/v1/reminders/history [get]
func (h *ReminderHandlers) History(c echo.Context) error {
	ctx := c.Request().Context()

	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	limit := 0
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil {
			limit = l
		}
	}

	entries, err := h.reminderService.History(ctx, businessID, limit)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}

type sendRemindersRequest struct {
	InvoiceID  *string `json:"invoice_id,omitempty"`
	TemplateID *string `json:"template_id,omitempty"`
	Test       bool    `json:"test"`
}

// Send handles POST /v1/reminders/send. With an invoice and template it sends
// that one reminder; otherwise it runs every due reminder for the business.
//
//	@Summary	Send reminders now
//	@Tags		reminders
//	@Accept		json
//	@Produce	json
//	@Param		body	body		sendRemindersRequest	false	"Scope"
//	@Success	200		{object}	models.ReminderRunResult
//	@Security	BearerAuth
//	@Router		/v1/reminders/send [post]
func (h *ReminderHandlers) Send(c echo.Context) error {
	ctx := c.Request().Context()

	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req sendRemindersRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return common.SendClientError(c, "Invalid request format")
		}
	}

	hasInvoice := req.InvoiceID != nil && *req.InvoiceID != ""
	hasTemplate := req.TemplateID != nil && *req.TemplateID != ""
	if hasInvoice != hasTemplate {
		return common.SendValidationError(c, "template_id", "invoice_id and template_id must be provided together")
	}

	if !hasInvoice {
		result, err := h.reminderService.RunDue(ctx, services.RunOptions{BusinessID: &businessID, Test: req.Test})
		if err != nil {
			return common.SendError(c, err)
		}
		return c.JSON(http.StatusOK, result)
	}

	invoiceID, err := common.ValidateUUID(*req.InvoiceID, "invoice_id")
	if err != nil {
		return common.SendError(c, err)
	}
	templateID, err := common.ValidateUUID(*req.TemplateID, "template_id")
	if err != nil {
		return common.SendError(c, err)
	}

	res, err := h.reminderService.SendOne(ctx, businessID, invoiceID, templateID, req.Test)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, singleRunResult(res))
}

func singleRunResult(res *models.ReminderResult) *models.ReminderRunResult {
	result := &models.ReminderRunResult{Results: []models.ReminderResult{}}
	if res.Skipped {
		result.Results = append(result.Results, *res)
		return result
	}
	result.Add(*res)
	return result
}
