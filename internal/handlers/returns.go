package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/soleshop/internal/middleware"
	"github.com/example/soleshop/internal/models"
	"github.com/example/soleshop/internal/services"
	"github.com/example/soleshop/internal/utils"
)

// ReturnHandler exposes the return lifecycle to customers and admins.
type ReturnHandler struct {
	returns *services.ReturnService
}

// NewReturnHandler constructs ReturnHandler.
func NewReturnHandler(returns *services.ReturnService) *ReturnHandler {
	return &ReturnHandler{returns: returns}
}

type returnItemRequest struct {
	OrderItemID string              `json:"order_item_id"`
	Quantity    int                 `json:"quantity"`
	Reason      models.ReturnReason `json:"reason"`
}

type createReturnRequest struct {
	OrderID       string              `json:"order_id"`
	Items         []returnItemRequest `json:"items"`
	Type          models.ReturnType   `json:"type"`
	Reason        models.ReturnReason `json:"reason"`
	Description   string              `json:"description"`
	SizeIssue     bool                `json:"size_issue"`
	RequestedSize string              `json:"requested_size"`
}

// CreateReturn submits a return request against the customer's own
// delivered or completed order.
func (h *ReturnHandler) CreateReturn(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createReturnRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	input := services.CreateReturnInput{
		OrderID:       orderID,
		Type:          req.Type,
		Reason:        req.Reason,
		Description:   req.Description,
		SizeIssue:     req.SizeIssue,
		RequestedSize: req.RequestedSize,
	}
	for _, item := range req.Items {
		itemID, err := uuid.Parse(item.OrderItemID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid order item id")
		}
		input.Items = append(input.Items, services.ReturnItemInput{
			OrderItemID: itemID,
			Quantity:    item.Quantity,
			Reason:      item.Reason,
		})
	}

	request, err := h.returns.CreateReturnRequest(c.Context(), userID, input)
	if err != nil {
		return mapReturnError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": request})
}

// ListMyReturns returns the authenticated customer's requests.
func (h *ReturnHandler) ListMyReturns(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	status := models.ReturnStatus(c.Query("status"))

	requests, total, err := h.returns.ListReturns(c.Context(), &userID, status, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    requests,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetMyReturn returns one of the customer's own requests.
func (h *ReturnHandler) GetMyReturn(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	request, err := h.returns.GetReturn(c.Context(), id, &userID)
	if err != nil {
		return mapReturnError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": request})
}

type uploadTrackingRequest struct {
	TrackingNumber string `json:"tracking_number"`
}

// UploadTracking stores the carrier tracking number on an approved
// request.
func (h *ReturnHandler) UploadTracking(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req uploadTrackingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.TrackingNumber == "" {
		return fiber.NewError(fiber.StatusBadRequest, "tracking number required")
	}

	request, err := h.returns.UploadTracking(c.Context(), userID, id, req.TrackingNumber)
	if err != nil {
		return mapReturnError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": request})
}

// ListAllReturns lists every request for the admin console, with an
// optional status filter.
func (h *ReturnHandler) ListAllReturns(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	status := models.ReturnStatus(c.Query("status"))

	requests, total, err := h.returns.ListReturns(c.Context(), nil, status, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    requests,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

type transitionRequest struct {
	Status       models.ReturnStatus `json:"status"`
	AdminNote    string              `json:"admin_note"`
	RefundAmount *float64            `json:"refund_amount"`
}

// Transition applies an admin status change to a request.
func (h *ReturnHandler) Transition(c *fiber.Ctx) error {
	adminID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req transitionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	request, err := h.returns.Transition(c.Context(), adminID, id, services.TransitionInput{
		Target:       req.Status,
		AdminNote:    req.AdminNote,
		RefundAmount: req.RefundAmount,
	})
	if err != nil {
		return mapReturnError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": request})
}

// mapReturnError translates service errors into HTTP responses per the
// error taxonomy: validation 422, conflicts 409, ownership 403.
func mapReturnError(err error) error {
	var transition *models.InvalidTransitionError
	switch {
	case errors.As(err, &transition):
		return fiber.NewError(fiber.StatusConflict, transition.Error())
	case errors.Is(err, services.ErrNotRequestOwner):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.NewError(fiber.StatusNotFound, "return request not found")
	case services.IsValidationError(err):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case services.IsConflictError(err):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}
