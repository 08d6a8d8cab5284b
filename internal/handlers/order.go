package handlers

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/soleshop/internal/middleware"
	"github.com/example/soleshop/internal/models"
	"github.com/example/soleshop/internal/services"
	"github.com/example/soleshop/internal/utils"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	db       *gorm.DB
	referral *services.ReferralService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, referral *services.ReferralService) *OrderHandler {
	return &OrderHandler{db: db, referral: referral}
}

type orderItemRequest struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Size        string  `json:"size"`
	Color       string  `json:"color"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

type createOrderRequest struct {
	Currency    string             `json:"currency"`
	ShippingFee float64            `json:"shipping_fee"`
	Notes       string             `json:"notes"`
	Items       []orderItemRequest `json:"items"`
}

// CreateOrder allows authenticated users to place an order.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Items) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no items in order")
	}

	order := models.Order{
		UserID:      userID,
		OrderNumber: generateOrderNumber(),
		Status:      models.OrderStatusPending,
		PlacedAt:    time.Now(),
		Currency:    req.Currency,
		ShippingFee: req.ShippingFee,
		Notes:       req.Notes,
	}
	if order.Currency == "" {
		order.Currency = "TWD"
	}

	var subtotal float64
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "item quantity must be positive")
		}
		item := models.OrderItem{
			ProductName: it.ProductName,
			Size:        it.Size,
			Color:       it.Color,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.UnitPrice * float64(it.Quantity),
		}
		if it.ProductID != "" {
			if id, err := uuid.Parse(it.ProductID); err == nil {
				item.ProductID = &id
			}
		}
		subtotal += item.LineTotal
		order.Items = append(order.Items, item)
	}
	order.Subtotal = subtotal
	order.TotalAmount = subtotal + order.ShippingFee

	if err := h.db.Create(&order).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":           order.ID,
			"order_number": order.OrderNumber,
			"status":       order.Status,
			"placed_at":    order.PlacedAt,
			"total":        order.TotalAmount,
			"currency":     order.Currency,
		},
	})
}

// ListOrders returns orders for the authenticated user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Where("user_id = ?", userID).Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns a single order for the authenticated user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.Preload("Items").
		First(&order, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type updateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

// UpdateOrderStatus lets an admin move an order through fulfilment.
// Reaching a qualifying completed state triggers the referral payout
// engine; a duplicate trigger for the same order is logged and ignored.
func (h *OrderHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if !req.Status.IsValid() {
		return fiber.NewError(fiber.StatusBadRequest, "unknown order status")
	}

	var order models.Order
	if err := h.db.First(&order, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	if err := h.db.Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", req.Status).Error; err != nil {
		return err
	}
	order.Status = req.Status

	if req.Status.IsReferralQualifying() {
		if _, err := h.referral.HandleQualifyingOrder(c.Context(), order.ID); err != nil {
			if errors.Is(err, services.ErrDuplicateGrant) {
				log.Printf("[Order] referral payout already processed for order %s", order.OrderNumber)
			} else {
				log.Printf("[Order] referral payout failed for order %s: %v", order.OrderNumber, err)
			}
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

func generateOrderNumber() string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("SO%s%X", time.Now().Format("060102150405"), suffix)
}
