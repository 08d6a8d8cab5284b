package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/soleshop/internal/services"
)

// PaymentHandler receives NewebPay server-to-server notifications.
type PaymentHandler struct {
	newebpay *services.NewebPayService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(newebpay *services.NewebPayService) *PaymentHandler {
	return &PaymentHandler{newebpay: newebpay}
}

// Notify handles the gateway's payment result callback. The gateway
// expects the literal body "SUCCESS" on acceptance and retries
// otherwise.
func (h *PaymentHandler) Notify(c *fiber.Ctx) error {
	tradeInfo := c.FormValue("TradeInfo")
	tradeSha := c.FormValue("TradeSha")
	if tradeInfo == "" || tradeSha == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing trade payload")
	}

	result, err := h.newebpay.HandleNotify(c.Context(), tradeInfo, tradeSha)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBadCheckValue), errors.Is(err, services.ErrBadTradeInfo):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return fiber.NewError(fiber.StatusNotFound, "unknown merchant order")
		}
		return err
	}

	log.Printf("[NewebPay] order %s reported %s (trade %s)",
		result.MerchantOrderNo, result.Status, result.TradeNo)
	return c.SendString("SUCCESS")
}
