package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/soleshop/internal/middleware"
	"github.com/example/soleshop/internal/services"
)

// WalletHandler exposes the wallet read model.
type WalletHandler struct {
	wallet *services.WalletService
}

// NewWalletHandler constructs WalletHandler.
func NewWalletHandler(wallet *services.WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

// ListCredits returns the user's store credits with the derived
// available amount.
func (h *WalletHandler) ListCredits(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	credits, err := h.wallet.Credits(c.Context(), userID)
	if err != nil {
		return err
	}

	available, err := h.wallet.AvailableCreditAmount(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"credits":                 credits,
			"available_credit_amount": available,
		},
	})
}

// ListCoupons returns the user's coupon redemptions bucketed by derived
// state.
func (h *WalletHandler) ListCoupons(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	buckets, err := h.wallet.Coupons(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": buckets})
}
