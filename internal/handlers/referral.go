package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/soleshop/internal/middleware"
	"github.com/example/soleshop/internal/models"
	"github.com/example/soleshop/internal/services"
	"github.com/example/soleshop/internal/utils"
)

// ReferralHandler exposes referral codes to customers and the policy
// singleton plus statistics to admins.
type ReferralHandler struct {
	referral *services.ReferralService
}

// NewReferralHandler constructs ReferralHandler.
func NewReferralHandler(referral *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{referral: referral}
}

// MyCode returns (and lazily creates) the customer's referral code.
func (h *ReferralHandler) MyCode(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	code, err := h.referral.EnsureCodeForUser(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": code})
}

// GetSettings returns the referral policy singleton.
func (h *ReferralHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.referral.GetSettings(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": settings})
}

// UpdateSettings replaces the referral policy singleton.
func (h *ReferralHandler) UpdateSettings(c *fiber.Ctx) error {
	var input models.ReferralSettings
	if err := c.BodyParser(&input); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	settings, err := h.referral.UpdateSettings(c.Context(), input)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSettings) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": settings})
}

// Stats returns aggregate referral statistics for the admin console.
func (h *ReferralHandler) Stats(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	stats, err := h.referral.Stats(c.Context(), pg.Limit)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": stats})
}
