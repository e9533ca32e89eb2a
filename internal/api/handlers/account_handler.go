package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/service"
)

type AccountHandler struct {
	s service.AccountService
}

func NewAccountHandler(s service.AccountService) *AccountHandler {
	return &AccountHandler{s: s}
}

func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accounts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *AccountHandler) RemoveAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var body struct {
		Platform  string `json:"platform"`
		AccountID string `json:"account_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	dest := models.DestinationRef{Platform: models.Platform(body.Platform), AccountID: body.AccountID}
	if err := h.s.Unlink(c.Context(), userID, dest); err != nil {
		return serviceError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
