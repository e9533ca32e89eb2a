package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/service"
	"github.com/stick95/fanpost/internal/transfer"
)

type PostHandler struct {
	intake service.IntakeService
	posts  service.PostService
}

func NewPostHandler(intake service.IntakeService, posts service.PostService) *PostHandler {
	return &PostHandler{intake: intake, posts: posts}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var body transfer.PostCreation
	if err := c.BodyParser(&body); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	requestID, err := h.intake.Submit(c.Context(), userID, body.MediaKey, body.Caption, body.Destinations)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"request_id": requestID,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	posts, err := h.posts.List(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	requestID := c.Params("id")

	status, err := h.posts.GetStatus(c.Context(), userID, requestID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *PostHandler) GetLogs(c *fiber.Ctx) error {
	userID := GetUserID(c)
	requestID := c.Params("id")

	var dest *models.DestinationRef
	platform := c.Query("platform")
	accountID := c.Query("account_id")
	if platform != "" && accountID != "" {
		dest = &models.DestinationRef{Platform: models.Platform(platform), AccountID: accountID}
	}

	logs, err := h.posts.GetLogs(c.Context(), userID, requestID, dest)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(logs)
}

func (h *PostHandler) ResubmitDestination(c *fiber.Ctx) error {
	userID := GetUserID(c)
	requestID := c.Params("id")

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
	if err := h.posts.Resubmit(c.Context(), userID, requestID, dest); err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Delivery requeued",
	})
}
