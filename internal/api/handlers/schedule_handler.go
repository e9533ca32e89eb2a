package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stick95/fanpost/internal/service"
	"github.com/stick95/fanpost/internal/transfer"
)

type ScheduleHandler struct {
	s service.ScheduleService
}

func NewScheduleHandler(s service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{s: s}
}

func (h *ScheduleHandler) CreateSchedule(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var body transfer.ScheduleCreation
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	at, err := time.Parse(time.RFC3339, body.ScheduledTime)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "scheduled_time must be RFC 3339",
		})
	}

	id, err := h.s.Schedule(c.Context(), userID, body.MediaKey, body.Caption, body.Destinations, at, body.Timezone)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"scheduled_post_id": id,
	})
}

func (h *ScheduleHandler) ListSchedules(c *fiber.Ctx) error {
	userID := GetUserID(c)

	schedules, err := h.s.List(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(schedules)
}

func (h *ScheduleHandler) CancelSchedule(c *fiber.Ctx) error {
	userID := GetUserID(c)
	id := c.Params("id")

	if err := h.s.Cancel(c.Context(), userID, id); err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Schedule cancelled",
	})
}
