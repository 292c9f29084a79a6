package http

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/mylogger"
	"github.com/AbhaySingh-33/Job-Portal/pkg/utils"
)

type ApplicationStatusInput struct {
	Email    string `json:"email" validate:"required,email"`
	JobTitle string `json:"job_title" validate:"required,max=200"`
	Status   string `json:"status" validate:"omitempty,oneof=Submitted Hired Rejected"`
}

type Notifier interface {
	SendApplicationStatus(ctx context.Context, email, jobTitle, status string) error
}

type NotifyHandler struct {
	notifier Notifier
	validate *validator.Validate
	logger   *zap.Logger
}

func NewNotifyHandler(notifier Notifier, logger *zap.Logger) *NotifyHandler {
	return &NotifyHandler{
		notifier: notifier,
		validate: validator.New(),
		logger:   logger,
	}
}

func RegisterRoutes(app *fiber.App, h *NotifyHandler) {
	app.Post("/internal/notify/application-status", h.ApplicationStatus)
}

func (h *NotifyHandler) ApplicationStatus(c *fiber.Ctx) error {
	ctx := c.UserContext()

	req := new(ApplicationStatusInput)
	if err := c.BodyParser(req); err != nil {
		mylogger.Warn(ctx, h.logger, "body parsing error in application status", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	if err := h.validate.Struct(req); err != nil {
		mylogger.Warn(ctx, h.logger, "application status validation failed", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": utils.FormatValidationError(err),
		})
	}

	if err := h.notifier.SendApplicationStatus(ctx, req.Email, req.JobTitle, req.Status); err != nil {
		mylogger.Error(ctx, h.logger, "application status notification failed", zap.Error(err))

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to queue email",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": true})
}
