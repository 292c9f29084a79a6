package http

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/mylogger"
	"github.com/AbhaySingh-33/Job-Portal/pkg/utils"
	"github.com/AbhaySingh-33/Job-Portal/services/auth/internal/service"
	myValidator "github.com/AbhaySingh-33/Job-Portal/services/auth/pkg/validator"
)

type TokenInput struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required,max=512"`
}

type OTPInput struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,otp"`
}

type NotifyHandler struct {
	svc      service.NotificationService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewNotifyHandler(svc service.NotificationService, logger *zap.Logger) *NotifyHandler {
	return &NotifyHandler{
		svc:      svc,
		validate: myValidator.New(),
		logger:   logger,
	}
}

func RegisterRoutes(app *fiber.App, h *NotifyHandler) {
	notify := app.Group("/internal/notify")

	notify.Post("/password-reset", h.PasswordReset)
	notify.Post("/verify-email", h.VerifyEmail)
	notify.Post("/otp", h.OTP)
}

func (h *NotifyHandler) PasswordReset(c *fiber.Ctx) error {
	ctx := c.UserContext()

	req := new(TokenInput)
	if ok, err := h.bind(c, req); !ok {
		return err
	}

	if err := h.svc.SendPasswordReset(ctx, req.Email, req.Token); err != nil {
		mylogger.Error(ctx, h.logger, "password reset notification failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to queue email"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": true})
}

func (h *NotifyHandler) VerifyEmail(c *fiber.Ctx) error {
	ctx := c.UserContext()

	req := new(TokenInput)
	if ok, err := h.bind(c, req); !ok {
		return err
	}

	if err := h.svc.SendVerifyEmail(ctx, req.Email, req.Token); err != nil {
		mylogger.Error(ctx, h.logger, "verify email notification failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to queue email"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": true})
}

func (h *NotifyHandler) OTP(c *fiber.Ctx) error {
	ctx := c.UserContext()

	req := new(OTPInput)
	if ok, err := h.bind(c, req); !ok {
		return err
	}

	if err := h.svc.SendOTP(ctx, req.Email, req.Code); err != nil {
		mylogger.Error(ctx, h.logger, "otp notification failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to queue email"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": true})
}

// bind parses and validates the body. When it reports false the 400
// response has already been written and err is the result of writing it.
func (h *NotifyHandler) bind(c *fiber.Ctx, req any) (bool, error) {
	ctx := c.UserContext()

	if err := c.BodyParser(req); err != nil {
		mylogger.Warn(ctx, h.logger, "body parsing error", zap.String("path", c.Path()), zap.Error(err))
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	if err := h.validate.Struct(req); err != nil {
		mylogger.Warn(ctx, h.logger, "validation failed", zap.String("path", c.Path()), zap.Error(err))
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": utils.FormatValidationError(err)})
	}

	return true, nil
}
