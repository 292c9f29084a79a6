package service

import (
	"context"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/mylogger"
	"github.com/AbhaySingh-33/Job-Portal/services/auth/internal/templates"
)

const (
	SubjectPasswordReset = "RESET YOUR PASSWORD - HIRE HEAVEN"
	SubjectVerifyEmail   = "Verify your email - HireHeaven"
	SubjectOTP           = "Your HireHeaven verification code"
)

// Publisher hands a rendered email to the notification pipeline.
type Publisher interface {
	PublishNotification(ctx context.Context, to, subject, html string)
}

type NotificationService interface {
	SendPasswordReset(ctx context.Context, email, token string) error
	SendVerifyEmail(ctx context.Context, email, token string) error
	SendOTP(ctx context.Context, email, code string) error
}

type notificationService struct {
	publisher   Publisher
	frontendURL string
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewNotificationService(publisher Publisher, frontendURL string, logger *zap.Logger) NotificationService {
	return &notificationService{
		publisher:   publisher,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
		tracer:      otel.Tracer("auth-service"),
	}
}

func (s *notificationService) SendPasswordReset(ctx context.Context, email, token string) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.SendPasswordReset")
	defer span.End()

	html, err := templates.PasswordReset(s.link("reset", token))
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error rendering password reset email", zap.Error(err))
		return err
	}

	s.publisher.PublishNotification(ctx, email, SubjectPasswordReset, html)
	return nil
}

func (s *notificationService) SendVerifyEmail(ctx context.Context, email, token string) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.SendVerifyEmail")
	defer span.End()

	html, err := templates.VerifyEmail(s.link("verify-email", token))
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error rendering verify email", zap.Error(err))
		return err
	}

	s.publisher.PublishNotification(ctx, email, SubjectVerifyEmail, html)
	return nil
}

func (s *notificationService) SendOTP(ctx context.Context, email, code string) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.SendOTP")
	defer span.End()

	html, err := templates.OTP(code)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error rendering otp email", zap.Error(err))
		return err
	}

	s.publisher.PublishNotification(ctx, email, SubjectOTP, html)
	return nil
}

func (s *notificationService) link(path, token string) string {
	return s.frontendURL + "/" + path + "/" + url.PathEscape(token)
}
