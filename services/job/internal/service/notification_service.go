package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/mylogger"
	"github.com/AbhaySingh-33/Job-Portal/services/job/internal/templates"
)

const SubjectApplicationStatus = "Your application status has been updated - HireHeaven"

type Publisher interface {
	PublishNotification(ctx context.Context, to, subject, html string)
}

type NotificationService struct {
	publisher   Publisher
	frontendURL string
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewNotificationService(publisher Publisher, frontendURL string, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		publisher:   publisher,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
		tracer:      otel.Tracer("job-service"),
	}
}

// SendApplicationStatus tells an applicant that a recruiter moved their
// application. Publishing is fire-and-forget.
func (s *NotificationService) SendApplicationStatus(ctx context.Context, email, jobTitle, status string) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.SendApplicationStatus")
	defer span.End()

	span.SetAttributes(attribute.String("application.status", status))

	html, err := templates.ApplicationStatus(jobTitle, status, s.frontendURL+"/account")
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error rendering application status email", zap.Error(err))
		return err
	}

	s.publisher.PublishNotification(ctx, email, SubjectApplicationStatus, html)
	return nil
}
