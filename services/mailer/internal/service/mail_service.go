package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/metrics"
	"github.com/AbhaySingh-33/Job-Portal/pkg/mylogger"
	"github.com/AbhaySingh-33/Job-Portal/pkg/notification"
	"github.com/AbhaySingh-33/Job-Portal/services/mailer/internal/domain"
	"github.com/AbhaySingh-33/Job-Portal/services/mailer/internal/infrastructure/smtp"
)

type Transport interface {
	Deliver(ctx context.Context, event notification.Event) (smtp.Receipt, error)
}

// MailService decides the fate of every record. A record that cannot be
// decoded or delivered is logged and treated as consumed.
type MailService struct {
	transport Transport
	logger    *zap.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewMailService(transport Transport, logger *zap.Logger, m *metrics.Metrics) *MailService {
	return &MailService{
		transport: transport,
		logger:    logger,
		metrics:   m,
		tracer:    otel.Tracer("mailer-service"),
	}
}

// Handle only returns an error when ctx was cancelled mid-delivery.
func (s *MailService) Handle(ctx context.Context, d domain.Delivery) error {
	ctx, span := s.tracer.Start(ctx, "MailService.Handle")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", d.EventID),
		attribute.String("source", d.Source),
	)

	logger := mylogger.With(ctx, s.logger,
		zap.String("event_id", d.EventID),
		zap.String("source", d.Source),
		zap.Int32("partition", d.Partition),
		zap.Int64("offset", d.Offset),
	)

	event, err := notification.Decode(d.Payload)
	if err != nil {
		s.metrics.Consumed(metrics.ResultMalformed)
		logger.Warn("skipping malformed message", zap.Error(err))
		return nil
	}

	start := time.Now()
	receipt, err := s.transport.Deliver(ctx, event)
	s.metrics.ObserveDelivery(time.Since(start))

	if err != nil {
		span.RecordError(err)

		if errors.Is(err, context.Canceled) {
			return err
		}

		fields := []zap.Field{
			zap.String("to", event.To),
			zap.String("subject", event.Subject),
			zap.Error(err),
		}

		result := metrics.ResultFailed
		var relayErr *smtp.RelayError
		switch {
		case errors.As(err, &relayErr):
			fields = append(fields,
				zap.String("command", relayErr.Command),
				zap.Int("code", relayErr.Code),
				zap.String("response", relayErr.Message),
			)
		case errors.Is(err, smtp.ErrTimeout):
			result = metrics.ResultTimeout
		}

		s.metrics.Consumed(result)
		logger.Error("Failed to send mail", fields...)
		return nil
	}

	s.metrics.Consumed(metrics.ResultOK)
	logger.Info("Email sent successfully",
		zap.String("to", event.To),
		zap.String("message_id", receipt.MessageID),
		zap.String("response", receipt.Response),
	)

	return nil
}
