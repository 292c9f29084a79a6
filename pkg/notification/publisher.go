package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/cooldown"
	"github.com/AbhaySingh-33/Job-Portal/pkg/metrics"
	"github.com/AbhaySingh-33/Job-Portal/pkg/mylogger"
)

// Sender appends one record to a topic. *kafka.Producer implements it.
type Sender interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) (int32, int64, error)
}

// Publisher is the only way business code emits email. Publishing never
// fails from the caller's point of view: every problem is logged and the
// event is dropped.
type Publisher struct {
	sender  Sender
	source  string
	logger  *zap.Logger
	limiter *cooldown.Limiter
	metrics *metrics.Metrics
	newID   func() (uuid.UUID, error)
}

type PublisherOption func(*Publisher)

func WithCooldown(l *cooldown.Limiter) PublisherOption {
	return func(p *Publisher) { p.limiter = l }
}

func WithMetrics(m *metrics.Metrics) PublisherOption {
	return func(p *Publisher) { p.metrics = m }
}

func WithIDGenerator(f func() (uuid.UUID, error)) PublisherOption {
	return func(p *Publisher) { p.newID = f }
}

func NewPublisher(sender Sender, source string, logger *zap.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		sender: sender,
		source: source,
		logger: logger,
		newID:  uuid.NewV7,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// PublishNotification builds an Event and publishes it.
func (p *Publisher) PublishNotification(ctx context.Context, to, subject, html string) {
	p.Publish(ctx, Event{To: to, Subject: subject, HTML: html})
}

func (p *Publisher) Publish(ctx context.Context, event Event) {
	logger := p.logger.With(zap.String("to", event.To), zap.String("subject", event.Subject))

	if err := event.Validate(); err != nil {
		p.metrics.Published(p.source, metrics.ResultInvalid)
		mylogger.Error(ctx, logger, "dropping invalid notification", zap.Error(err))
		return
	}

	err := p.limiter.Allow(ctx, cooldown.Key(event.To, event.Subject, event.HTML))
	if errors.Is(err, cooldown.ErrCooldown) {
		p.metrics.Published(p.source, metrics.ResultCooldown)
		mylogger.Info(ctx, logger, "notification suppressed by cooldown")
		return
	}

	id, err := p.newID()
	if err != nil {
		id = uuid.New()
	}
	logger = logger.With(zap.String("event_id", id.String()))

	payload, err := event.Marshal()
	if err != nil {
		p.metrics.Published(p.source, metrics.ResultFailed)
		mylogger.Error(ctx, logger, "failed to marshal notification", zap.Error(err))
		return
	}

	partition, offset, err := p.sender.Produce(ctx, Topic, nil, payload, map[string]string{
		HeaderEventID: id.String(),
		HeaderSource:  p.source,
	})
	if err != nil {
		p.metrics.Published(p.source, metrics.ResultFailed)
		mylogger.Error(ctx, logger, "failed to publish notification", zap.Error(err))
		return
	}

	p.metrics.Published(p.source, metrics.ResultOK)
	mylogger.Info(ctx, logger, "notification published",
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
}
