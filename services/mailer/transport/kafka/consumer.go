package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/kafka"
	"github.com/AbhaySingh-33/Job-Portal/pkg/mylogger"
	"github.com/AbhaySingh-33/Job-Portal/pkg/notification"
	"github.com/AbhaySingh-33/Job-Portal/services/mailer/internal/domain"
)

type Handler interface {
	Handle(ctx context.Context, d domain.Delivery) error
}

type Consumer struct {
	handler Handler
	client  *kafka.Client
	logger  *zap.Logger
	opts    []kafka.ConsumerGroupOption
}

func NewConsumer(handler Handler, client *kafka.Client, logger *zap.Logger, opts ...kafka.ConsumerGroupOption) *Consumer {
	return &Consumer{
		handler: handler,
		client:  client,
		logger:  logger,
		opts:    opts,
	}
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	consumerGroup := kafka.NewConsumerGroup(
		c.client,
		notification.ConsumerGroup,
		[]string{notification.Topic},
		c.processMessage,
		c.logger,
		c.opts...,
	)

	consumerGroup.Run(ctx)
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	d := toDelivery(msg)

	mylogger.Debug(ctx, c.logger, "Processing message",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.String("event_id", d.EventID),
	)

	return c.handler.Handle(ctx, d)
}

func toDelivery(msg *sarama.ConsumerMessage) domain.Delivery {
	d := domain.Delivery{
		Payload:   msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}

	for _, h := range msg.Headers {
		if h == nil {
			continue
		}
		switch string(h.Key) {
		case notification.HeaderEventID:
			d.EventID = string(h.Value)
		case notification.HeaderSource:
			d.Source = string(h.Value)
		}
	}

	return d
}
