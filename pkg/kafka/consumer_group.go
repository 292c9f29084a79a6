package kafka

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/metrics"
	"github.com/AbhaySingh-33/Job-Portal/pkg/mylogger"
)

// HandlerFunc processes one record. Its error is logged and the record is
// marked, unless the session ended while it ran. Such a record stays
// unmarked and is redelivered to the next owner of the partition.
type HandlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

type ConsumerGroupFactory func(addrs []string, groupID string, cfg *sarama.Config) (sarama.ConsumerGroup, error)

var errGroupClosed = errors.New("consumer group closed")

type ConsumerGroup struct {
	client      *Client
	groupID     string
	topics      []string
	handlerFunc HandlerFunc
	logger      *zap.Logger
	metrics     *metrics.Metrics

	restartDelay      time.Duration
	maxProcessingTime time.Duration
	newGroup          ConsumerGroupFactory
}

type ConsumerGroupOption func(*ConsumerGroup)

// WithRestartDelay sets the minimum wait before a failed group is rebuilt.
func WithRestartDelay(d time.Duration) ConsumerGroupOption {
	return func(c *ConsumerGroup) { c.restartDelay = d }
}

// WithMaxProcessingTime bounds how long one handler call may hold the
// partition before sarama considers the consumer stuck.
func WithMaxProcessingTime(d time.Duration) ConsumerGroupOption {
	return func(c *ConsumerGroup) { c.maxProcessingTime = d }
}

func WithGroupMetrics(m *metrics.Metrics) ConsumerGroupOption {
	return func(c *ConsumerGroup) { c.metrics = m }
}

func WithConsumerGroupFactory(f ConsumerGroupFactory) ConsumerGroupOption {
	return func(c *ConsumerGroup) { c.newGroup = f }
}

func NewConsumerGroup(
	client *Client,
	groupID string,
	topics []string,
	handlerFunc HandlerFunc,
	logger *zap.Logger,
	opts ...ConsumerGroupOption,
) *ConsumerGroup {
	c := &ConsumerGroup{
		client:       client,
		groupID:      groupID,
		topics:       topics,
		handlerFunc:  handlerFunc,
		logger:       logger,
		restartDelay: 5 * time.Second,
		newGroup:     sarama.NewConsumerGroup,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxProcessingTime > 0 {
		c.client.Config.Consumer.MaxProcessingTime = c.maxProcessingTime
	}

	return c
}

// Run consumes until ctx is cancelled. Whenever the group fails or is closed
// underneath it, the group is torn down and rebuilt after the restart delay.
func (c *ConsumerGroup) Run(ctx context.Context) {
	supervisor := &Supervisor{
		Name:            c.groupID,
		InitialInterval: c.restartDelay,
		MaxInterval:     max(c.restartDelay, DefaultMaxInterval),
		Logger:          c.logger,
		Metrics:         c.metrics,
	}

	if err := supervisor.Supervise(ctx, c.runOnce); err != nil && !errors.Is(err, context.Canceled) {
		mylogger.Error(ctx, c.logger, "consumer group stopped", zap.Error(err))
		return
	}

	mylogger.Info(ctx, c.logger, "context cancelled, shutting down consumer", zap.String("group", c.groupID))
}

// runOnce returns nil only when ctx is done. healthy is reported each time
// a session is set up, so a later failure restarts from the initial delay.
func (c *ConsumerGroup) runOnce(ctx context.Context, healthy func()) error {
	group, err := c.newGroup(c.client.Brokers, c.groupID, c.client.Config)
	if err != nil {
		return fmt.Errorf("error creating consumer group: %w", err)
	}

	defer func() {
		if err := group.Close(); err != nil {
			c.logger.Warn("error closing consumer group", zap.Error(err))
		}
	}()

	go c.drainErrors(group.Errors())

	mylogger.Info(ctx, c.logger, "consumer group joined",
		zap.String("group", c.groupID),
		zap.Strings("topics", c.topics),
	)

	handler := &saramaHandler{
		handler: c.handlerFunc,
		logger:  c.logger,
		onSetup: healthy,
	}

	for {
		err := group.Consume(ctx, c.topics, handler)
		if ctx.Err() != nil {
			return nil
		}

		switch {
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return errGroupClosed
		case err != nil:
			return fmt.Errorf("error consuming in consumer loop: %w", err)
		}
	}
}

func (c *ConsumerGroup) drainErrors(errs <-chan error) {
	for err := range errs {
		c.logger.Error("consumer group error", zap.String("group", c.groupID), zap.Error(err))
	}
}

type saramaHandler struct {
	handler HandlerFunc
	logger  *zap.Logger
	onSetup func()
}

func (h *saramaHandler) Setup(_ sarama.ConsumerGroupSession) error {
	if h.onSetup != nil {
		h.onSetup()
	}
	return nil
}

func (h *saramaHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *saramaHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			err := h.process(session.Context(), msg)
			if err != nil && (errors.Is(err, context.Canceled) || session.Context().Err() != nil) {
				mylogger.Warn(session.Context(), h.logger, "processing interrupted, leaving offset unmarked",
					zap.String("topic", msg.Topic),
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
				)
				return nil
			}
			session.MarkMessage(msg, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// process returns the handler error. A recovered panic is logged and
// reported as nil so the record is skipped.
func (h *saramaHandler) process(parent context.Context, msg *sarama.ConsumerMessage) (err error) {
	ctx, span := h.extractTracing(parent, msg)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			mylogger.Error(ctx, h.logger, "panic while processing message",
				zap.String("topic", msg.Topic),
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = nil
		}
	}()

	if err = h.handler(ctx, msg); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, h.logger, "Failed to process message",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}

	return err
}

func (h *saramaHandler) extractTracing(ctx context.Context, msg *sarama.ConsumerMessage) (context.Context, trace.Span) {
	carrier := propagation.MapCarrier{}
	for _, header := range msg.Headers {
		if header == nil {
			continue
		}
		carrier[string(header.Key)] = string(header.Value)
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	return otel.Tracer("pkg/kafka/consumer").Start(ctx, "kafka_process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int64("messaging.kafka.partition", int64(msg.Partition)),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
}
