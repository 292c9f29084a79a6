package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/mylogger"
)

var ErrNotConnected = errors.New("kafka producer is not connected")

type SyncProducerFactory func(addrs []string, cfg *sarama.Config) (sarama.SyncProducer, error)

// Producer owns at most one sarama.SyncProducer. Start connects it in the
// background; until then Produce fails with ErrNotConnected.
type Producer struct {
	client     *Client
	logger     *zap.Logger
	supervisor *Supervisor
	topics     []TopicSpec

	newSyncProducer SyncProducerFactory
	newAdmin        func() (TopicAdmin, error)

	mu      sync.RWMutex
	current sarama.SyncProducer
}

type ProducerOption func(*Producer)

// WithTopics lists topics bootstrapped before every connect attempt.
func WithTopics(specs ...TopicSpec) ProducerOption {
	return func(p *Producer) { p.topics = append(p.topics, specs...) }
}

func WithSupervisor(s *Supervisor) ProducerOption {
	return func(p *Producer) { p.supervisor = s }
}

func WithSyncProducerFactory(f SyncProducerFactory) ProducerOption {
	return func(p *Producer) { p.newSyncProducer = f }
}

func WithAdminFactory(f func() (TopicAdmin, error)) ProducerOption {
	return func(p *Producer) { p.newAdmin = f }
}

func NewProducer(client *Client, logger *zap.Logger, opts ...ProducerOption) *Producer {
	p := &Producer{
		client:          client,
		logger:          logger,
		newSyncProducer: sarama.NewSyncProducer,
		newAdmin:        client.NewAdmin,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.supervisor == nil {
		p.supervisor = NewSupervisor(client.ClientID+"-producer", 0, logger, nil)
	}

	return p
}

// Start runs the connect sequence under the supervisor. It blocks until the
// producer is connected, the supervisor gives up or ctx is cancelled.
func (p *Producer) Start(ctx context.Context) error {
	err := p.supervisor.Run(ctx, p.connect)
	if err != nil {
		return err
	}

	mylogger.Info(ctx, p.logger, "kafka producer connected",
		zap.String("client_id", p.client.ClientID),
		zap.Strings("brokers", p.client.Brokers),
	)

	return nil
}

func (p *Producer) connect(ctx context.Context) error {
	p.bootstrapTopics(ctx)

	sp, err := p.newSyncProducer(p.client.Brokers, p.client.Config)
	if err != nil {
		return fmt.Errorf("error creating producer: %w", err)
	}

	p.mu.Lock()
	old := p.current
	p.current = sp
	p.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			p.logger.Warn("error closing previous producer", zap.Error(err))
		}
	}

	return nil
}

// bootstrapTopics logs failures and lets the connect continue; a missing
// topic then surfaces as a produce error.
func (p *Producer) bootstrapTopics(ctx context.Context) {
	if len(p.topics) == 0 {
		return
	}

	admin, err := p.newAdmin()
	if err != nil {
		mylogger.Error(ctx, p.logger, "topic bootstrap skipped", zap.Error(err))
		return
	}
	defer admin.Close()

	for _, spec := range p.topics {
		if _, err := EnsureTopic(ctx, admin, spec, p.logger); err != nil {
			mylogger.Error(ctx, p.logger, "topic bootstrap failed",
				zap.String("topic", spec.Name),
				zap.Error(err),
			)
		}
	}
}

func (p *Producer) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current != nil
}

// Produce appends one record and waits for the leader's acknowledgement.
// The current trace context is injected into the record headers.
func (p *Producer) Produce(
	ctx context.Context,
	topic string,
	key, value []byte,
	headers map[string]string,
) (int32, int64, error) {
	p.mu.RLock()
	sp := p.current
	p.mu.RUnlock()

	if sp == nil {
		return 0, 0, ErrNotConnected
	}

	ctx, span := otel.Tracer("pkg/kafka/producer").Start(ctx, "kafka_produce",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", topic),
		),
	)
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	recordHeaders := make([]sarama.RecordHeader, 0, len(headers)+len(carrier))
	for k, v := range headers {
		recordHeaders = append(recordHeaders, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	for k, v := range carrier {
		if _, ok := headers[k]; ok {
			continue
		}
		recordHeaders = append(recordHeaders, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Value:   sarama.ByteEncoder(value),
		Headers: recordHeaders,
	}
	if key != nil {
		msg.Key = sarama.ByteEncoder(key)
	}

	partition, offset, err := sp.SendMessage(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, 0, fmt.Errorf("error sending message to %s: %w", topic, err)
	}

	span.SetAttributes(
		attribute.Int64("messaging.kafka.partition", int64(partition)),
		attribute.Int64("messaging.kafka.offset", offset),
	)

	return partition, offset, nil
}

func (p *Producer) Close() error {
	p.mu.Lock()
	sp := p.current
	p.current = nil
	p.mu.Unlock()

	if sp == nil {
		return nil
	}

	return sp.Close()
}
