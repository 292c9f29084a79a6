package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// TopicAdmin is the subset of sarama.ClusterAdmin the bootstrapper needs.
type TopicAdmin interface {
	ListTopics() (map[string]sarama.TopicDetail, error)
	CreateTopic(topic string, detail *sarama.TopicDetail, validateOnly bool) error
	Close() error
}

type TopicSpec struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
}

// SingleTopic is a one-partition, one-replica topic.
func SingleTopic(name string) TopicSpec {
	return TopicSpec{Name: name, Partitions: 1, ReplicationFactor: 1}
}

// EnsureTopic creates spec.Name if the broker does not know it yet. A topic
// created concurrently by another process counts as existing.
func EnsureTopic(ctx context.Context, admin TopicAdmin, spec TopicSpec, logger *zap.Logger) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	topics, err := admin.ListTopics()
	if err != nil {
		return false, fmt.Errorf("error listing topics: %w", err)
	}

	if _, ok := topics[spec.Name]; ok {
		logger.Debug("topic already exists", zap.String("topic", spec.Name))
		return false, nil
	}

	err = admin.CreateTopic(spec.Name, &sarama.TopicDetail{
		NumPartitions:     spec.Partitions,
		ReplicationFactor: spec.ReplicationFactor,
	}, false)
	if err != nil {
		if isTopicExists(err) {
			logger.Debug("topic created concurrently", zap.String("topic", spec.Name))
			return false, nil
		}
		return false, fmt.Errorf("error creating topic %s: %w", spec.Name, err)
	}

	logger.Info("topic created",
		zap.String("topic", spec.Name),
		zap.Int32("partitions", spec.Partitions),
		zap.Int16("replication_factor", spec.ReplicationFactor),
	)

	return true, nil
}

// EnsureTopic opens a short-lived admin connection and bootstraps spec.
func (c *Client) EnsureTopic(ctx context.Context, spec TopicSpec, logger *zap.Logger) (bool, error) {
	admin, err := c.NewAdmin()
	if err != nil {
		return false, err
	}
	defer admin.Close()

	return EnsureTopic(ctx, admin, spec, logger)
}

func isTopicExists(err error) bool {
	if errors.Is(err, sarama.ErrTopicAlreadyExists) {
		return true
	}

	var topicErr *sarama.TopicError
	return errors.As(err, &topicErr) && topicErr.Err == sarama.ErrTopicAlreadyExists
}
