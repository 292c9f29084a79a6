package testsuite

import (
	"context"
	"log"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/AbhaySingh-33/Job-Portal/pkg/config"
)

const kafkaImage = "confluentinc/cp-kafka:7.5.0"

// BaseSuite starts a single-node Kafka broker and an in-memory Redis shared
// by every test of the embedding suite.
type BaseSuite struct {
	suite.Suite
	KafkaContainer *kafka.KafkaContainer
	KafkaBrokers   []string
	Redis          *miniredis.Miniredis
	Ctx            context.Context
}

func (s *BaseSuite) SetupInfrastructure() {
	s.Ctx = context.Background()

	var err error
	s.KafkaContainer, err = kafka.Run(
		s.Ctx,
		kafkaImage,
		kafka.WithClusterID("test-cluster"),
	)
	s.Require().NoError(err)

	s.KafkaBrokers, err = s.KafkaContainer.Brokers(s.Ctx)
	s.Require().NoError(err)

	s.Redis, err = miniredis.Run()
	s.Require().NoError(err)
}

func (s *BaseSuite) TearDownInfrastructure() {
	if s.Redis != nil {
		s.Redis.Close()
	}
	if s.KafkaContainer != nil {
		if err := testcontainers.TerminateContainer(s.KafkaContainer, testcontainers.StopTimeout(10*time.Second)); err != nil {
			log.Printf("Failed to terminate kafka container: %v", err)
		}
	}
}

// KafkaConfig points a plaintext client at the container broker.
func (s *BaseSuite) KafkaConfig() config.Kafka {
	return config.Kafka{
		Brokers:        s.KafkaBrokers,
		FromBeginning:  true,
		ConnectTimeout: 30 * time.Second,
		RestartDelay:   time.Second,
	}
}

func (s *BaseSuite) RedisConfig() config.Redis {
	return config.Redis{Addr: s.Redis.Addr()}
}
