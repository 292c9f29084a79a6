package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/AbhaySingh-33/Job-Portal/pkg/config"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const (
	metadataRetryMax     = 8
	metadataRetryBackoff = 300 * time.Millisecond
	defaultNetTimeout    = 30 * time.Second
)

// Client is the configured identity every producer and consumer in a process
// is built from. Creating it does not open a connection.
type Client struct {
	ClientID string
	Brokers  []string
	Config   *sarama.Config
}

func NewClient(clientID string, cfg config.Kafka, logger *zap.Logger) *Client {
	sc := sarama.NewConfig()
	sc.ClientID = clientID
	sc.Version = sarama.V3_0_0_0

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultNetTimeout
	}
	sc.Net.DialTimeout = timeout
	sc.Net.ReadTimeout = timeout
	sc.Net.WriteTimeout = timeout
	sc.Metadata.Retry.Max = metadataRetryMax
	sc.Metadata.Retry.Backoff = metadataRetryBackoff

	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForLocal

	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	if cfg.FromBeginning {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	sc.Consumer.Offsets.AutoCommit.Enable = true
	sc.Consumer.Offsets.AutoCommit.Interval = time.Second
	sc.Consumer.Group.Session.Timeout = 30 * time.Second
	sc.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	brokers := cfg.BrokerList()

	if !cfg.Secure() {
		logger.Info("kafka client configured",
			zap.String("client_id", clientID),
			zap.Strings("brokers", brokers),
			zap.Bool("secure", false),
		)
		return &Client{ClientID: clientID, Brokers: brokers, Config: sc}
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.CACertPath != "" {
		pool, err := loadCertPool(cfg.CACertPath)
		if err != nil {
			logger.Warn("failed to load kafka CA certificate, using system roots",
				zap.String("path", cfg.CACertPath),
				zap.Error(err),
			)
		} else {
			tlsConfig.RootCAs = pool
		}
	}

	sc.Net.TLS.Enable = true
	sc.Net.TLS.Config = tlsConfig

	sc.Net.SASL.Enable = true
	sc.Net.SASL.Handshake = true
	sc.Net.SASL.User = cfg.Username
	sc.Net.SASL.Password = cfg.Password

	switch cfg.SASLMechanism {
	case sarama.SASLTypeSCRAMSHA512:
		sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA512}
		}
	default:
		sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA256}
		}
	}

	logger.Info("kafka client configured",
		zap.String("client_id", clientID),
		zap.Strings("brokers", brokers),
		zap.Bool("secure", true),
		zap.String("sasl_mechanism", string(sc.Net.SASL.Mechanism)),
	)

	return &Client{ClientID: clientID, Brokers: brokers, Config: sc}
}

// NewAdmin opens a cluster admin connection. The caller closes it.
func (c *Client) NewAdmin() (TopicAdmin, error) {
	admin, err := sarama.NewClusterAdmin(c.Brokers, c.Config)
	if err != nil {
		return nil, fmt.Errorf("error creating cluster admin: %w", err)
	}
	return admin, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}

	return pool, nil
}
