package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/AbhaySingh-33/Job-Portal/pkg/utils"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP     HTTP     `yaml:"http"`
	Kafka    Kafka    `yaml:"kafka"`
	SMTP     SMTP     `yaml:"smtp"`
	Redis    Redis    `yaml:"redis"`
	Notify   Notify   `yaml:"notify"`
	Tracing  Tracing  `yaml:"tracing"`
	Frontend Frontend `yaml:"frontend"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT"`
	Timeout time.Duration `yaml:"timeout" env-default:"4s"`
}

type Kafka struct {
	Brokers            []string      `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Broker             string        `yaml:"broker" env:"KAFKA_BROKER" env-default:"localhost:9092"`
	Username           string        `yaml:"username" env:"KAFKA_USERNAME"`
	Password           string        `yaml:"password" env:"KAFKA_PASSWORD"`
	SASLMechanism      string        `yaml:"sasl_mechanism" env:"KAFKA_SASL_MECHANISM" env-default:"SCRAM-SHA-256"`
	CACertPath         string        `yaml:"ca_cert" env:"KAFKA_CA_CERT"`
	FromBeginning      bool          `yaml:"from_beginning" env:"KAFKA_FROM_BEGINNING" env-default:"false"`
	ConnectMaxAttempts int           `yaml:"connect_max_attempts" env:"KAFKA_CONNECT_MAX_ATTEMPTS" env-default:"0"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout" env:"KAFKA_CONNECT_TIMEOUT" env-default:"30s"`
	RestartDelay       time.Duration `yaml:"restart_delay" env:"KAFKA_RESTART_DELAY" env-default:"5s"`
}

// BrokerList returns KAFKA_BROKERS when set, otherwise the single KAFKA_BROKER address.
func (k Kafka) BrokerList() []string {
	var out []string
	for _, b := range k.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	if len(out) == 0 && k.Broker != "" {
		for _, b := range strings.Split(k.Broker, ",") {
			if b = strings.TrimSpace(b); b != "" {
				out = append(out, b)
			}
		}
	}
	return out
}

// Secure reports whether SASL credentials are configured.
func (k Kafka) Secure() bool {
	return k.Username != "" && k.Password != ""
}

type SMTP struct {
	Host          string        `yaml:"host" env:"SMTP_HOST"`
	Port          int           `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User          string        `yaml:"user" env:"SMTP_USER"`
	Password      string        `yaml:"password" env:"SMTP_PASSWORD"`
	From          string        `yaml:"from" env:"SMTP_FROM" env-default:"HireHeaven <no-reply@hireheaven.dev>"`
	Security      string        `yaml:"security" env:"SMTP_SECURITY"`
	SkipVerify    bool          `yaml:"skip_verify" env:"SMTP_SKIP_VERIFY" env-default:"false"`
	HeloName      string        `yaml:"helo_name" env:"SMTP_HELO_NAME"`
	PoolSize      int           `yaml:"pool_size" env:"SMTP_POOL_SIZE" env-default:"1"`
	DialTimeout   time.Duration `yaml:"dial_timeout" env:"SMTP_DIAL_TIMEOUT" env-default:"10s"`
	GreetTimeout  time.Duration `yaml:"greeting_timeout" env:"SMTP_GREETING_TIMEOUT" env-default:"10s"`
	SocketTimeout time.Duration `yaml:"socket_timeout" env:"SMTP_SOCKET_TIMEOUT" env-default:"30s"`
	SendTimeout   time.Duration `yaml:"send_timeout" env:"SMTP_SEND_TIMEOUT" env-default:"45s"`
	VerifyTimeout time.Duration `yaml:"verify_timeout" env:"SMTP_VERIFY_TIMEOUT" env-default:"10s"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Notify struct {
	Cooldown time.Duration `yaml:"cooldown" env:"NOTIFY_COOLDOWN" env-default:"60s"`
}

type Tracing struct {
	Enabled  bool   `yaml:"enabled" env:"TRACING_ENABLED" env-default:"true"`
	Endpoint string `yaml:"endpoint" env:"JAEGER_ENDPOINT" env-default:"localhost:4318"`
}

type Frontend struct {
	URL string `yaml:"url" env:"FRONTEND_URL" env-default:"http://localhost:3000"`
}

// Load reads the YAML file at CONFIG_PATH when it exists and overlays the
// environment. Without a file only the environment is used.
func Load() (*Config, error) {
	var cfg Config

	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")
	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("error reading config %s: %w", configPath, err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("error reading env: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	return cfg
}
