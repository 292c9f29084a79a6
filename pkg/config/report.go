package config

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/utils"
)

// MailerEnvReport describes the variables the mail consumer depends on.
// Secrets are masked. Unset variables are returned by name in missing.
func (c *Config) MailerEnvReport() (fields []zap.Field, missing []string) {
	port := ""
	if c.SMTP.Port > 0 {
		port = strconv.Itoa(c.SMTP.Port)
	}

	entries := []struct {
		key    string
		value  string
		secret bool
	}{
		{"SMTP_HOST", c.SMTP.Host, false},
		{"SMTP_PORT", port, false},
		{"SMTP_USER", c.SMTP.User, false},
		{"SMTP_PASSWORD", c.SMTP.Password, true},
		{"KAFKA_BROKER", strings.Join(c.Kafka.BrokerList(), ","), false},
		{"KAFKA_USERNAME", c.Kafka.Username, false},
		{"KAFKA_PASSWORD", c.Kafka.Password, true},
	}

	for _, e := range entries {
		if e.value == "" {
			missing = append(missing, e.key)
			continue
		}

		v := e.value
		if e.secret {
			v = utils.MaskSecret(v)
		}
		fields = append(fields, zap.String(e.key, v))
	}

	return fields, missing
}
