// Package metrics holds the per-process prometheus registry and the
// counters the notification pipeline reports into. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK        = "ok"
	ResultInvalid   = "invalid"
	ResultCooldown  = "cooldown"
	ResultFailed    = "failed"
	ResultMalformed = "malformed"
	ResultTimeout   = "timeout"
)

type Metrics struct {
	reg *prometheus.Registry

	published        *prometheus.CounterVec
	consumed         *prometheus.CounterVec
	deliveryDuration prometheus.Histogram
	supervisorRetry  *prometheus.CounterVec
	supervisorGiveUp *prometheus.CounterVec
}

func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	labels := prometheus.Labels{"service": service}

	m := &Metrics{
		reg: reg,
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "notification_published_total",
			Help:        "Notification events handed to the broker, by publishing source and result.",
			ConstLabels: labels,
		}, []string{"source", "result"}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "notification_consumed_total",
			Help:        "Notification events taken off the topic, by final disposition.",
			ConstLabels: labels,
		}, []string{"result"}),
		deliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "smtp_delivery_duration_seconds",
			Help:        "Time spent relaying one message through SMTP.",
			ConstLabels: labels,
			Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
		}),
		supervisorRetry: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kafka_supervisor_retries_total",
			Help:        "Failed connect attempts that were scheduled for retry.",
			ConstLabels: labels,
		}, []string{"supervisor"}),
		supervisorGiveUp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kafka_supervisor_giveups_total",
			Help:        "Supervisors that exhausted their attempts.",
			ConstLabels: labels,
		}, []string{"supervisor"}),
	}

	reg.MustRegister(m.published, m.consumed, m.deliveryDuration, m.supervisorRetry, m.supervisorGiveUp)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Published(source, result string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(source, result).Inc()
}

func (m *Metrics) Consumed(result string) {
	if m == nil {
		return
	}
	m.consumed.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDelivery(d time.Duration) {
	if m == nil {
		return
	}
	m.deliveryDuration.Observe(d.Seconds())
}

func (m *Metrics) SupervisorRetry(name string) {
	if m == nil {
		return
	}
	m.supervisorRetry.WithLabelValues(name).Inc()
}

func (m *Metrics) SupervisorGiveUp(name string) {
	if m == nil {
		return
	}
	m.supervisorGiveUp.WithLabelValues(name).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{
		Registry: m.reg,
	})
}

// Mount exposes the registry on GET /metrics.
func (m *Metrics) Mount(app *fiber.App) {
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
}
